package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinoosan/launcher/internal/data"
)

type fakeOrch struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeOrch) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeOrch) Status() data.Status { return data.Status{State: data.StateDownloading} }
func (f *fakeOrch) Watch() (<-chan data.Status, func()) {
	ch := make(chan data.Status)
	close(ch)
	return ch, func() {}
}
func (f *fakeOrch) Settings() data.Settings { return data.Settings{InstallPath: "/g"} }
func (f *fakeOrch) ApplySettings(context.Context, data.Settings) error {
	return f.record("settings")
}
func (f *fakeOrch) Primary(context.Context) error { return f.record("primary") }
func (f *fakeOrch) Toggle(context.Context) error  { return f.record("toggle") }
func (f *fakeOrch) Verify(context.Context) error  { return f.record("verify") }
func (f *fakeOrch) Play(context.Context) error    { return f.record("play") }

type fakeNews struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeNews) FetchNews(ctx context.Context) (data.News, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return data.News{{Title: "Release 0.55"}}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDoDispatches(t *testing.T) {
	o := &fakeOrch{}
	l := NewLauncher(o, &fakeNews{}, discard(), 0)
	for _, a := range []Action{ActionPrimary, ActionToggle, ActionVerify, ActionPlay} {
		if err := l.Do(context.Background(), a); err != nil {
			t.Fatalf("%s: %v", a, err)
		}
	}
	want := []string{"primary", "toggle", "verify", "play"}
	for i, c := range want {
		if o.calls[i] != c {
			t.Fatalf("calls = %v, want %v", o.calls, want)
		}
	}
	if err := l.Do(context.Background(), "jump"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestDoPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	l := NewLauncher(&fakeOrch{err: boom}, &fakeNews{}, discard(), 0)
	if err := l.Do(context.Background(), ActionPlay); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewsIsCached(t *testing.T) {
	n := &fakeNews{}
	l := NewLauncher(&fakeOrch{}, n, discard(), time.Minute).(*launcher)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		items, err := l.News(context.Background())
		if err != nil || len(items) != 1 {
			t.Fatalf("news = %v, %v", items, err)
		}
	}
	if got := n.calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := l.News(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := n.calls.Load(); got != 2 {
		t.Fatalf("expected refresh after ttl, got %d fetches", got)
	}
}

func TestNewsServesStaleOnFailure(t *testing.T) {
	n := &fakeNews{}
	l := NewLauncher(&fakeOrch{}, n, discard(), time.Minute).(*launcher)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }
	if _, err := l.News(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	n.err = errors.New("offline")
	now = now.Add(time.Hour)
	items, err := l.News(context.Background())
	if err != nil || len(items) != 1 {
		t.Fatalf("expected stale items, got %v, %v", items, err)
	}
}

func TestNewsErrorWithoutCache(t *testing.T) {
	l := NewLauncher(&fakeOrch{}, &fakeNews{err: errors.New("offline")}, discard(), 0)
	if _, err := l.News(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewsConcurrentFetchesShared(t *testing.T) {
	n := &fakeNews{delay: 50 * time.Millisecond}
	l := NewLauncher(&fakeOrch{}, n, discard(), time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.News(context.Background())
		}()
	}
	wg.Wait()
	if got := n.calls.Load(); got > 2 {
		t.Fatalf("expected fetches to be shared, got %d", got)
	}
}
