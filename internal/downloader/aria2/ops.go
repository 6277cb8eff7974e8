package aria2dl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tinoosan/launcher/internal/downloader"
)

// Ping performs a lightweight RPC to check aria2 liveness/readiness.
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.call(ctx, "aria2.getVersion", e.params())
	return err
}

// addURI: aria2.addUri([token?, [uris], options])
func (e *Engine) addURI(ctx context.Context, uri, dir string) (string, error) {
	opts := map[string]string{"dir": dir}
	opts["seed-time"] = strconv.FormatFloat(e.cfg.SeedTime.Minutes(), 'f', -1, 64)
	res, err := e.call(ctx, "aria2.addUri", e.params([]string{uri}, opts))
	if err != nil {
		return "", err
	}
	var gid string
	if err := json.Unmarshal(res, &gid); err != nil {
		return "", fmt.Errorf("parse addUri result: %w", err)
	}
	return gid, nil
}

// SetPaused maps to aria2.pause / aria2.unpause on the tracked GID. The
// state is remembered and applied when the GID becomes known.
func (e *Engine) SetPaused(ctx context.Context, paused bool) error {
	e.mu.Lock()
	e.paused = paused
	gid := e.gid
	e.mu.Unlock()
	if gid == "" {
		return nil
	}
	method := "aria2.unpause"
	if paused {
		method = "aria2.pause"
	}
	_, err := e.call(ctx, method, e.params(gid))
	return err
}

// remove: aria2.remove([token?, gid]). A GID aria2 no longer knows is not
// an error.
func (e *Engine) remove(ctx context.Context, gid string) error {
	if _, err := e.call(ctx, "aria2.remove", e.params(gid)); err != nil && !isAria2GIDNotFoundError(err) {
		return err
	}
	return nil
}

var statusKeys = []string{
	"status", "totalLength", "completedLength", "downloadSpeed",
	"uploadSpeed", "followedBy", "seeder", "errorMessage",
}

// statusResp is a partial view of aria2.tellStatus. Numeric values are
// decimal strings.
type statusResp struct {
	Status          string   `json:"status"`
	TotalLength     string   `json:"totalLength"`
	CompletedLength string   `json:"completedLength"`
	DownloadSpeed   string   `json:"downloadSpeed"`
	UploadSpeed     string   `json:"uploadSpeed"`
	FollowedBy      []string `json:"followedBy"`
	Seeder          string   `json:"seeder"`
	ErrorMessage    string   `json:"errorMessage"`
}

func (s statusResp) progress() downloader.Progress {
	return downloader.Progress{
		Completed:    parseNum(s.CompletedLength),
		Total:        parseNum(s.TotalLength),
		DownloadRate: parseNum(s.DownloadSpeed),
		UploadRate:   parseNum(s.UploadSpeed),
	}
}

// next returns the GID a finished metadata download handed over to.
func (s statusResp) next() string {
	if len(s.FollowedBy) > 0 {
		return s.FollowedBy[0]
	}
	return ""
}

func (e *Engine) tellStatus(ctx context.Context, gid string) (*statusResp, error) {
	res, err := e.call(ctx, "aria2.tellStatus", e.params(gid, statusKeys))
	if err != nil {
		return nil, err
	}
	var sr statusResp
	if err := json.Unmarshal(res, &sr); err != nil {
		return nil, fmt.Errorf("parse tellStatus: %w", err)
	}
	return &sr, nil
}

func parseNum(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
