package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tinoosan/launcher/internal/data"
)

// Goal is the outcome a headless run drives the update cycle towards.
type Goal string

const (
	// GoalUpdate stops once the game is ready to launch.
	GoalUpdate Goal = "update"
	// GoalPlay launches the game once it is ready.
	GoalPlay Goal = "play"
)

var (
	ErrUpdateFailed = errors.New("update failed")
	errStreamClosed = errors.New("status stream closed before the update finished")
)

// Player launches the installed game.
type Player interface {
	Play(ctx context.Context) error
}

// Reconciler consumes status snapshots and, once the update cycle ends,
// reconciles the observed state with the desired goal.
type Reconciler struct {
	goal     Goal
	player   Player
	statuses <-chan data.Status
	log      *slog.Logger

	last    data.State
	lastPct int
}

// New creates a Reconciler reading snapshots from statuses.
func New(log *slog.Logger, goal Goal, player Player, statuses <-chan data.Status) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{goal: goal, player: player, statuses: statuses, log: log, lastPct: -1}
}

// Run blocks until the cycle ends and the goal is applied, the stream
// closes or ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	// Tag this run with a stable operation_id for easier correlation.
	r.log = r.log.With("operation_id", uuid.NewString(), "goal", r.goal)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-r.statuses:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errStreamClosed
			}
			if done, err := r.handle(ctx, s); done {
				return err
			}
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, s data.Status) (bool, error) {
	if s.State != r.last {
		r.log.Info("status", "from", r.last, "to", s.State, "message", s.Message)
		r.last = s.State
	}
	if s.State == data.StateDownloading && (r.lastPct < 0 || s.Percent/10 != r.lastPct/10) {
		r.lastPct = s.Percent
		r.log.Info("progress", "percent", s.Percent, "completed", s.Completed, "total", s.Total,
			"down", s.DownloadRate, "up", s.UploadRate)
	}

	switch s.State {
	case data.StateError:
		return true, fmt.Errorf("%w: %s", ErrUpdateFailed, s.Message)
	case data.StateReadyToLaunch:
		if r.goal != GoalPlay {
			r.log.Info("ready to launch", "installed", s.Installed)
			return true, nil
		}
		if err := r.player.Play(ctx); err != nil {
			return true, fmt.Errorf("launch: %w", err)
		}
		r.log.Info("game launched", "installed", s.Installed)
		return true, nil
	}
	return false, nil
}
