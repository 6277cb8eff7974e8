package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinoosan/launcher/internal/service"
)

// Run shows the UI until the user quits, the status stream ends or ctx is
// cancelled.
func Run(ctx context.Context, svc service.Launcher) error {
	updates, cancel := svc.Watch()
	defer cancel()
	p := tea.NewProgram(New(svc, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
