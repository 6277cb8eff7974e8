package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinoosan/launcher/internal/data"
	"github.com/tinoosan/launcher/internal/service"
)

const (
	actionTimeout = 10 * time.Second
	maxNews       = 5
)

type (
	statusMsg    data.Status
	streamEndMsg struct{}
	newsMsg      struct {
		items data.News
		err   error
	}
	actionMsg struct {
		action service.Action
		err    error
	}
	savedMsg struct{ err error }
)

// Model renders the launcher. It only reads snapshots and sends intents;
// all state lives in the orchestrator.
type Model struct {
	svc     service.Launcher
	updates <-chan data.Status

	status   data.Status
	news     data.News
	newsErr  error
	lastErr  string
	keys     keyMap
	help     help.Model
	progress progress.Model
	width    int

	editing  bool
	inputs   []textinput.Model
	focus    int
	prompted time.Time
	quitting bool
}

// New builds a model reading snapshots from updates.
func New(svc service.Launcher, updates <-chan data.Status) Model {
	path := textinput.New()
	path.Prompt = "Install path  "
	cmd := textinput.New()
	cmd.Prompt = "Command line  "
	cmd.Placeholder = data.CommandPlaceholder

	m := Model{
		svc:      svc,
		updates:  updates,
		status:   svc.Status(),
		keys:     newKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient()),
		inputs:   []textinput.Model{path, cmd},
		width:    80,
	}
	m.keys.sync(m.status)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitStatus(m.updates), fetchNews(m.svc))
}

func waitStatus(ch <-chan data.Status) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamEndMsg{}
		}
		return statusMsg(s)
	}
}

func fetchNews(svc service.Launcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		items, err := svc.News(ctx)
		return newsMsg{items: items, err: err}
	}
}

func dispatch(svc service.Launcher, a service.Action) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionMsg{action: a, err: svc.Do(ctx, a)}
	}
}

func save(svc service.Launcher, s data.Settings) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return savedMsg{err: svc.ApplySettings(ctx, s)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-12)
		m.help.Width = msg.Width
		return m, nil

	case statusMsg:
		m.status = data.Status(msg)
		m.keys.sync(m.status)
		var cmd tea.Cmd
		if m.status.PromptSettings && !m.editing && m.status.UpdatedAt.After(m.prompted) {
			m.prompted = m.status.UpdatedAt
			cmd = m.openSettings()
		}
		return m, tea.Batch(cmd, waitStatus(m.updates))

	case streamEndMsg:
		m.quitting = true
		return m, tea.Quit

	case newsMsg:
		m.news, m.newsErr = msg.items, msg.err
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.lastErr = ""
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.lastErr = "settings: " + msg.err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.closeSettings()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateSettings(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Primary):
		return m, dispatch(m.svc, service.ActionPrimary)
	case key.Matches(msg, m.keys.Toggle):
		return m, dispatch(m.svc, service.ActionToggle)
	case key.Matches(msg, m.keys.Verify):
		return m, dispatch(m.svc, service.ActionVerify)
	case key.Matches(msg, m.keys.Settings):
		cmd := m.openSettings()
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.closeSettings()
		return m, nil
	case key.Matches(msg, m.keys.Save):
		s := data.Settings{
			InstallPath: strings.TrimSpace(m.inputs[0].Value()),
			CommandLine: strings.TrimSpace(m.inputs[1].Value()),
		}
		if s.InstallPath == "" {
			m.lastErr = "settings: install path is required"
			return m, nil
		}
		return m, save(m.svc, s)
	case key.Matches(msg, m.keys.Next):
		m.inputs[m.focus].Blur()
		m.focus = (m.focus + 1) % len(m.inputs)
		cmd := m.inputs[m.focus].Focus()
		return m, cmd
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) openSettings() tea.Cmd {
	s := m.svc.Settings()
	m.inputs[0].SetValue(s.InstallPath)
	m.inputs[1].SetValue(s.CommandLine)
	m.editing = true
	m.focus = 0
	m.inputs[1].Blur()
	return m.inputs[0].Focus()
}

func (m *Model) closeSettings() {
	m.editing = false
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Unvanquished Launcher"))
	b.WriteString("\n")
	b.WriteString(StateStyle(m.status.State).Render(m.status.Message))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(float64(m.status.Percent) / 100))
	b.WriteString(fmt.Sprintf(" %3d%%\n", m.status.Percent))
	b.WriteString(m.renderTransfer())
	b.WriteString("\n")

	if m.editing {
		b.WriteString(m.renderSettings())
	} else {
		b.WriteString(m.renderNews())
	}
	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.lastErr))
	}
	b.WriteString("\n")
	if m.editing {
		b.WriteString(m.help.View(settingsKeys{&m.keys}))
	} else {
		b.WriteString(m.help.View(mainKeys{&m.keys}))
	}
	return b.String()
}

func (m Model) renderTransfer() string {
	s := m.status
	rows := []string{
		LabelStyle.Render("Size") + fmt.Sprintf("%s / %s", s.Completed, s.Total),
		LabelStyle.Render("Speed") + fmt.Sprintf("↓ %s  ↑ %s", s.DownloadRate, s.UploadRate),
		LabelStyle.Render("Installed") + orDash(s.Installed),
		LabelStyle.Render("Available") + orDash(s.Remote),
		LabelStyle.Render("Location") + orDash(s.InstallPath),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

func (m Model) renderNews() string {
	if m.newsErr != nil {
		return MutedStyle.Render("News unavailable.") + "\n"
	}
	if len(m.news) == 0 {
		return MutedStyle.Render("No news yet.") + "\n"
	}
	var b strings.Builder
	for i, n := range m.news {
		if i == maxNews {
			break
		}
		b.WriteString(NewsTitleStyle.Render(n.Title))
		if !n.Date.IsZero() {
			b.WriteString(MutedStyle.Render("  " + n.Date.Format("2006-01-02")))
		}
		b.WriteString("\n")
		if n.Excerpt != "" {
			b.WriteString(MutedStyle.Render(truncate(n.Excerpt, m.width-4)))
			b.WriteString("\n")
		}
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) renderSettings() string {
	rows := make([]string, 0, len(m.inputs)+1)
	for _, in := range m.inputs {
		rows = append(rows, in.View())
	}
	rows = append(rows, MutedStyle.Render(data.CommandPlaceholder+" is replaced by the game executable."))
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
