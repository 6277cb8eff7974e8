package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/tinoosan/launcher/internal/data"
)

type keyMap struct {
	Primary  key.Binding
	Toggle   key.Binding
	Verify   key.Binding
	Settings key.Binding
	Quit     key.Binding

	Next   key.Binding
	Save   key.Binding
	Cancel key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Primary:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "play")),
		Toggle:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Verify:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify")),
		Settings: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Next:     key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "next field")),
		Save:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// sync enables the bindings the status allows and labels the primary one
// after the action it dispatches.
func (k *keyMap) sync(s data.Status) {
	k.Primary.SetEnabled(s.Action != data.ActionNone)
	k.Primary.SetHelp("space", string(s.Action))
	k.Toggle.SetEnabled(s.Action == data.ActionPause || s.Action == data.ActionResume)
	if s.Action == data.ActionResume {
		k.Toggle.SetHelp("p", "resume")
	} else {
		k.Toggle.SetHelp("p", "pause")
	}
	k.Verify.SetEnabled(s.CanVerify)
}

// mainKeys implements help.KeyMap for the main view.
type mainKeys struct{ k *keyMap }

func (m mainKeys) ShortHelp() []key.Binding {
	return []key.Binding{m.k.Primary, m.k.Toggle, m.k.Verify, m.k.Settings, m.k.Quit}
}

func (m mainKeys) FullHelp() [][]key.Binding { return [][]key.Binding{m.ShortHelp()} }

type settingsKeys struct{ k *keyMap }

func (m settingsKeys) ShortHelp() []key.Binding {
	return []key.Binding{m.k.Next, m.k.Save, m.k.Cancel}
}

func (m settingsKeys) FullHelp() [][]key.Binding { return [][]key.Binding{m.ShortHelp()} }
