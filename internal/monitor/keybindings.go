package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap holds the dashboard bindings. It implements help.KeyMap.
type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Detail   key.Binding
	Back     key.Binding
	Clear    key.Binding
	ClearAll key.Binding
	Help     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous sensor"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next sensor"),
		),
		Detail: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear sensor"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear all"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Down, k.Detail, k.Clear, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Detail, k.Back},
		{k.Clear, k.ClearAll, k.Help, k.Quit},
	}
}

// HandleKeyMsg processes keyboard input. Returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key.Matches(msg, m.keys.Back) {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return true, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.sensors)-1 {
			m.selected++
		}
		return true, nil

	case key.Matches(msg, m.keys.Detail):
		if len(m.sensors) > 0 {
			m.viewMode = ViewDetail
		}
		return true, nil

	case key.Matches(msg, m.keys.Back):
		m.viewMode = ViewGrid
		return true, nil

	case key.Matches(msg, m.keys.Clear):
		m.clearSelected()
		return true, nil

	case key.Matches(msg, m.keys.ClearAll):
		m.clearAll()
		return true, nil
	}

	return false, nil
}
