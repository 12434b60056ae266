package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Back      key.Binding
	Forward   key.Binding
	BackBeat  key.Binding
	FwdBeat   key.Binding
	Insert    key.Binding
	Stretch   key.Binding
	InsStr    key.Binding
	Rebalance key.Binding
	Beats     key.Binding
	Save      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Back: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "back ¼ beat"),
	),
	Forward: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "forward ¼ beat"),
	),
	BackBeat: key.NewBinding(
		key.WithKeys("H"),
		key.WithHelp("H", "back 1 beat"),
	),
	FwdBeat: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "forward 1 beat"),
	),
	Insert: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "insert marker"),
	),
	Stretch: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stretch previous"),
	),
	InsStr: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "insert+stretch"),
	),
	Rebalance: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rebalance"),
	),
	Beats: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "edit beats"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Insert, k.Stretch, k.InsStr, k.Rebalance, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Back, k.Forward, k.BackBeat, k.FwdBeat},
		{k.Insert, k.Stretch, k.InsStr, k.Rebalance},
		{k.Beats, k.Save, k.Help, k.Quit},
	}
}
