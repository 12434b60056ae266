// Package tui provides a terminal user interface for bpmhelper
package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/bpmhelper/pkg/editor"
	"github.com/james-see/bpmhelper/pkg/session"
)

var (
	// Primary colors - metronome amber on slate
	amber     = lipgloss.Color("#FFB000")
	cream     = lipgloss.Color("#F5E6C8")
	slateGray = lipgloss.Color("#2E3440")
	dimGray   = lipgloss.Color("#666666")
	alertRed  = lipgloss.Color("#FF5555")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(amber).
			Background(slateGray).
			Padding(0, 2).
			MarginBottom(1)

	markerStyle = lipgloss.NewStyle().
			Foreground(cream).
			PaddingLeft(2)

	cursorStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(amber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(1, 2)

	errorBoxStyle = boxStyle.
			BorderForeground(alertRed)
)

// State represents the current TUI state
type State int

const (
	StateFilePicker State = iota
	StateLoading
	StateEditor
)

const (
	nudgeSmall = 0.25
	nudgeLarge = 1.0
)

// Model represents the TUI model
type Model struct {
	state      State
	session    *session.Session
	path       string
	filePicker filepicker.Model
	spinner    spinner.Model
	beats      textinput.Model
	help       help.Model
	keys       keyMap
	status     string
	err        error
	width      int
	height     int
}

// projectLoadedMsg signals that the session has a project
type projectLoadedMsg struct {
	err error
}

// New creates a new TUI model for s. With a ready session it opens straight
// into the editor; with a path it loads that project first.
func New(s *session.Session, path string) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".yaml", ".yml", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(amber)

	ti := textinput.New()
	ti.Prompt = "beats: "
	ti.CharLimit = 12
	ti.Width = 12

	m := Model{
		state:      StateFilePicker,
		session:    s,
		path:       path,
		filePicker: fp,
		spinner:    sp,
		beats:      ti,
		help:       help.New(),
		keys:       keys,
	}
	switch {
	case s.Ready():
		m.enterEditor()
	case path != "":
		m.state = StateLoading
	}
	return m
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	switch m.state {
	case StateLoading:
		return tea.Batch(m.spinner.Tick, m.loadProject())
	case StateFilePicker:
		return m.filePicker.Init()
	}
	return nil
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q", "ctrl+c", "esc":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.path = path
			m.state = StateLoading
			return m, tea.Batch(m.spinner.Tick, m.loadProject())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case projectLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateFilePicker
			return m, m.filePicker.Init()
		}
		m.enterEditor()
		return m, nil

	case tea.KeyMsg:
		if m.state == StateEditor {
			return m.updateEditor(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) enterEditor() {
	m.state = StateEditor
	m.err = nil
	if st, err := m.session.State(); err == nil {
		m.beats.SetValue(strconv.FormatFloat(st.Beats, 'f', -1, 64))
		m.status = fmt.Sprintf("opened %s", st.Name)
	}
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.beats.Focused() {
		switch msg.String() {
		case "tab", "enter", "esc":
			m.beats.Blur()
			m.syncBeats()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.beats, cmd = m.beats.Update(msg)
		// every keystroke is applied; invalid text keeps the previous value
		if _, err := m.session.SetBeats(m.beats.Value()); err != nil {
			m.err = err
		}
		return m, cmd
	}

	// errors stay on screen until the next key
	m.err = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Back):
		m.nudge(-nudgeSmall)
	case key.Matches(msg, m.keys.Forward):
		m.nudge(nudgeSmall)
	case key.Matches(msg, m.keys.BackBeat):
		m.nudge(-nudgeLarge)
	case key.Matches(msg, m.keys.FwdBeat):
		m.nudge(nudgeLarge)
	case key.Matches(msg, m.keys.Insert):
		m.run("inserted marker", (*editor.Editor).InsertMarkerAtCursor)
	case key.Matches(msg, m.keys.Stretch):
		m.run("stretched previous marker", (*editor.Editor).StretchPreviousMarker)
	case key.Matches(msg, m.keys.InsStr):
		m.run("stretched and inserted", (*editor.Editor).InsertAndStretch)
	case key.Matches(msg, m.keys.Rebalance):
		m.run("rebalanced", (*editor.Editor).Rebalance)
	case key.Matches(msg, m.keys.Beats):
		cmd := m.beats.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Save):
		if err := m.session.Save(); err != nil {
			m.err = err
		} else {
			m.status = "saved"
		}
	}
	return m, nil
}

func (m *Model) run(done string, op func(*editor.Editor) error) {
	if err := m.session.Do(op); err != nil {
		m.err = err
		return
	}
	m.status = done
}

func (m *Model) nudge(beats float64) {
	if _, err := m.session.Nudge(beats); err != nil {
		m.err = err
	}
}

// syncBeats shows the value in effect once editing ends
func (m *Model) syncBeats() {
	if st, err := m.session.State(); err == nil {
		m.beats.SetValue(strconv.FormatFloat(st.Beats, 'f', -1, 64))
	}
}

func (m Model) loadProject() tea.Cmd {
	s, path := m.session, m.path
	return func() tea.Msg {
		err := s.Load(path)
		if errors.Is(err, os.ErrNotExist) {
			s.Create(path, 0)
			err = nil
		}
		return projectLoadedMsg{err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" BPM HELPER "))
	s.WriteString("\n")

	switch m.state {
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateLoading:
		s.WriteString(m.viewLoading())
	case StateEditor:
		s.WriteString(m.viewEditor())
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorBoxStyle.Render(errorStyle.Render("✗ " + m.err.Error())))
	}

	s.WriteString("\n")
	if m.state == StateEditor {
		s.WriteString(m.help.View(m.keys))
	} else {
		s.WriteString(labelStyle.Render("↑/↓: navigate • enter: select • q: quit"))
	}

	return s.String()
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT PROJECT "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())

	return s.String()
}

func (m Model) viewLoading() string {
	return boxStyle.Render(fmt.Sprintf("%s Loading %s...", m.spinner.View(), filepath.Base(m.path)))
}

func (m Model) viewEditor() string {
	st, err := m.session.State()
	if err != nil {
		return boxStyle.Render(errorStyle.Render(err.Error()))
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(st.Name))))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %8.3f   %s %8.3fs   %s %g\n",
		labelStyle.Render("beat"), st.Cursor.Beat,
		labelStyle.Render("time"), st.Cursor.Seconds,
		labelStyle.Render("base bpm"), st.BaseTempo))
	s.WriteString(m.beats.View())
	s.WriteString("\n\n")

	tm, err := m.session.Tempo()
	if err != nil {
		return boxStyle.Render(errorStyle.Render(err.Error()))
	}

	cursorDrawn := false
	drawCursor := func() {
		s.WriteString(cursorStyle.Render(fmt.Sprintf("▸ %9.3f  cursor", st.Cursor.Beat)))
		s.WriteString("\n")
		cursorDrawn = true
	}
	for _, mk := range st.Markers {
		if !cursorDrawn && mk.Position > st.Cursor.Beat {
			drawCursor()
		}
		secs, _ := tm.SecondsAt(mk.Position)
		s.WriteString(markerStyle.Render(fmt.Sprintf("  %9.3f  %9.3f bpm  %9.3fs", mk.Position, mk.Tempo, secs)))
		s.WriteString("\n")
	}
	if !cursorDrawn {
		drawCursor()
	}

	if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
	}

	return boxStyle.Render(s.String())
}

// Run starts the TUI application
func Run(s *session.Session, path string) error {
	p := tea.NewProgram(New(s, path), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
