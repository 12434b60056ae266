// Package session binds one project, its transport, and an editor together
// for interactive hosts.
//
// A Session starts out not ready. Hosts call Load, Create, or Open once the
// project is available; operations invoked before that fail with
// ErrNotReady instead of running against missing collaborators. All
// operations are serialized, so an HTTP server may call them from
// concurrent handlers.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/debounce"
	"github.com/james-see/bpmhelper/internal/config"
	"github.com/james-see/bpmhelper/pkg/editor"
	"github.com/james-see/bpmhelper/pkg/project"
	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/james-see/bpmhelper/pkg/transport"
	"github.com/sirupsen/logrus"
)

// ErrNotReady is returned by operations invoked before a project is open
var ErrNotReady = errors.New("no project is open yet")

// Cursor is the playhead position in both coordinates
type Cursor struct {
	Beat    float64 `json:"beat"`
	Seconds float64 `json:"seconds"`
}

// State is a point-in-time copy of the session
type State struct {
	Name      string         `json:"name"`
	Path      string         `json:"path,omitempty"`
	BaseTempo float64        `json:"base_bpm"`
	Length    float64        `json:"length,omitempty"`
	Beats     float64        `json:"beats"`
	Cursor    Cursor         `json:"cursor"`
	Markers   []tempo.Marker `json:"markers"`
}

// Session owns an open project
type Session struct {
	cfg      config.Config
	log      logrus.FieldLogger
	notifier *Notifier

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	project   *project.Project
	transport *transport.Transport
	editor    *editor.Editor
	dirty     bool
	debounced func(f func())
}

// New creates a Session with no project
func New(cfg config.Config, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		cfg:      cfg,
		log:      log,
		notifier: NewNotifier(log, DefaultHistory),
		ready:    make(chan struct{}),
	}
	if cfg.Server.Autosave > 0 {
		s.debounced = debounce.New(cfg.Server.Autosave)
	}
	return s
}

// Load opens the project file at path
func (s *Session) Load(path string) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}
	s.Open(p)
	return nil
}

// Create opens a new, empty project that will be saved to path. A
// non-positive bpm uses the configured base tempo.
func (s *Session) Create(path string, bpm float64) *project.Project {
	if bpm <= 0 {
		bpm = s.cfg.BaseBPM
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := project.New(name, bpm)
	p.Path = path
	s.Open(p)
	return p
}

// Open makes p the session's project and marks the session ready
func (s *Session) Open(p *project.Project) {
	s.mu.Lock()
	s.project = p
	s.transport = transport.New(p.Tempo)
	s.editor = editor.New(editor.Host{
		Timeline:  p.Tempo,
		Tempo:     p.Tempo,
		Transport: s.transport,
		Sink:      s.notifier,
		Logger:    s.log.WithField("project", p.Name),
	}, s.cfg.EditorSettings())
	s.dirty = false
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"project": p.Name,
		"markers": p.Tempo.Len(),
	}).Info("project opened")
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready reports whether a project is open
func (s *Session) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until a project is open or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs an editor operation. Operations that may have changed the tempo
// map schedule an autosave.
func (s *Session) Do(fn func(ed *editor.Editor) error) error {
	if !s.Ready() {
		return ErrNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := fn(s.editor)
	var opErr *editor.OpError
	if err == nil || errors.As(err, &opErr) {
		s.markDirty()
	}
	return err
}

// Seek moves the cursor to a local beat
func (s *Session) Seek(beat float64) (Cursor, error) {
	return s.moveCursor(func(t *transport.Transport) { t.SeekToLocalBeat(beat) })
}

// SeekSeconds moves the cursor to a time in seconds
func (s *Session) SeekSeconds(seconds float64) (Cursor, error) {
	return s.moveCursor(func(t *transport.Transport) { t.SeekToSeconds(seconds) })
}

// Nudge moves the cursor by a number of beats
func (s *Session) Nudge(beats float64) (Cursor, error) {
	return s.moveCursor(func(t *transport.Transport) { t.Nudge(beats) })
}

func (s *Session) moveCursor(move func(t *transport.Transport)) (Cursor, error) {
	if !s.Ready() {
		return Cursor{}, ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	move(s.transport)
	return s.cursor(), nil
}

// SetBeats applies text as the beats parameter and returns the value in
// effect afterwards. Invalid text is ignored.
func (s *Session) SetBeats(text string) (float64, error) {
	if !s.Ready() {
		return 0, ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.SetBeatsParameter(text)
	return s.editor.Beats(), nil
}

// State returns a copy of the current session state
func (s *Session) State() (State, error) {
	if !s.Ready() {
		return State{}, ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.project.Tempo
	st := State{
		Name:      s.project.Name,
		Path:      s.project.Path,
		BaseTempo: m.BaseTempo,
		Length:    m.Length,
		Beats:     s.editor.Beats(),
		Cursor:    s.cursor(),
		Markers:   make([]tempo.Marker, 0, m.Len()),
	}
	for _, mk := range m.Markers() {
		st.Markers = append(st.Markers, *mk)
	}
	return st, nil
}

// Tempo returns a copy of the tempo map
func (s *Session) Tempo() (*tempo.Map, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Tempo.Clone(), nil
}

// Notifications returns recent user-facing failures
func (s *Session) Notifications() []string {
	return s.notifier.History()
}

// LastNotification returns the most recent user-facing failure
func (s *Session) LastNotification() string {
	return s.notifier.Last()
}

// Save writes the project to its file
func (s *Session) Save() error {
	if !s.Ready() {
		return ErrNotReady
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Close flushes unsaved changes
func (s *Session) Close() error {
	if !s.Ready() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.save()
}

func (s *Session) save() error {
	if err := s.project.Save(); err != nil {
		return fmt.Errorf("save %s: %w", s.project.Name, err)
	}
	s.dirty = false
	s.log.WithField("path", s.project.Path).Info("project saved")
	return nil
}

func (s *Session) markDirty() {
	s.dirty = true
	if s.debounced == nil || s.project.Path == "" {
		return
	}
	s.debounced(s.autosave)
}

func (s *Session) autosave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	if err := s.save(); err != nil {
		s.log.WithError(err).Error("autosave failed")
	}
}

func (s *Session) cursor() Cursor {
	return Cursor{
		Beat:    s.transport.CurrentLocalBeat(),
		Seconds: s.transport.CurrentSeconds(),
	}
}
