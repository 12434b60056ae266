// Package editor implements the tempo marker operations of the BPM helper
package editor

import (
	"errors"
	"fmt"

	"github.com/james-see/bpmhelper/pkg/tempo"
)

const (
	// DefaultBeats is the initial number of beats spanned by a stretch
	DefaultBeats = 1.0

	// DefaultInitialTempo marks the start of a timed region. The segment it
	// opens is short enough to be visually negligible.
	DefaultInitialTempo = 1000.0
)

var (
	ErrNoMarkerBehindCursor   = errors.New("no BPM events found behind cursor")
	ErrCursorOnMarker         = errors.New("no reason to adjust if cursor is already on a marker")
	ErrInsufficientMarkers    = errors.New("need at least one marker behind cursor and two in map to adjust")
	ErrUnmatchedConfiguration = errors.New("markers around cursor do not match any adjustable layout")
	ErrDegenerateInterval     = errors.New("interval is too small to compute a tempo")
	ErrInvalidBeats           = errors.New("number of beats must be a positive number")
)

// Timeline is the store that owns the tempo markers
type Timeline interface {
	Markers() []*tempo.Marker
	Insert(marker *tempo.Marker) error
	Delete(marker *tempo.Marker) error
	Refresh()
}

// TempoModel expands local beats into canonical beats
type TempoModel interface {
	GlobalBeat(local float64) (float64, error)
}

// Transport exposes and moves the playhead
type Transport interface {
	CurrentLocalBeat() float64
	CurrentSeconds() float64
	SecondsFromCanonicalBeat(canonical float64) float64
	SeekToLocalBeat(beat float64)
	SeekToSeconds(seconds float64)
}

// ErrorSink receives user-facing failures
type ErrorSink interface {
	ReportError(message string)
}

// ErrorSinkFunc adapts a function to ErrorSink
type ErrorSinkFunc func(message string)

// ReportError calls f(message)
func (f ErrorSinkFunc) ReportError(message string) { f(message) }

// OpError records a failure of the timeline store in the middle of an operation
type OpError struct {
	Op  string // operation being run
	Err error  // store error
}

// Error returns the error message
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the store error
func (e *OpError) Unwrap() error {
	return e.Err
}

// Settings configures an Editor
type Settings struct {
	Beats        float64 // initial NumberOfBeats parameter
	InitialTempo float64 // tempo of markers placed by InsertMarkerAtCursor
	Tolerance    float64 // beat distance treated as "on" a marker
}

// DefaultSettings returns the settings used when none are given
func DefaultSettings() Settings {
	return Settings{
		Beats:        DefaultBeats,
		InitialTempo: DefaultInitialTempo,
		Tolerance:    tempo.Tolerance,
	}
}
