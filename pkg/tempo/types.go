// Package tempo provides the tempo marker timeline and beat/time conversion
package tempo

import "errors"

const (
	// DefaultTempo is used when a project carries no tempo of its own
	DefaultTempo = 120.0

	// Tolerance is the beat distance under which a position counts as "on" a marker
	Tolerance = 0.001
)

var (
	// ErrOutsideSong is returned when a beat lies outside any defined segment
	ErrOutsideSong = errors.New("beat lies outside the song")

	// ErrInvalidTempo is returned when a marker's tempo is not a positive finite number
	ErrInvalidTempo = errors.New("tempo must be a positive number")

	// ErrMarkerNotFound is returned when deleting a marker the map does not hold
	ErrMarkerNotFound = errors.New("marker not found")
)

// Marker is a point on the timeline where tempo changes
type Marker struct {
	ID       string  `json:"id" yaml:"id,omitempty"`
	Position float64 `json:"beat" yaml:"beat"` // local beat coordinate
	Tempo    float64 `json:"bpm" yaml:"bpm"`   // beats per minute from Position onwards
}

// NewMarker creates a marker at the given local beat
func NewMarker(position, bpm float64) *Marker {
	return &Marker{Position: position, Tempo: bpm}
}

// On reports whether beat is within Tolerance of the marker
func (m *Marker) On(beat float64) bool {
	d := m.Position - beat
	return d < Tolerance && d > -Tolerance
}
