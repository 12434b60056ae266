// Package transport provides the playhead of a project
package transport

import (
	"math"

	"github.com/james-see/bpmhelper/pkg/tempo"
)

// Transport keeps the cursor as an absolute time so that its beat position
// always follows the current tempo map.
type Transport struct {
	tempo   *tempo.Map
	seconds float64
}

// New creates a transport positioned at the start of the song
func New(m *tempo.Map) *Transport {
	return &Transport{tempo: m}
}

// CurrentLocalBeat returns the cursor position in local beats
func (t *Transport) CurrentLocalBeat() float64 {
	return t.tempo.BeatAt(t.seconds)
}

// CurrentSeconds returns the cursor position in seconds
func (t *Transport) CurrentSeconds() float64 {
	return t.seconds
}

// SecondsFromCanonicalBeat converts a canonical beat to seconds
func (t *Transport) SecondsFromCanonicalBeat(canonical float64) float64 {
	return t.tempo.SecondsFromCanonicalBeat(canonical)
}

// SeekToLocalBeat moves the cursor to a local beat, clamped to the song
func (t *Transport) SeekToLocalBeat(beat float64) {
	beat = t.clampBeat(beat)
	s, err := t.tempo.SecondsAt(beat)
	if err != nil {
		return
	}
	t.seconds = s
}

// SeekToSeconds moves the cursor to an absolute time, clamped to the song
func (t *Transport) SeekToSeconds(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if t.tempo.Length > 0 {
		if end, err := t.tempo.SecondsAt(t.tempo.Length); err == nil && seconds > end {
			seconds = end
		}
	}
	t.seconds = seconds
}

// Nudge moves the cursor by a number of local beats
func (t *Transport) Nudge(beats float64) {
	t.SeekToLocalBeat(t.CurrentLocalBeat() + beats)
}

func (t *Transport) clampBeat(beat float64) float64 {
	if math.IsNaN(beat) || beat < 0 {
		return 0
	}
	if t.tempo.Length > 0 && beat > t.tempo.Length {
		return t.tempo.Length
	}
	return beat
}
