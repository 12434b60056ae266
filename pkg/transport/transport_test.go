package transport

import (
	"testing"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMap(t *testing.T) *tempo.Map {
	t.Helper()
	m := tempo.NewMap(120)
	require.NoError(t, m.Insert(tempo.NewMarker(0, 120)))
	require.NoError(t, m.Insert(tempo.NewMarker(4, 60)))
	return m
}

func TestSeekToLocalBeat(t *testing.T) {
	tr := New(newMap(t))

	tr.SeekToLocalBeat(6)
	assert.InDelta(t, 4.0, tr.CurrentSeconds(), 1e-9)
	assert.InDelta(t, 6.0, tr.CurrentLocalBeat(), 1e-9)
}

func TestSeekClamps(t *testing.T) {
	m := newMap(t)
	m.Length = 8
	tr := New(m)

	tr.SeekToLocalBeat(-3)
	assert.Equal(t, 0.0, tr.CurrentSeconds())

	tr.SeekToLocalBeat(100)
	assert.InDelta(t, 8.0, tr.CurrentLocalBeat(), 1e-9)

	tr.SeekToSeconds(-1)
	assert.Equal(t, 0.0, tr.CurrentSeconds())

	tr.SeekToSeconds(60)
	assert.InDelta(t, 6.0, tr.CurrentSeconds(), 1e-9)
}

func TestCursorFollowsTempoChanges(t *testing.T) {
	m := newMap(t)
	tr := New(m)
	tr.SeekToLocalBeat(8)
	require.InDelta(t, 6.0, tr.CurrentSeconds(), 1e-9)

	// the time stays put while the beat under it moves
	m.Markers()[1].Tempo = 120
	m.Refresh()
	assert.InDelta(t, 6.0, tr.CurrentSeconds(), 1e-9)
	assert.InDelta(t, 12.0, tr.CurrentLocalBeat(), 1e-9)
}

func TestNudge(t *testing.T) {
	tr := New(newMap(t))

	tr.Nudge(2)
	assert.InDelta(t, 2.0, tr.CurrentLocalBeat(), 1e-9)
	tr.Nudge(-5)
	assert.Equal(t, 0.0, tr.CurrentLocalBeat())
}

func TestSecondsFromCanonicalBeat(t *testing.T) {
	tr := New(newMap(t))
	assert.InDelta(t, 2.0, tr.SecondsFromCanonicalBeat(4), 1e-9)
}
