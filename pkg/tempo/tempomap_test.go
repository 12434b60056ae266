package tempo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMap(t *testing.T, base float64, markers ...[2]float64) *Map {
	t.Helper()
	m := NewMap(base)
	for _, mk := range markers {
		require.NoError(t, m.Insert(NewMarker(mk[0], mk[1])))
	}
	return m
}

func TestNewMapDefaultsTempo(t *testing.T) {
	tests := []struct {
		name string
		base float64
		want float64
	}{
		{"positive", 90, 90},
		{"zero", 0, DefaultTempo},
		{"negative", -10, DefaultTempo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMap(tt.base).BaseTempo; got != tt.want {
				t.Errorf("NewMap(%v).BaseTempo = %v, want %v", tt.base, got, tt.want)
			}
		})
	}
}

func TestInsertKeepsOrderAndAssignsID(t *testing.T) {
	m := buildMap(t, 120, [2]float64{16, 90}, [2]float64{0, 120}, [2]float64{8, 60})

	markers := m.Markers()
	require.Len(t, markers, 3)
	assert.Equal(t, 0.0, markers[0].Position)
	assert.Equal(t, 8.0, markers[1].Position)
	assert.Equal(t, 16.0, markers[2].Position)
	for _, mk := range markers {
		assert.NotEmpty(t, mk.ID)
	}

	found, ok := m.Find(markers[1].ID)
	require.True(t, ok)
	assert.Same(t, markers[1], found)
}

func TestInsertRejectsInvalidTempo(t *testing.T) {
	m := NewMap(120)
	for _, bpm := range []float64{0, -5} {
		err := m.Insert(NewMarker(4, bpm))
		if !errors.Is(err, ErrInvalidTempo) {
			t.Errorf("Insert(bpm=%v) error = %v, want ErrInvalidTempo", bpm, err)
		}
	}
	assert.Equal(t, 0, m.Len())
}

func TestDeleteByIdentity(t *testing.T) {
	m := buildMap(t, 120, [2]float64{0, 120}, [2]float64{4, 60})
	target := m.Markers()[1]

	require.NoError(t, m.Delete(target))
	assert.Equal(t, 1, m.Len())

	err := m.Delete(target)
	assert.ErrorIs(t, err, ErrMarkerNotFound)

	// an equal but distinct marker is not the stored one
	err = m.Delete(NewMarker(0, 120))
	assert.ErrorIs(t, err, ErrMarkerNotFound)
}

func TestSecondsAtAcrossSegments(t *testing.T) {
	// 0..4 at 120 (2s), 4..8 at 60 (4s), then 240
	m := buildMap(t, 120, [2]float64{0, 120}, [2]float64{4, 60}, [2]float64{8, 240})

	tests := []struct {
		beat    float64
		seconds float64
	}{
		{0, 0},
		{2, 1},
		{4, 2},
		{6, 4},
		{8, 6},
		{12, 7},
	}

	for _, tt := range tests {
		got, err := m.SecondsAt(tt.beat)
		require.NoError(t, err)
		assert.InDelta(t, tt.seconds, got, 1e-9, "SecondsAt(%v)", tt.beat)
	}
}

func TestGlobalBeatBeforeFirstMarkerUsesBaseTempo(t *testing.T) {
	m := buildMap(t, 100, [2]float64{10, 50})

	c, err := m.GlobalBeat(5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, c)

	// 2 beats at 50 bpm last as long as 4 beats at 100
	c, err = m.GlobalBeat(12)
	require.NoError(t, err)
	assert.InDelta(t, 14.0, c, 1e-9)
}

func TestGlobalBeatOutsideSong(t *testing.T) {
	m := buildMap(t, 120, [2]float64{0, 120})
	m.Length = 32

	for _, beat := range []float64{-1, 33} {
		_, err := m.GlobalBeat(beat)
		if !errors.Is(err, ErrOutsideSong) {
			t.Errorf("GlobalBeat(%v) error = %v, want ErrOutsideSong", beat, err)
		}
	}

	_, err := m.GlobalBeat(32)
	assert.NoError(t, err)
}

func TestBeatAtRoundTrip(t *testing.T) {
	m := buildMap(t, 128,
		[2]float64{0, 1000},
		[2]float64{0.5, 97.3},
		[2]float64{9.25, 181},
		[2]float64{17, 60},
	)

	for b := 0.0; b < 40; b += 0.37 {
		s, err := m.SecondsAt(b)
		require.NoError(t, err)
		assert.InDelta(t, b, m.BeatAt(s), 1e-9, "round trip at beat %v", b)
	}
}

func TestRefreshRebuildsStaleOffsets(t *testing.T) {
	m := buildMap(t, 120, [2]float64{0, 120}, [2]float64{4, 120})
	before, err := m.SecondsAt(8)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, before, 1e-9)

	// editing a field only takes effect after Refresh
	m.Markers()[0].Tempo = 60
	stale, err := m.SecondsAt(8)
	require.NoError(t, err)
	assert.InDelta(t, before, stale, 1e-9)

	m.Refresh()
	after, err := m.SecondsAt(8)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, after, 1e-9)
}

func TestTempoAt(t *testing.T) {
	m := buildMap(t, 120, [2]float64{4, 60}, [2]float64{8, 90})

	assert.Equal(t, 120.0, m.TempoAt(0))
	assert.Equal(t, 60.0, m.TempoAt(4))
	assert.Equal(t, 60.0, m.TempoAt(7.9))
	assert.Equal(t, 90.0, m.TempoAt(100))
}

func TestCloneIsIndependent(t *testing.T) {
	m := buildMap(t, 120, [2]float64{0, 120}, [2]float64{4, 60})
	c := m.Clone()

	c.Markers()[1].Tempo = 30
	c.Refresh()

	assert.Equal(t, 60.0, m.Markers()[1].Tempo)
	assert.Equal(t, m.Markers()[1].ID, c.Markers()[1].ID)
}

func TestMarkerOn(t *testing.T) {
	mk := NewMarker(8, 120)

	assert.True(t, mk.On(8))
	assert.True(t, mk.On(8.0005))
	assert.False(t, mk.On(8.002))
	assert.False(t, mk.On(7.99))
}
