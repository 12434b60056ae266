package editor

import (
	"errors"
	"testing"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/james-see/bpmhelper/pkg/transport"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects reported errors
type recorder struct {
	messages []string
}

func (r *recorder) ReportError(message string) {
	r.messages = append(r.messages, message)
}

type fixture struct {
	tempo     *tempo.Map
	transport *transport.Transport
	sink      *recorder
	editor    *Editor
}

// newFixture builds an editor over a map with base 120 and markers given as
// {beat, bpm} pairs.
func newFixture(t *testing.T, markers ...[2]float64) *fixture {
	t.Helper()
	m := tempo.NewMap(120)
	for _, mk := range markers {
		require.NoError(t, m.Insert(tempo.NewMarker(mk[0], mk[1])))
	}
	return newFixtureWith(t, m, m)
}

func newFixtureWith(t *testing.T, m *tempo.Map, tl Timeline) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	tr := transport.New(m)
	sink := &recorder{}
	ed := New(Host{
		Timeline:  tl,
		Tempo:     m,
		Transport: tr,
		Sink:      sink,
		Logger:    logger,
	}, Settings{})
	return &fixture{tempo: m, transport: tr, sink: sink, editor: ed}
}

func (f *fixture) seconds(t *testing.T, beat float64) float64 {
	t.Helper()
	s, err := f.tempo.SecondsAt(beat)
	require.NoError(t, err)
	return s
}

type markerState struct {
	id       string
	position float64
	tempo    float64
}

func snapshot(m *tempo.Map) []markerState {
	var out []markerState
	for _, mk := range m.Markers() {
		out = append(out, markerState{mk.ID, mk.Position, mk.Tempo})
	}
	return out
}

func TestNewAppliesDefaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, DefaultBeats, f.editor.Beats())
	assert.Equal(t, DefaultInitialTempo, f.editor.initialTempo)
	assert.Equal(t, tempo.Tolerance, f.editor.tolerance)
}

func TestSetBeatsParameter(t *testing.T) {
	tests := []struct {
		input   string
		applied bool
		want    float64
	}{
		{"2.5", true, 2.5},
		{" 4 ", true, 4},
		{"-1", false, 1},
		{"0", false, 1},
		{"abc", false, 1},
		{"", false, 1},
		{"NaN", false, 1},
		{"Inf", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := newFixture(t)
			if got := f.editor.SetBeatsParameter(tt.input); got != tt.applied {
				t.Errorf("SetBeatsParameter(%q) = %v, want %v", tt.input, got, tt.applied)
			}
			if f.editor.Beats() != tt.want {
				t.Errorf("Beats() = %v, want %v", f.editor.Beats(), tt.want)
			}
			assert.Empty(t, f.sink.messages, "invalid input is never reported")
		})
	}
}

func TestSetBeatsParameterKeepsPreviousValue(t *testing.T) {
	f := newFixture(t)

	require.True(t, f.editor.SetBeatsParameter("2.5"))
	assert.False(t, f.editor.SetBeatsParameter("-1"))
	assert.False(t, f.editor.SetBeatsParameter("abc"))
	assert.Equal(t, 2.5, f.editor.Beats())
}

func TestParseBeats(t *testing.T) {
	v, err := ParseBeats("3")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = ParseBeats("x")
	assert.ErrorIs(t, err, ErrInvalidBeats)
}

func TestInsertMarkerAtCursor(t *testing.T) {
	f := newFixture(t, [2]float64{0, 120}, [2]float64{16, 90})
	f.transport.SeekToLocalBeat(6)
	before := snapshot(f.tempo)
	cursorSeconds := f.transport.CurrentSeconds()

	require.NoError(t, f.editor.InsertMarkerAtCursor())

	markers := f.tempo.Markers()
	require.Len(t, markers, 3)
	assert.InDelta(t, 6.0, markers[1].Position, 1e-9)
	assert.Equal(t, DefaultInitialTempo, markers[1].Tempo)

	// existing markers and the cursor are untouched
	assert.Equal(t, before[0], markerState{markers[0].ID, markers[0].Position, markers[0].Tempo})
	assert.Equal(t, before[1], markerState{markers[2].ID, markers[2].Position, markers[2].Tempo})
	assert.InDelta(t, 6.0, f.transport.CurrentLocalBeat(), 1e-9)
	assert.InDelta(t, cursorSeconds, f.transport.CurrentSeconds(), 1e-12)
}

func TestInsertMarkerAtCursorUsesConfiguredTempo(t *testing.T) {
	m := tempo.NewMap(120)
	ed := New(Host{Timeline: m, Tempo: m, Transport: transport.New(m)}, Settings{InitialTempo: 500})

	require.NoError(t, ed.InsertMarkerAtCursor())
	assert.Equal(t, 500.0, m.Markers()[0].Tempo)
}

func TestStretchPreviousMarkerSingleMarker(t *testing.T) {
	f := newFixture(t, [2]float64{0, 120})
	f.transport.SeekToLocalBeat(10)
	require.True(t, f.editor.SetBeatsParameter("4"))

	require.NoError(t, f.editor.StretchPreviousMarker())

	target := f.tempo.Markers()[0]
	assert.InDelta(t, 48.0, target.Tempo, 1e-9)
	assert.InDelta(t, 4.0, f.transport.CurrentLocalBeat(), 1e-9)
	assert.Empty(t, f.sink.messages)
}

func TestStretchPreviousMarkerPicksNearest(t *testing.T) {
	f := newFixture(t, [2]float64{0, 120}, [2]float64{8, 90}, [2]float64{20, 100})
	f.transport.SeekToLocalBeat(11)
	cursorSeconds := f.transport.CurrentSeconds()
	require.True(t, f.editor.SetBeatsParameter("2"))

	require.NoError(t, f.editor.StretchPreviousMarker())

	markers := f.tempo.Markers()
	assert.Equal(t, 120.0, markers[0].Tempo, "farther marker untouched")
	assert.InDelta(t, 60.0, markers[1].Tempo, 1e-9)
	assert.Equal(t, 100.0, markers[2].Tempo, "marker ahead untouched")

	// the audio under the cursor is now the requested beat
	assert.InDelta(t, 10.0, f.transport.CurrentLocalBeat(), 1e-9)
	assert.InDelta(t, cursorSeconds, f.transport.CurrentSeconds(), 1e-9)
}

func TestStretchInvariant(t *testing.T) {
	for _, beats := range []string{"0.5", "1", "3", "7.25"} {
		t.Run(beats, func(t *testing.T) {
			f := newFixture(t, [2]float64{2, 140}, [2]float64{30, 60})
			f.transport.SeekToLocalBeat(9.3)
			require.True(t, f.editor.SetBeatsParameter(beats))

			require.NoError(t, f.editor.StretchPreviousMarker())

			target := f.tempo.Markers()[0]
			n := f.editor.Beats()
			span := f.seconds(t, target.Position+n) - f.seconds(t, target.Position)
			assert.InDelta(t, n*60/target.Tempo, span, 1e-9)
		})
	}
}

func TestStretchPreviousMarkerNoneBehind(t *testing.T) {
	f := newFixture(t, [2]float64{12, 120})
	f.transport.SeekToLocalBeat(4)
	before := snapshot(f.tempo)

	err := f.editor.StretchPreviousMarker()

	assert.ErrorIs(t, err, ErrNoMarkerBehindCursor)
	assert.Equal(t, before, snapshot(f.tempo))
	assert.Equal(t, []string{"no BPM events found behind cursor"}, f.sink.messages)
	assert.InDelta(t, 4.0, f.transport.CurrentLocalBeat(), 1e-9)
}

func TestStretchPreviousMarkerEmptyMap(t *testing.T) {
	f := newFixture(t)
	f.transport.SeekToLocalBeat(4)

	assert.ErrorIs(t, f.editor.StretchPreviousMarker(), ErrNoMarkerBehindCursor)
}

func TestStretchPreviousMarkerDegenerate(t *testing.T) {
	f := newFixture(t, [2]float64{4, 120})
	f.transport.SeekToLocalBeat(4.0001)
	before := snapshot(f.tempo)

	err := f.editor.StretchPreviousMarker()

	assert.ErrorIs(t, err, ErrDegenerateInterval)
	assert.Equal(t, before, snapshot(f.tempo))
	require.Len(t, f.sink.messages, 1)
}

func TestInsertAndStretch(t *testing.T) {
	f := newFixture(t)

	// mark the first beat, then find the beat heard half a second later
	require.NoError(t, f.editor.InsertMarkerAtCursor())
	f.transport.SeekToSeconds(0.5)
	require.NoError(t, f.editor.InsertAndStretch())

	markers := f.tempo.Markers()
	require.Len(t, markers, 2)
	assert.InDelta(t, 120.0, markers[0].Tempo, 1e-9)
	assert.InDelta(t, 1.0, markers[1].Position, 1e-9)
	assert.Equal(t, DefaultInitialTempo, markers[1].Tempo)
	assert.InDelta(t, 0.5, f.transport.CurrentSeconds(), 1e-9)
}

func TestInsertAndStretchFailureInsertsNothing(t *testing.T) {
	f := newFixture(t, [2]float64{12, 120})
	f.transport.SeekToLocalBeat(4)

	err := f.editor.InsertAndStretch()

	assert.ErrorIs(t, err, ErrNoMarkerBehindCursor)
	assert.Equal(t, 1, f.tempo.Len())
	assert.Len(t, f.sink.messages, 1)
}

func TestLegacyStretchTempo(t *testing.T) {
	f := newFixture(t, [2]float64{0, DefaultInitialTempo})
	f.transport.SeekToLocalBeat(25)

	require.NoError(t, f.editor.StretchPreviousMarker())
	assert.InDelta(t, LegacyStretchTempo(25, 1), f.tempo.Markers()[0].Tempo, 1e-9)

	// once retuned, the constant no longer describes the marker
	f.transport.SeekToLocalBeat(3)
	require.NoError(t, f.editor.StretchPreviousMarker())
	assert.NotEqual(t, LegacyStretchTempo(3, 1), f.tempo.Markers()[0].Tempo)
}

// failingTimeline rejects inserts once armed
type failingTimeline struct {
	*tempo.Map
	failInsert bool
}

var errStoreRejected = errors.New("store rejected mutation")

func (f *failingTimeline) Insert(marker *tempo.Marker) error {
	if f.failInsert {
		return errStoreRejected
	}
	return f.Map.Insert(marker)
}

func TestInsertMarkerAtCursorStoreFailure(t *testing.T) {
	m := tempo.NewMap(120)
	tl := &failingTimeline{Map: m, failInsert: true}
	f := newFixtureWith(t, m, tl)

	err := f.editor.InsertMarkerAtCursor()

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "insert marker", opErr.Op)
	assert.ErrorIs(t, err, errStoreRejected)
	assert.Len(t, f.sink.messages, 1)
}

func TestErrorSinkFunc(t *testing.T) {
	var got string
	var sink ErrorSink = ErrorSinkFunc(func(message string) { got = message })

	sink.ReportError("boom")
	assert.Equal(t, "boom", got)
}
