package editor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/sirupsen/logrus"
)

// Host bundles the collaborators an Editor works against. None of them is
// retained beyond the operation that uses it; the Editor holds only the
// beats parameter as state of its own.
type Host struct {
	Timeline  Timeline
	Tempo     TempoModel
	Transport Transport
	Sink      ErrorSink          // optional
	Logger    logrus.FieldLogger // optional
}

// Editor places and retunes tempo markers around the cursor
type Editor struct {
	timeline  Timeline
	tempo     TempoModel
	transport Transport
	sink      ErrorSink
	log       logrus.FieldLogger

	beats        float64
	initialTempo float64
	tolerance    float64
}

// New creates an Editor. Zero settings fall back to DefaultSettings.
func New(host Host, settings Settings) *Editor {
	def := DefaultSettings()
	if settings.Beats <= 0 {
		settings.Beats = def.Beats
	}
	if settings.InitialTempo <= 0 {
		settings.InitialTempo = def.InitialTempo
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = def.Tolerance
	}

	log := host.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Editor{
		timeline:     host.Timeline,
		tempo:        host.Tempo,
		transport:    host.Transport,
		sink:         host.Sink,
		log:          log,
		beats:        settings.Beats,
		initialTempo: settings.InitialTempo,
		tolerance:    settings.Tolerance,
	}
}

// Beats returns the NumberOfBeats parameter
func (e *Editor) Beats() float64 {
	return e.beats
}

// SetBeatsParameter parses text as the new NumberOfBeats. Invalid or
// non-positive input leaves the parameter unchanged; the return value tells
// whether it was applied.
func (e *Editor) SetBeatsParameter(text string) bool {
	v, err := ParseBeats(text)
	if err != nil {
		e.log.WithField("input", text).Debug("ignoring beats parameter")
		return false
	}
	e.beats = v
	return true
}

// ParseBeats parses a positive number of beats
func ParseBeats(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBeats, text)
	}
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBeats, text)
	}
	return v, nil
}

// InsertMarkerAtCursor places a marker with the initial tempo at the cursor
func (e *Editor) InsertMarkerAtCursor() error {
	cursor := e.transport.CurrentLocalBeat()
	marker := tempo.NewMarker(cursor, e.initialTempo)

	if err := e.timeline.Insert(marker); err != nil {
		return e.fail(&OpError{Op: "insert marker", Err: err})
	}
	e.timeline.Refresh()

	e.log.WithFields(logrus.Fields{
		"op":     "insert",
		"cursor": cursor,
		"bpm":    marker.Tempo,
	}).Info("inserted marker")
	return nil
}

// StretchPreviousMarker retunes the closest marker behind the cursor so that
// the cursor lands NumberOfBeats after it, then moves the cursor there.
func (e *Editor) StretchPreviousMarker() error {
	cursor := e.transport.CurrentLocalBeat()
	target := closestBehind(e.timeline.Markers(), cursor)
	if target == nil {
		return e.fail(ErrNoMarkerBehindCursor)
	}

	elapsed := cursor - target.Position
	if elapsed < e.tolerance {
		return e.fail(fmt.Errorf("%w: %.4f beats behind cursor", ErrDegenerateInterval, elapsed))
	}
	bpm := target.Tempo * e.beats / elapsed
	if !validTempo(bpm) {
		return e.fail(fmt.Errorf("%w: computed %v bpm", ErrDegenerateInterval, bpm))
	}

	e.log.WithFields(logrus.Fields{
		"op":     "stretch",
		"cursor": cursor,
		"beats":  e.beats,
		"marker": target.Position,
	}).Debug("stretching previous marker")

	old := target.Tempo
	target.Tempo = bpm
	e.timeline.Refresh()
	e.transport.SeekToLocalBeat(target.Position + e.beats)

	e.log.WithFields(logrus.Fields{
		"op":   "stretch",
		"from": old,
		"to":   bpm,
	}).Info("retuned marker")
	return nil
}

// InsertAndStretch stretches the previous marker and, if that succeeds,
// inserts a new marker at the updated cursor.
func (e *Editor) InsertAndStretch() error {
	if err := e.StretchPreviousMarker(); err != nil {
		return err
	}
	return e.InsertMarkerAtCursor()
}

// LegacyStretchTempo is the tempo an older stretch derived from the initial
// tempo constant instead of the marker's own tempo. It only agrees with
// StretchPreviousMarker while the marker still holds DefaultInitialTempo.
func LegacyStretchTempo(elapsedBeats, beats float64) float64 {
	return DefaultInitialTempo * beats / elapsedBeats
}

// secondsAt composes the project's canonical beat with the transport's
// clock. A local beat is never multiplied out to seconds directly.
func (e *Editor) secondsAt(local float64) (float64, error) {
	c, err := e.tempo.GlobalBeat(local)
	if err != nil {
		return 0, err
	}
	return e.transport.SecondsFromCanonicalBeat(c), nil
}

func (e *Editor) fail(err error) error {
	if e.sink != nil {
		e.sink.ReportError(err.Error())
	}
	e.log.WithError(err).Debug("operation failed")
	return err
}

// sortedMarkers returns the timeline's markers ordered by position
func sortedMarkers(tl Timeline) []*tempo.Marker {
	markers := tl.Markers()
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Position < markers[j].Position
	})
	return markers
}

func closestBehind(markers []*tempo.Marker, cursor float64) *tempo.Marker {
	var best *tempo.Marker
	for _, mk := range markers {
		if mk.Position < cursor && (best == nil || mk.Position > best.Position) {
			best = mk
		}
	}
	return best
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0) && !math.IsNaN(bpm)
}
