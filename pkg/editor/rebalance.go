package editor

import (
	"fmt"
	"math"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"github.com/sirupsen/logrus"
)

// Neighbors are the markers around the cursor that Rebalance looks at. B1 and
// F1 are the closest markers behind and ahead, B2 and F2 the second closest.
// Any of them may be nil.
type Neighbors struct {
	B2, B1, F1, F2 *tempo.Marker

	// Closest is the neighbor nearest the cursor; ties go to the earlier
	// slot in B2, B1, F1, F2 order.
	Closest *tempo.Marker
}

// Neighbors returns the markers around a local beat
func (e *Editor) Neighbors(cursor float64) Neighbors {
	return neighborsOf(sortedMarkers(e.timeline), cursor)
}

func neighborsOf(markers []*tempo.Marker, cursor float64) Neighbors {
	var n Neighbors
	for _, mk := range markers {
		switch {
		case mk.Position < cursor:
			n.B2, n.B1 = n.B1, mk
		case mk.Position > cursor:
			if n.F1 == nil {
				n.F1 = mk
			} else if n.F2 == nil {
				n.F2 = mk
			}
		}
	}

	best := math.Inf(1)
	for _, mk := range []*tempo.Marker{n.B2, n.B1, n.F1, n.F2} {
		if mk == nil {
			continue
		}
		if d := math.Abs(mk.Position - cursor); d < best {
			best = d
			n.Closest = mk
		}
	}
	return n
}

// pivot names the roles of the markers Rebalance retunes
type pivot struct {
	back  *tempo.Marker // gets a tempo that lands moved on the cursor
	moved *tempo.Marker // pinned to the cursor's time
	front *tempo.Marker // optional, keeps its time
}

// pivot picks the first layout rule that matches the neighbors
func (n Neighbors) pivot() (pivot, bool) {
	b2, b1, f1, f2 := n.B2 != nil, n.B1 != nil, n.F1 != nil, n.F2 != nil

	switch {
	case b2 && b1 && !f1 && !f2:
		return pivot{back: n.B2, moved: n.B1}, true
	case (!b2 && b1 && f1 && !f2) || (b2 && b1 && f1 && !f2 && n.Closest == n.F1):
		return pivot{back: n.B1, moved: n.F1}, true
	case b2 && b1 && f1 && n.Closest == n.B1:
		return pivot{back: n.B2, moved: n.B1, front: n.F1}, true
	case b1 && f1 && f2 && n.Closest == n.F1:
		return pivot{back: n.B1, moved: n.F1, front: n.F2}, true
	}
	return pivot{}, false
}

// Rebalance moves the marker nearest the cursor to the cursor's time by
// retuning the segments on either side of it. Every marker other than the
// ones retuned keeps its absolute time and all positions stay put.
func (e *Editor) Rebalance() error {
	cursor := e.transport.CurrentLocalBeat()
	markers := sortedMarkers(e.timeline)

	for _, mk := range markers {
		if math.Abs(mk.Position-cursor) < e.tolerance {
			return e.fail(ErrCursorOnMarker)
		}
	}

	n := neighborsOf(markers, cursor)
	if len(markers) < 2 || n.B1 == nil {
		return e.fail(ErrInsufficientMarkers)
	}
	p, ok := n.pivot()
	if !ok {
		return e.fail(ErrUnmatchedConfiguration)
	}

	// All times are read from the unmodified map. A tempo only governs the
	// beats after its marker, so back's time is the same before and after
	// moved is retuned.
	currentSeconds, err := e.secondsAt(cursor)
	if err != nil {
		return e.fail(err)
	}

	var movedTempo float64
	if p.front != nil {
		frontSeconds, err := e.secondsAt(p.front.Position)
		if err != nil {
			return e.fail(err)
		}
		movedTempo, err = tempoOver(p.front.Position-p.moved.Position, frontSeconds-currentSeconds)
		if err != nil {
			return e.fail(err)
		}
	}

	backSeconds, err := e.secondsAt(p.back.Position)
	if err != nil {
		return e.fail(err)
	}
	backTempo, err := tempoOver(p.moved.Position-p.back.Position, currentSeconds-backSeconds)
	if err != nil {
		return e.fail(err)
	}

	log := e.log.WithFields(logrus.Fields{
		"op":      "rebalance",
		"cursor":  cursor,
		"seconds": currentSeconds,
		"back":    p.back.Position,
		"moved":   p.moved.Position,
	})
	log.Debug("rebalancing markers")

	if p.front != nil {
		if err := e.retune(p.front, p.moved, movedTempo); err != nil {
			return e.fail(err)
		}
		log = log.WithField("moved_bpm", movedTempo)
	}
	if err := e.retune(p.moved, p.back, backTempo); err != nil {
		return e.fail(err)
	}

	e.transport.SeekToSeconds(currentSeconds)
	log.WithField("back_bpm", backTempo).Info("rebalanced markers")
	return nil
}

// retune sets target's tempo while lifted is out of the timeline so that the
// store recomputes everything it derives from the marker set.
func (e *Editor) retune(lifted, target *tempo.Marker, bpm float64) error {
	if err := e.timeline.Delete(lifted); err != nil {
		return &OpError{Op: "rebalance: remove marker", Err: err}
	}
	target.Tempo = bpm
	e.timeline.Refresh()

	if err := e.timeline.Insert(lifted); err != nil {
		return &OpError{Op: "rebalance: restore marker", Err: err}
	}
	e.timeline.Refresh()
	return nil
}

// tempoOver returns the tempo that fits beats into seconds
func tempoOver(beats, seconds float64) (float64, error) {
	if !(beats > 0) || !(seconds > 0) {
		return 0, fmt.Errorf("%w: %.4f beats over %.4fs", ErrDegenerateInterval, beats, seconds)
	}
	bpm := 60 * beats / seconds
	if !validTempo(bpm) {
		return 0, fmt.Errorf("%w: computed %v bpm", ErrDegenerateInterval, bpm)
	}
	return bpm, nil
}
