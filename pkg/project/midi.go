package project

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/james-see/bpmhelper/pkg/tempo"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerQuarter is the resolution of written MIDI files. Marker positions
// are quantized to it.
const TicksPerQuarter = 960

// ParseMIDI reads the tempo changes of a Standard MIDI File as markers. The
// tempo at tick 0 becomes the base tempo as well.
func ParseMIDI(data []byte) (*Project, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	resolution := float64(TicksPerQuarter)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = float64(mt.Resolution())
	}

	type tempoEvent struct {
		tick int64
		bpm  float64
	}
	var events []tempoEvent

	for _, track := range s.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				events = append(events, tempoEvent{tick: tick, bpm: bpm})
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	base := tempo.DefaultTempo
	if len(events) > 0 && events[0].tick == 0 {
		base = events[0].bpm
	}

	p := New("", base)
	for _, ev := range events {
		mk := tempo.NewMarker(float64(ev.tick)/resolution, ev.bpm)
		if err := p.Tempo.Insert(mk); err != nil {
			return nil, fmt.Errorf("tempo change at tick %d: %w", ev.tick, err)
		}
	}
	return p, nil
}

// GenerateMIDI writes the tempo map as a single-track MIDI file
func (p *Project) GenerateMIDI() ([]byte, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var track smf.Track
	if p.Name != "" {
		track.Add(0, smf.MetaTrackSequenceName(p.Name))
	}
	track.Add(0, smf.MetaMeter(4, 4))

	markers := p.Tempo.Markers()
	if len(markers) == 0 || toTicks(markers[0].Position) > 0 {
		track.Add(0, smf.MetaTempo(p.Tempo.BaseTempo))
	}

	var current uint32
	for _, mk := range markers {
		tick := toTicks(mk.Position)
		track.Add(tick-current, smf.MetaTempo(mk.Tempo))
		current = tick
	}

	var end uint32
	if p.Tempo.Length > 0 {
		if last := toTicks(p.Tempo.Length); last > current {
			end = last - current
		}
	}
	track.Close(end)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

func toTicks(beat float64) uint32 {
	if beat <= 0 {
		return 0
	}
	return uint32(math.Round(beat * TicksPerQuarter))
}
