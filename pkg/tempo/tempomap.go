package tempo

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Map is the ordered set of tempo markers of a project.
//
// Canonical beats are counted at BaseTempo from the start of the song, so a
// canonical beat converts to seconds with a single multiply. The canonical
// offset of every marker is cached and only rebuilt by Insert, Delete and
// Refresh; editing a marker's fields in place leaves the cache stale until
// Refresh is called.
type Map struct {
	BaseTempo float64 // tempo before the first marker
	Length    float64 // song length in local beats, 0 for unbounded

	markers []*Marker
	offsets []float64 // canonical beat of markers[i]
}

// NewMap creates an empty map with the given base tempo
func NewMap(baseTempo float64) *Map {
	if baseTempo <= 0 || math.IsNaN(baseTempo) || math.IsInf(baseTempo, 0) {
		baseTempo = DefaultTempo
	}
	return &Map{BaseTempo: baseTempo}
}

// Markers returns the markers ordered by position. The slice is a copy but
// the markers are shared with the map.
func (m *Map) Markers() []*Marker {
	out := make([]*Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// Len returns the number of markers
func (m *Map) Len() int {
	return len(m.markers)
}

// Find returns the marker with the given ID
func (m *Map) Find(id string) (*Marker, bool) {
	for _, mk := range m.markers {
		if mk.ID == id {
			return mk, true
		}
	}
	return nil, false
}

// Insert adds a marker to the map, assigning it an ID if it has none
func (m *Map) Insert(marker *Marker) error {
	if marker == nil {
		return fmt.Errorf("insert marker: %w", ErrMarkerNotFound)
	}
	if !validTempo(marker.Tempo) {
		return fmt.Errorf("insert marker at beat %.3f: %w", marker.Position, ErrInvalidTempo)
	}
	if marker.ID == "" {
		marker.ID = uuid.New().String()
	}
	m.markers = append(m.markers, marker)
	m.Refresh()
	return nil
}

// Delete removes a marker from the map
func (m *Map) Delete(marker *Marker) error {
	for i, mk := range m.markers {
		if mk == marker {
			m.markers = append(m.markers[:i], m.markers[i+1:]...)
			m.Refresh()
			return nil
		}
	}
	return ErrMarkerNotFound
}

// Refresh re-sorts the markers and rebuilds the cached canonical offsets
func (m *Map) Refresh() {
	sort.SliceStable(m.markers, func(i, j int) bool {
		return m.markers[i].Position < m.markers[j].Position
	})

	m.offsets = m.offsets[:0]
	for i, mk := range m.markers {
		if i == 0 {
			m.offsets = append(m.offsets, mk.Position)
			continue
		}
		prev := m.markers[i-1]
		span := (mk.Position - prev.Position) * m.BaseTempo / prev.Tempo
		m.offsets = append(m.offsets, m.offsets[i-1]+span)
	}
}

// GlobalBeat converts a local beat to the canonical beat count
func (m *Map) GlobalBeat(local float64) (float64, error) {
	if math.IsNaN(local) || local < 0 || (m.Length > 0 && local > m.Length) {
		return 0, fmt.Errorf("beat %.3f: %w", local, ErrOutsideSong)
	}

	i := m.segmentAt(local)
	if i < 0 {
		return local, nil
	}
	mk := m.markers[i]
	return m.offsets[i] + (local-mk.Position)*m.BaseTempo/mk.Tempo, nil
}

// SecondsFromCanonicalBeat converts a canonical beat to seconds
func (m *Map) SecondsFromCanonicalBeat(canonical float64) float64 {
	return canonical * 60 / m.BaseTempo
}

// SecondsAt returns the absolute time of a local beat
func (m *Map) SecondsAt(local float64) (float64, error) {
	c, err := m.GlobalBeat(local)
	if err != nil {
		return 0, err
	}
	return m.SecondsFromCanonicalBeat(c), nil
}

// BeatAt returns the local beat at an absolute time
func (m *Map) BeatAt(seconds float64) float64 {
	c := seconds * m.BaseTempo / 60

	i := sort.Search(len(m.offsets), func(i int) bool {
		return m.offsets[i] > c
	}) - 1
	if i < 0 {
		return c
	}
	mk := m.markers[i]
	return mk.Position + (c-m.offsets[i])*mk.Tempo/m.BaseTempo
}

// TempoAt returns the tempo in effect at a local beat
func (m *Map) TempoAt(local float64) float64 {
	if i := m.segmentAt(local); i >= 0 {
		return m.markers[i].Tempo
	}
	return m.BaseTempo
}

// Clone returns a deep copy of the map
func (m *Map) Clone() *Map {
	c := &Map{BaseTempo: m.BaseTempo, Length: m.Length}
	for _, mk := range m.markers {
		cp := *mk
		c.markers = append(c.markers, &cp)
	}
	c.Refresh()
	return c
}

// segmentAt returns the index of the last marker at or before local, or -1
func (m *Map) segmentAt(local float64) int {
	return sort.Search(len(m.markers), func(i int) bool {
		return m.markers[i].Position > local
	}) - 1
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0) && !math.IsNaN(bpm)
}
