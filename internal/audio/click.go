// Package audio renders and plays a metronome click over a tempo map
package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/james-see/bpmhelper/pkg/tempo"
)

const (
	SampleRate   = 44100
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit

	clickLength = 0.03 // seconds
	clickFreq   = 1000.0
	accentFreq  = 1600.0
	volume      = 0.5
)

// Click is a single metronome tick
type Click struct {
	Seconds float64
	Beat    float64
	Accent  bool // a tempo marker sits on this beat
}

// ClickTimes lists a click for every whole beat in [from, to] plus one for
// every marker in that range. Marker clicks are accented.
func ClickTimes(m *tempo.Map, from, to float64) ([]Click, error) {
	if to < from {
		return nil, fmt.Errorf("invalid beat range %v..%v", from, to)
	}
	markers := m.Markers()

	var clicks []Click
	for beat := math.Ceil(math.Max(from, 0)); beat <= to; beat++ {
		accent := false
		for _, mk := range markers {
			if mk.On(beat) {
				accent = true
				break
			}
		}
		s, err := m.SecondsAt(beat)
		if err != nil {
			return nil, err
		}
		clicks = append(clicks, Click{Seconds: s, Beat: beat, Accent: accent})
	}

	for _, mk := range markers {
		if mk.Position < from || mk.Position > to || mk.On(math.Round(mk.Position)) {
			continue
		}
		s, err := m.SecondsAt(mk.Position)
		if err != nil {
			return nil, err
		}
		clicks = append(clicks, Click{Seconds: s, Beat: mk.Position, Accent: true})
	}

	sort.SliceStable(clicks, func(i, j int) bool {
		return clicks[i].Seconds < clicks[j].Seconds
	})
	return clicks, nil
}

// Render writes the clicks as 16-bit little endian stereo PCM. Time zero of
// the buffer is start seconds; it holds duration seconds of audio.
func Render(clicks []Click, start, duration float64) []byte {
	if duration <= 0 {
		return nil
	}
	numSamples := int(math.Ceil(duration * SampleRate))
	buf := make([]byte, numSamples*channelCount*bitDepth)
	mix := make([]float64, numSamples)

	clickSamples := int(clickLength * SampleRate)
	for _, c := range clicks {
		first := int(math.Round((c.Seconds - start) * SampleRate))
		freq := clickFreq
		if c.Accent {
			freq = accentFreq
		}
		for i := 0; i < clickSamples; i++ {
			idx := first + i
			if idx < 0 {
				continue
			}
			if idx >= numSamples {
				break
			}
			t := float64(i) / SampleRate
			// exponential decay
			env := math.Exp(-t * 150)
			mix[idx] += math.Sin(2*math.Pi*freq*t) * env * volume
		}
	}

	for i, sample := range mix {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		sampleInt := int16(sample * 32767)

		// Write stereo samples (same for L and R)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(sampleInt)
		buf[idx+1] = byte(sampleInt >> 8)
		buf[idx+2] = byte(sampleInt)
		buf[idx+3] = byte(sampleInt >> 8)
	}
	return buf
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// audioContext returns the process-wide audio context; oto allows only one
func audioContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
		}
	})
	return otoCtx, otoErr
}

// Play plays pcm and blocks until it finishes or ctx is done
func Play(ctx context.Context, pcm []byte) error {
	oc, err := audioContext()
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	player := oc.NewPlayer(bytes.NewReader(pcm))
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
