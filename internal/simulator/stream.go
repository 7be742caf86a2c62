package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/domain"
)

// Jitter is the maximum absolute change per channel per tick
type Jitter struct {
	Pulse       float64
	Pressure    float64
	Ultrasound  float64
	Temperature float64
	Density     float64
}

// DefaultJitter keeps the fake stream close to resting values
var DefaultJitter = Jitter{
	Pulse:       2,
	Pressure:    0.3,
	Ultrasound:  5,
	Temperature: 0.05,
	Density:     0.01,
}

// Streamer pushes jittered readings while a glove is connected and manual mode is off
type Streamer struct {
	store  domain.TelemetryStore
	tick   time.Duration
	jitter Jitter

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewStreamer creates a streamer; rnd may be nil
func NewStreamer(store domain.TelemetryStore, tick time.Duration, rnd *rand.Rand) *Streamer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Streamer{
		store:  store,
		tick:   tick,
		jitter: DefaultJitter,
		rnd:    rnd,
	}
}

// Run ticks until ctx is done
func (s *Streamer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step applies one round of jitter; it reports whether the store was updated
func (s *Streamer) Step() bool {
	snap := s.store.Snapshot()
	if snap.IsManual || snap.BleStatus != domain.BleConnected {
		return false
	}

	d := snap.Data
	pulse := d.Pulse + s.delta(s.jitter.Pulse)
	pressure := d.Pressure + s.delta(s.jitter.Pressure)
	ultrasound := d.Ultrasound + s.delta(s.jitter.Ultrasound)
	temperature := d.Temperature + s.delta(s.jitter.Temperature)
	density := d.Density + s.delta(s.jitter.Density)

	s.store.SetData(domain.ReadingPatch{
		Pulse:       &pulse,
		Pressure:    &pressure,
		Ultrasound:  &ultrasound,
		Temperature: &temperature,
		Density:     &density,
	})
	return true
}

func (s *Streamer) delta(max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.rnd.Float64()*2 - 1) * max
}
