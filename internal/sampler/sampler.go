// Package sampler runs blocking sensor reads in their own goroutine so the
// busy-wait decode never stalls HTTP, MQTT or display work.
package sampler

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/sweeney/dht-node/internal/dht11"
)

// Reader performs one blocking read. *dht11.Sensor satisfies it.
type Reader interface {
	Read(maxAttempts int) (dht11.Reading, error)
}

// Result is the outcome of one read.
type Result struct {
	Time     time.Time
	Reading  dht11.Reading
	Err      error
	Duration time.Duration
}

// Sampler reads the sensor once at start and then on every tick.
type Sampler struct {
	sensor   Reader
	attempts int
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Sampler making up to attempts handshake tries per read.
func New(sensor Reader, attempts int, now func() time.Time, log *slog.Logger) *Sampler {
	return &Sampler{sensor: sensor, attempts: attempts, now: now, log: log}
}

// Run blocks until ctx is done, sending one Result per read on out. It
// closes out on return. The tick source must not fire more often than
// dht11.MinReadInterval.
func (s *Sampler) Run(ctx context.Context, tick <-chan time.Time, out chan<- Result) {
	// Keep the decode on one OS thread for the whole busy-wait.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(out)

	for {
		res := s.ReadOnce()
		select {
		case out <- res:
		case <-ctx.Done():
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
	}
}

// ReadOnce performs a single timed read.
func (s *Sampler) ReadOnce() Result {
	start := s.now()
	r, err := s.sensor.Read(s.attempts)
	end := s.now()

	res := Result{Time: end, Reading: r, Err: err, Duration: end.Sub(start)}
	if err != nil {
		s.log.Warn("sensor read failed", "kind", string(dht11.KindOf(err)), "error", err, "duration", res.Duration)
	} else {
		s.log.Debug("sensor read", "temperature", r.Temperature, "humidity", r.Humidity, "duration", res.Duration)
	}
	return res
}
