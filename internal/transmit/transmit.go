// Package transmit hands complete payloads to the uplink. Sends are fire and
// forget: a failed payload is reported and dropped, never retried.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"picolink/internal/payload"
)

var (
	// ErrTransmit wraps every failure reported by a Transmitter.
	ErrTransmit = errors.New("transmit failed")
	// ErrDutyCycle is returned when a send would exceed the airtime budget.
	ErrDutyCycle = errors.New("duty cycle limit")
)

type Transmitter interface {
	Send(ctx context.Context, p payload.Payload) error
}

// Log writes each payload to the logger instead of a radio.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(_ context.Context, p payload.Payload) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("uplink payload", "payload", p.String(), "bytes", payload.BytesPerMessage)
	return nil
}

// DutyCycle refuses to send sooner than MinInterval after the previous
// accepted send.
type DutyCycle struct {
	next        Transmitter
	minInterval time.Duration
	now         func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewDutyCycle(next Transmitter, minInterval time.Duration) *DutyCycle {
	return &DutyCycle{next: next, minInterval: minInterval, now: time.Now}
}

func (d *DutyCycle) Send(ctx context.Context, p payload.Payload) error {
	d.mu.Lock()
	now := d.now()
	if d.minInterval > 0 && !d.last.IsZero() {
		if since := now.Sub(d.last); since < d.minInterval {
			d.mu.Unlock()
			return fmt.Errorf("%w: %w: %v since last send, minimum %v", ErrTransmit, ErrDutyCycle, since, d.minInterval)
		}
	}
	// The slot is consumed even if the radio then fails.
	d.last = now
	d.mu.Unlock()

	return d.next.Send(ctx, p)
}

// Recorder keeps every payload it is given. It is used in tests and as a
// dry-run uplink.
type Recorder struct {
	mu       sync.Mutex
	payloads []payload.Payload
	// Err, when set, is returned from every Send after recording.
	Err error
}

func (r *Recorder) Send(_ context.Context, p payload.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	if r.Err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, r.Err)
	}
	return nil
}

// Payloads returns a copy of everything sent so far.
func (r *Recorder) Payloads() []payload.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payload.Payload(nil), r.payloads...)
}
