// Package pipeline runs the sample -> reduce -> encode -> transmit cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"picolink/internal/payload"
	"picolink/internal/sampler"
	"picolink/internal/stats"
	"picolink/internal/transmit"
)

// FaultPolicy decides what a sensor fault or encoding range error discards.
type FaultPolicy int

const (
	// RestartPayload abandons every triplet collected so far and starts a
	// fresh payload from the first group.
	RestartPayload FaultPolicy = iota
	// RetryGroup keeps the triplets already encoded and only collects the
	// failed group again.
	RetryGroup
)

func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch s {
	case "restart", "":
		return RestartPayload, nil
	case "retry-group":
		return RetryGroup, nil
	default:
		return 0, fmt.Errorf("invalid fault policy %q (allowed: restart, retry-group)", s)
	}
}

func (p FaultPolicy) String() string {
	switch p {
	case RestartPayload:
		return "restart"
	case RetryGroup:
		return "retry-group"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", int(p))
	}
}

// GroupCollector yields one reading-group per call.
type GroupCollector interface {
	CollectGroup(ctx context.Context) (sampler.Group, error)
}

type Options struct {
	// IgnoreFraction is the share of samples dropped across both tails.
	IgnoreFraction float64
	Policy         FaultPolicy
	// FaultBackoff is the pause before sampling resumes after a fault.
	FaultBackoff time.Duration
	Sleeper      sampler.Sleeper
	Logger       *slog.Logger
}

type Pipeline struct {
	collector   GroupCollector
	transmitter transmit.Transmitter
	opts        Options
	logger      *slog.Logger
}

func New(c GroupCollector, tx transmit.Transmitter, opts Options) (*Pipeline, error) {
	if c == nil || tx == nil {
		return nil, errors.New("pipeline: collector and transmitter are required")
	}
	if opts.IgnoreFraction < 0 || opts.IgnoreFraction >= 1 {
		return nil, fmt.Errorf("pipeline: ignore fraction %v outside [0, 1)", opts.IgnoreFraction)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = sampler.TimerSleeper{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{collector: c, transmitter: tx, opts: opts, logger: opts.Logger}, nil
}

// isFault reports errors that end a payload attempt but not the node.
func isFault(err error) bool {
	return errors.Is(err, sampler.ErrSensorFault) ||
		errors.Is(err, payload.ErrEncodingRange) ||
		errors.Is(err, stats.ErrEmptyRange)
}

// encodeGroup collects, reduces and encodes one reading-group.
func (p *Pipeline) encodeGroup(ctx context.Context, index int) (payload.Triplet, error) {
	g, err := p.collector.CollectGroup(ctx)
	if err != nil {
		return payload.Triplet{}, err
	}

	trim := stats.TrimCount(g.Len(), p.opts.IgnoreFraction)
	meanTemp, err := stats.TrimmedMean(g.HeatIndex, trim)
	if err != nil {
		return payload.Triplet{}, fmt.Errorf("reduce heat index: %w", err)
	}
	meanHum, err := stats.TrimmedMean(g.Humidity, trim)
	if err != nil {
		return payload.Triplet{}, fmt.Errorf("reduce humidity: %w", err)
	}
	p.logger.Info("group reduced",
		"group", index,
		"samples", g.Len(),
		"trim", trim,
		"mean_heat_index", meanTemp,
		"mean_humidity", meanHum,
	)

	t, err := payload.EncodeTriplet(meanTemp, meanHum)
	if err != nil {
		return payload.Triplet{}, err
	}
	p.logger.Info("triplet encoded", "group", index, "triplet", t.String())
	return t, nil
}

// BuildPayload fills a payload with TripletsPerPayload triplets in group
// order. Under RestartPayload the first fault is returned and everything
// collected is dropped; under RetryGroup the failed group is collected again
// after FaultBackoff. Context errors are always returned.
func (p *Pipeline) BuildPayload(ctx context.Context) (payload.Payload, error) {
	var b payload.Builder

	for b.Len() < payload.TripletsPerPayload {
		t, err := p.encodeGroup(ctx, b.Len())
		if err != nil {
			if p.opts.Policy == RetryGroup && isFault(err) {
				p.logger.Warn("group failed, retrying", "group", b.Len(), "error", err)
				if err := p.opts.Sleeper.Sleep(ctx, p.opts.FaultBackoff); err != nil {
					return payload.Payload{}, err
				}
				continue
			}
			return payload.Payload{}, fmt.Errorf("group %d: %w", b.Len(), err)
		}
		if err := b.Append(t); err != nil {
			return payload.Payload{}, err
		}
	}

	return b.Payload()
}

// RunCycle builds one payload and sends it once. The payload is dropped
// after the send whatever the outcome.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	pl, err := p.BuildPayload(ctx)
	if err != nil {
		return err
	}
	if err := p.transmitter.Send(ctx, pl); err != nil {
		return fmt.Errorf("send payload %s: %w", pl.String(), err)
	}
	p.logger.Info("payload sent", "payload", pl.String())
	return nil
}

// Run repeats RunCycle until ctx is done. Faults and transmit errors are
// logged and the next cycle starts from scratch; after a fault it first
// waits FaultBackoff. Any other error stops the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "fault_policy", p.opts.Policy.String(), "ignore_fraction", p.opts.IgnoreFraction)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.RunCycle(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, transmit.ErrTransmit):
			p.logger.Error("transmit failed, payload dropped", "error", err)
		case isFault(err):
			p.logger.Warn("payload abandoned, restarting cycle", "error", err)
			if err := p.opts.Sleeper.Sleep(ctx, p.opts.FaultBackoff); err != nil {
				return err
			}
		default:
			return err
		}
	}
}
