// Package sampler draws timed reading-groups from a sensor.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"picolink/internal/sensor"
)

// ErrSensorFault is returned when any draw in a group is invalid.
var ErrSensorFault = errors.New("sensor fault")

// Group holds the two parallel series of one reading-group.
type Group struct {
	HeatIndex []float64
	Humidity  []float64
}

// Len is the number of samples in the group.
func (g Group) Len() int { return len(g.HeatIndex) }

type Options struct {
	// Size is the number of draws per group.
	Size int
	// Interval is the pause after every draw.
	Interval time.Duration
	Sleeper  Sleeper
	Logger   *slog.Logger
}

type Sampler struct {
	sensor   sensor.Sensor
	size     int
	interval time.Duration
	sleeper  Sleeper
	logger   *slog.Logger
}

func New(s sensor.Sensor, opts Options) (*Sampler, error) {
	if s == nil {
		return nil, errors.New("sampler: nil sensor")
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("sampler: group size must be positive, got %d", opts.Size)
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("sampler: negative interval %v", opts.Interval)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = TimerSleeper{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sampler{
		sensor:   s,
		size:     opts.Size,
		interval: opts.Interval,
		sleeper:  opts.Sleeper,
		logger:   opts.Logger,
	}, nil
}

func (s *Sampler) Size() int { return s.size }

func (s *Sampler) Interval() time.Duration { return s.interval }

// CollectGroup performs exactly Size draws, pausing Interval after each one.
// The first invalid draw ends the attempt with an error wrapping
// ErrSensorFault; no partial group is returned. ctx is only observed while
// pausing.
func (s *Sampler) CollectGroup(ctx context.Context) (Group, error) {
	heat := make([]float64, s.size)
	hum := make([]float64, s.size)

	for i := 0; i < s.size; i++ {
		h, errH := s.sensor.ReadHumidity()
		t, errT := s.sensor.ReadTemperature()
		if err := errors.Join(errH, errT); err != nil {
			return Group{}, fmt.Errorf("%w: sample %d: %w", ErrSensorFault, i, err)
		}
		if !sensor.Valid(h) || !sensor.Valid(t) {
			return Group{}, fmt.Errorf("%w: sample %d: humidity=%v temperature=%v", ErrSensorFault, i, h, t)
		}

		hic := s.sensor.HeatIndex(t, h)
		if !sensor.Valid(hic) {
			return Group{}, fmt.Errorf("%w: sample %d: heat index is NaN", ErrSensorFault, i)
		}
		heat[i] = hic
		hum[i] = h
		s.logger.Debug("sample", "index", i, "heat_index", hic, "humidity", h)

		if err := s.sleeper.Sleep(ctx, s.interval); err != nil {
			return Group{}, err
		}
	}

	return Group{HeatIndex: heat, Humidity: hum}, nil
}
