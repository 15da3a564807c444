package sensor

import (
	"errors"
	"sync"
)

// Static always reports the same temperature and humidity.
type Static struct {
	Temperature float64
	Humidity    float64
}

func (s *Static) ReadHumidity() (float64, error)    { return s.Humidity, nil }
func (s *Static) ReadTemperature() (float64, error) { return s.Temperature, nil }
func (s *Static) HeatIndex(t, h float64) float64    { return HeatIndex(t, h) }
func (s *Static) Close() error                      { return nil }

// ErrScriptExhausted is returned once a Scripted sensor has no values left.
var ErrScriptExhausted = errors.New("scripted sensor exhausted")

// Sample is one scripted draw.
type Sample struct {
	Temperature float64
	Humidity    float64
	// HeatIndex overrides the computed heat index when non-nil.
	HeatIndex *float64
}

// Scripted replays a fixed list of samples. Each sample is consumed by a
// humidity read followed by a temperature read. Safe for concurrent use.
type Scripted struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	reads   int
	// Loop restarts the script from the beginning when it runs out.
	Loop bool
}

func NewScripted(samples ...Sample) *Scripted {
	return &Scripted{samples: samples}
}

func (s *Scripted) current() (Sample, error) {
	if s.next >= len(s.samples) {
		if !s.Loop || len(s.samples) == 0 {
			return Sample{}, ErrScriptExhausted
		}
		s.next = 0
	}
	return s.samples[s.next], nil
}

func (s *Scripted) ReadHumidity() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	smp, err := s.current()
	if err != nil {
		return 0, err
	}
	return smp.Humidity, nil
}

func (s *Scripted) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	smp, err := s.current()
	if err != nil {
		return 0, err
	}
	s.next++
	s.reads++
	return smp.Temperature, nil
}

func (s *Scripted) HeatIndex(t, h float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next > 0 && s.next <= len(s.samples) {
		if hi := s.samples[s.next-1].HeatIndex; hi != nil {
			return *hi
		}
	}
	return HeatIndex(t, h)
}

// Reads is the number of complete draws served so far.
func (s *Scripted) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Scripted) Close() error { return nil }
