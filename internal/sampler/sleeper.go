package sampler

import (
	"context"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordingSleeper returns immediately and records every requested pause.
// It is used by tests and dry runs.
type RecordingSleeper struct {
	Pauses []time.Duration
}

func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Pauses = append(s.Pauses, d)
	return nil
}

// Total is the sum of all recorded pauses.
func (s *RecordingSleeper) Total() time.Duration {
	var sum time.Duration
	for _, d := range s.Pauses {
		sum += d
	}
	return sum
}
