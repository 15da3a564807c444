package transmit

import (
	"context"
	"errors"
	"testing"
	"time"

	"picolink/internal/payload"
)

func TestDutyCycle(t *testing.T) {
	rec := &Recorder{}
	d := NewDutyCycle(rec, 10*time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	p := payload.Payload{1}
	if err := d.Send(context.Background(), p); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	clock = clock.Add(9 * time.Minute)
	err := d.Send(context.Background(), p)
	if !errors.Is(err, ErrDutyCycle) || !errors.Is(err, ErrTransmit) {
		t.Fatalf("early Send() error = %v, want ErrDutyCycle and ErrTransmit", err)
	}

	clock = clock.Add(time.Minute)
	if err := d.Send(context.Background(), p); err != nil {
		t.Fatalf("Send() after interval error = %v", err)
	}

	if got := len(rec.Payloads()); got != 2 {
		t.Fatalf("payloads delivered = %d, want 2", got)
	}
}

func TestDutyCycle_Disabled(t *testing.T) {
	rec := &Recorder{}
	d := NewDutyCycle(rec, 0)
	for i := 0; i < 3; i++ {
		if err := d.Send(context.Background(), payload.Payload{}); err != nil {
			t.Fatalf("Send #%d error = %v", i, err)
		}
	}
	if got := len(rec.Payloads()); got != 3 {
		t.Fatalf("payloads delivered = %d, want 3", got)
	}
}

func TestDutyCycle_FailedSendConsumesSlot(t *testing.T) {
	rec := &Recorder{Err: errors.New("radio busy")}
	d := NewDutyCycle(rec, time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	if err := d.Send(context.Background(), payload.Payload{}); !errors.Is(err, ErrTransmit) {
		t.Fatalf("Send() error = %v, want ErrTransmit", err)
	}
	if err := d.Send(context.Background(), payload.Payload{}); !errors.Is(err, ErrDutyCycle) {
		t.Fatalf("immediate resend error = %v, want ErrDutyCycle", err)
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	p := payload.Payload{50, 74, 72}
	if err := rec.Send(context.Background(), p); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := rec.Payloads()
	if len(got) != 1 || got[0] != p {
		t.Fatalf("Payloads() = %v, want [%v]", got, p)
	}
}

func TestLog(t *testing.T) {
	if err := (Log{}).Send(context.Background(), payload.Payload{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("node-7"); got != "uplink/node-7/payload" {
		t.Fatalf("Topic() = %q, want uplink/node-7/payload", got)
	}
}
