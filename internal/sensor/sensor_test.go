package sensor

import (
	"errors"
	"math"
	"testing"
)

func TestHeatIndex(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		humidity float64
		want     float64
	}{
		// Reference values from the NWS heat index chart, converted to Celsius.
		{name: "mild uses simple formula", celsius: 20, humidity: 50, want: 19.4},
		{name: "hot and humid", celsius: 32.2222, humidity: 70, want: 41.1},
		{name: "very hot", celsius: 37.7778, humidity: 50, want: 47.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeatIndex(tt.celsius, tt.humidity)
			if math.Abs(got-tt.want) > 0.5 {
				t.Errorf("HeatIndex(%v, %v) = %.2f, want ~%.1f", tt.celsius, tt.humidity, got, tt.want)
			}
		})
	}
}

func TestHeatIndex_NaN(t *testing.T) {
	if got := HeatIndex(math.NaN(), 50); !math.IsNaN(got) {
		t.Errorf("HeatIndex(NaN, 50) = %v, want NaN", got)
	}
	if got := HeatIndex(20, math.NaN()); !math.IsNaN(got) {
		t.Errorf("HeatIndex(20, NaN) = %v, want NaN", got)
	}
}

func TestHeatIndex_LowHumidityAdjustment(t *testing.T) {
	// 95 F at 5 %rH lands in the low humidity correction band.
	c := (95.0 - 32) / 1.8
	got := HeatIndex(c, 5)
	if got >= c {
		t.Errorf("HeatIndex(%v, 5) = %v, want below air temperature", c, got)
	}
}

func TestScripted(t *testing.T) {
	hi := 23.47
	s := NewScripted(
		Sample{Temperature: 20, Humidity: 40},
		Sample{Temperature: 21, Humidity: 41, HeatIndex: &hi},
	)

	h, err := s.ReadHumidity()
	if err != nil || h != 40 {
		t.Fatalf("ReadHumidity() = %v, %v; want 40, nil", h, err)
	}
	tc, err := s.ReadTemperature()
	if err != nil || tc != 20 {
		t.Fatalf("ReadTemperature() = %v, %v; want 20, nil", tc, err)
	}
	if got, want := s.HeatIndex(tc, h), HeatIndex(20, 40); got != want {
		t.Fatalf("HeatIndex = %v, want computed %v", got, want)
	}

	_, _ = s.ReadHumidity()
	_, _ = s.ReadTemperature()
	if got := s.HeatIndex(21, 41); got != 23.47 {
		t.Fatalf("HeatIndex override = %v, want 23.47", got)
	}
	if s.Reads() != 2 {
		t.Fatalf("Reads() = %d, want 2", s.Reads())
	}

	if _, err := s.ReadHumidity(); !errors.Is(err, ErrScriptExhausted) {
		t.Fatalf("ReadHumidity past end error = %v, want ErrScriptExhausted", err)
	}
}

func TestScripted_Loop(t *testing.T) {
	s := NewScripted(Sample{Temperature: 1, Humidity: 2})
	s.Loop = true
	for i := 0; i < 3; i++ {
		if _, err := s.ReadHumidity(); err != nil {
			t.Fatalf("ReadHumidity #%d error = %v", i, err)
		}
		if _, err := s.ReadTemperature(); err != nil {
			t.Fatalf("ReadTemperature #%d error = %v", i, err)
		}
	}
	if s.Reads() != 3 {
		t.Fatalf("Reads() = %d, want 3", s.Reads())
	}
}

func TestOpen_Stub(t *testing.T) {
	dev, err := Open(Options{Driver: "stub"})
	if err != nil {
		t.Fatalf("Open(stub) error = %v", err)
	}
	defer dev.Close()

	h, err := dev.ReadHumidity()
	if err != nil || !Valid(h) {
		t.Fatalf("ReadHumidity() = %v, %v", h, err)
	}
}

func TestOpen_Unknown(t *testing.T) {
	if _, err := Open(Options{Driver: "dht11"}); err == nil {
		t.Fatal("Open(dht11) error = nil, want non-nil")
	}
}
