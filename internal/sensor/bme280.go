package sensor

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280 reads a Bosch BME280 on the default host I2C bus through periph.io.
type BME280 struct {
	mu  sync.Mutex
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// OpenBME280 initialises the host drivers and opens the device at addr
// (usually 0x76 or 0x77).
func OpenBME280(addr uint16) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open("") // default bus, usually /dev/i2c-1
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 at 0x%02X: %w", addr, err)
	}

	return &BME280{bus: bus, dev: dev}, nil
}

func (s *BME280) sense() (physic.Env, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		return physic.Env{}, fmt.Errorf("bme280 sense: %w", err)
	}
	return env, nil
}

// ReadHumidity returns relative humidity in percent.
func (s *BME280) ReadHumidity() (float64, error) {
	env, err := s.sense()
	if err != nil {
		return 0, err
	}
	// env.Humidity is fixed point at 0.00001 %rH.
	return float64(env.Humidity) / float64(physic.PercentRH), nil
}

// ReadTemperature returns the temperature in Celsius.
func (s *BME280) ReadTemperature() (float64, error) {
	env, err := s.sense()
	if err != nil {
		return 0, err
	}
	return env.Temperature.Celsius(), nil
}

func (s *BME280) HeatIndex(t, h float64) float64 { return HeatIndex(t, h) }

func (s *BME280) Close() error {
	return errors.Join(s.dev.Halt(), s.bus.Close())
}
