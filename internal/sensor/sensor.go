// Package sensor provides the humidity/temperature sources sampled by the node.
package sensor

import (
	"fmt"
	"io"
	"math"
)

// Sensor is a humidity/temperature source. A failed read is reported either
// as an error or as a NaN value; callers must treat both as invalid.
type Sensor interface {
	ReadHumidity() (float64, error)
	ReadTemperature() (float64, error)
	// HeatIndex derives the apparent temperature in Celsius from a raw
	// temperature and relative humidity.
	HeatIndex(temperature, humidity float64) float64
}

// Device is a Sensor that holds hardware resources.
type Device interface {
	Sensor
	io.Closer
}

// Options selects and configures a sensor driver.
type Options struct {
	Driver        string // "bme280" or "stub"
	BME280Address uint16
}

// Open returns the driver named in opts.
func Open(opts Options) (Device, error) {
	switch opts.Driver {
	case "bme280":
		return OpenBME280(opts.BME280Address)
	case "stub":
		return &Static{Temperature: 21, Humidity: 45}, nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", opts.Driver)
	}
}

// Valid reports whether v is a usable reading.
func Valid(v float64) bool {
	return !math.IsNaN(v)
}
