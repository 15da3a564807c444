package config

import (
	"fmt"
	"strconv"
	"time"

	"picolink/internal/stats"
)

type Node struct {
	Common
	MQTT MQTT

	DeviceID      string
	SensorDriver  string
	BME280Address uint16

	// SampleInterval is the pause after every sensor draw. It paces the
	// whole pipeline.
	SampleInterval time.Duration
	// PayloadWindow is the wall-clock time budgeted for one full payload.
	PayloadWindow time.Duration
	// IgnorePercent is the share of samples discarded across both tails.
	IgnorePercent float64
	FaultPolicy   string

	UplinkTransport   string
	UplinkMinInterval time.Duration
}

// GroupSize is the number of samples collected per reading-group.
func (c Node) GroupSize(tripletsPerPayload int) int {
	return stats.GroupSize(c.PayloadWindow/time.Duration(tripletsPerPayload), c.SampleInterval)
}

// IgnoreFraction returns IgnorePercent as a fraction in [0, 1).
func (c Node) IgnoreFraction() float64 {
	return c.IgnorePercent / 100
}

// LoadNode reads the sensor node configuration from the environment. The
// derived reading-group size is validated here so a misconfigured node
// fails at startup instead of mid-cycle.
func LoadNode(tripletsPerPayload int) (Node, error) {
	common, err := loadCommon()
	if err != nil {
		return Node{}, err
	}

	mqtt, err := loadMQTT("picolink-node")
	if err != nil {
		return Node{}, err
	}

	sensorDriver := envOr("SENSOR_DRIVER", "bme280")
	switch sensorDriver {
	case "bme280", "stub":
	default:
		return Node{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: bme280, stub)", sensorDriver)
	}

	bme280AddressStr := envOr("BME280_ADDRESS", "0x76")
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Node{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	sampleInterval, err := envDuration("SAMPLE_INTERVAL", "2s")
	if err != nil {
		return Node{}, err
	}
	if sampleInterval <= 0 {
		return Node{}, fmt.Errorf("SAMPLE_INTERVAL must be positive, got %v", sampleInterval)
	}

	payloadWindow, err := envDuration("PAYLOAD_WINDOW", "3m")
	if err != nil {
		return Node{}, err
	}
	if payloadWindow <= 0 {
		return Node{}, fmt.Errorf("PAYLOAD_WINDOW must be positive, got %v", payloadWindow)
	}

	ignorePercentStr := envOr("IGNORE_PERCENT", "5")
	ignorePercent, err := strconv.ParseFloat(ignorePercentStr, 64)
	if err != nil {
		return Node{}, fmt.Errorf("invalid IGNORE_PERCENT %q: %w", ignorePercentStr, err)
	}
	if ignorePercent < 0 || ignorePercent >= 100 {
		return Node{}, fmt.Errorf("IGNORE_PERCENT must be in [0, 100), got %v", ignorePercent)
	}

	faultPolicy := envOr("FAULT_POLICY", "restart")
	switch faultPolicy {
	case "restart", "retry-group":
	default:
		return Node{}, fmt.Errorf("invalid FAULT_POLICY %q (allowed: restart, retry-group)", faultPolicy)
	}

	transport := envOr("UPLINK_TRANSPORT", "mqtt")
	switch transport {
	case "mqtt", "log":
	default:
		return Node{}, fmt.Errorf("invalid UPLINK_TRANSPORT %q (allowed: mqtt, log)", transport)
	}

	minInterval, err := envDuration("UPLINK_MIN_INTERVAL", "0s")
	if err != nil {
		return Node{}, err
	}
	if minInterval < 0 {
		return Node{}, fmt.Errorf("UPLINK_MIN_INTERVAL must not be negative, got %v", minInterval)
	}

	cfg := Node{
		Common:            common,
		MQTT:              mqtt,
		DeviceID:          envOr("DEVICE_ID", "node-1"),
		SensorDriver:      sensorDriver,
		BME280Address:     uint16(bme280Address),
		SampleInterval:    sampleInterval,
		PayloadWindow:     payloadWindow,
		IgnorePercent:     ignorePercent,
		FaultPolicy:       faultPolicy,
		UplinkTransport:   transport,
		UplinkMinInterval: minInterval,
	}

	n := cfg.GroupSize(tripletsPerPayload)
	if err := stats.ValidateGroup(n, cfg.IgnoreFraction()); err != nil {
		return Node{}, fmt.Errorf("PAYLOAD_WINDOW=%v SAMPLE_INTERVAL=%v IGNORE_PERCENT=%v: %w",
			payloadWindow, sampleInterval, ignorePercent, err)
	}

	return cfg, nil
}
