package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"picolink/internal/config"
	"picolink/internal/payload"
	"picolink/internal/pipeline"
	"picolink/internal/sampler"
	"picolink/internal/sensor"
	"picolink/internal/transmit"
)

// RunNode wires sensor, sampler, pipeline and uplink from cfg and runs the
// sampling loop until ctx is done.
func RunNode(ctx context.Context, cfg config.Node) error {
	groupSize := cfg.GroupSize(payload.TripletsPerPayload)
	slog.Info("initializing node",
		"device_id", cfg.DeviceID,
		"sensor_driver", cfg.SensorDriver,
		"sample_interval", cfg.SampleInterval,
		"payload_window", cfg.PayloadWindow,
		"group_size", groupSize,
		"ignore_percent", cfg.IgnorePercent,
		"fault_policy", cfg.FaultPolicy,
		"uplink", cfg.UplinkTransport,
	)

	dev, err := sensor.Open(sensor.Options{
		Driver:        cfg.SensorDriver,
		BME280Address: cfg.BME280Address,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("sensor close", "error", err)
		}
	}()

	tx, stop, err := openUplink(ctx, cfg)
	if err != nil {
		return err
	}
	defer stop()

	return runPipeline(ctx, cfg, dev, tx, sampler.TimerSleeper{})
}

func runPipeline(ctx context.Context, cfg config.Node, s sensor.Sensor, tx transmit.Transmitter, sl sampler.Sleeper) error {
	smp, err := sampler.New(s, sampler.Options{
		Size:     cfg.GroupSize(payload.TripletsPerPayload),
		Interval: cfg.SampleInterval,
		Sleeper:  sl,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	policy, err := pipeline.ParseFaultPolicy(cfg.FaultPolicy)
	if err != nil {
		return err
	}

	if cfg.UplinkMinInterval > 0 {
		tx = transmit.NewDutyCycle(tx, cfg.UplinkMinInterval)
	}

	p, err := pipeline.New(smp, tx, pipeline.Options{
		IgnoreFraction: cfg.IgnoreFraction(),
		Policy:         policy,
		FaultBackoff:   cfg.SampleInterval,
		Sleeper:        sl,
		Logger:         slog.Default(),
	})
	if err != nil {
		return err
	}

	return p.Run(ctx)
}

func openUplink(ctx context.Context, cfg config.Node) (transmit.Transmitter, func(), error) {
	switch cfg.UplinkTransport {
	case "log":
		return transmit.Log{Logger: slog.Default()}, func() {}, nil
	case "mqtt":
		slog.Info("connecting uplink",
			"mqtt_broker", cfg.MQTT.Broker,
			"mqtt_port", cfg.MQTT.Port,
			"mqtt_client_id", cfg.MQTT.ClientID,
			"topic", transmit.Topic(cfg.DeviceID),
		)
		tx := transmit.NewMQTT(transmit.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			ClientID: cfg.MQTT.ClientID,
			DeviceID: cfg.DeviceID,
		}, slog.Default())

		// Connect in the background; Send reports "not connected" until the
		// broker is reachable.
		go func() {
			connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := tx.Connect(connectCtx); err != nil {
				slog.Warn("mqtt connect failed, auto-reconnect continues", "error", err)
			}
		}()
		return tx, tx.Disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown uplink transport %q", cfg.UplinkTransport)
	}
}
