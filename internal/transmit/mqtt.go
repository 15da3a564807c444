package transmit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"picolink/internal/payload"
)

// MQTTOptions configures the MQTT uplink.
type MQTTOptions struct {
	Broker   string
	Port     int
	ClientID string
	DeviceID string
	// PublishTimeout bounds how long Send waits for the broker.
	PublishTimeout time.Duration
}

// Topic returns the topic a device publishes its payloads on.
func Topic(deviceID string) string {
	return fmt.Sprintf("uplink/%s/payload", deviceID)
}

// MQTT publishes the raw 12 payload bytes with QoS 0, so the broker never
// redelivers and the client never retries.
type MQTT struct {
	client    mqtt.Client
	opts      MQTTOptions
	topic     string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTT(opts MQTTOptions, logger *slog.Logger) *MQTT {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &MQTT{
		opts:   opts,
		topic:  Topic(opts.DeviceID),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	co.SetClientID(opts.ClientID)

	co.SetCleanSession(true)

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(_ mqtt.Client) {
		t.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
	})

	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	t.client = mqtt.NewClient(co)
	return t
}

// Connect waits for the initial connection, respecting ctx and Disconnect.
func (t *MQTT) Connect(ctx context.Context) error {
	select {
	case <-t.stopCh:
		return fmt.Errorf("transmitter stopped")
	default:
	}

	if t.IsConnected() {
		return nil
	}

	// With ConnectRetry the token may keep retrying internally.
	token := t.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stopCh:
			return fmt.Errorf("transmitter stopped")
		default:
		}
	}
}

// Send publishes p once. A missing connection or broker error is returned
// wrapped in ErrTransmit; the payload is not queued.
func (t *MQTT) Send(ctx context.Context, p payload.Payload) error {
	if !t.IsConnected() {
		return fmt.Errorf("%w: mqtt client not connected", ErrTransmit)
	}

	token := t.client.Publish(t.topic, 0, false, p[:])

	timeout := t.opts.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: publish timeout for topic %s", ErrTransmit, t.topic)
	}
	if err := token.Error(); err != nil {
		t.logger.Error("failed to publish payload", "topic", t.topic, "error", err)
		return fmt.Errorf("%w: publish: %w", ErrTransmit, err)
	}

	t.logger.Debug("published payload", "topic", t.topic, "payload", p.String())
	return nil
}

func (t *MQTT) IsConnected() bool {
	t.mu.RLock()
	connected := t.connected
	t.mu.RUnlock()
	return connected && t.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "transmitter stopped".
func (t *MQTT) Disconnect() {
	t.stopOnce.Do(func() { close(t.stopCh) })

	if t.client != nil {
		t.client.Disconnect(250)
	}

	t.setConnected(false)
	t.logger.Info("mqtt disconnected")
}

func (t *MQTT) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}
