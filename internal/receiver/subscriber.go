package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Options struct {
	Broker   string
	Port     int
	ClientID string
	// Topic is the subscription filter, normally uplink/+/payload.
	Topic string
	// HandlerTimeout bounds one Handler call.
	HandlerTimeout time.Duration
}

type Subscriber struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
	handler   Handler

	// subscribed is set after the first successful subscribe; later
	// reconnects subscribe again since the session is clean.
	subscribed atomic.Bool
	received   atomic.Int64
	rejected   atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

func NewSubscriber(opts Options, logger *slog.Logger) *Subscriber {
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Subscriber{
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
		now:    time.Now,
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
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
		if s.subscribed.Load() {
			if err := s.subscribe(); err != nil {
				logger.Error("mqtt resubscribe failed", "topic", opts.Topic, "error", err)
			}
		}
	})

	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(co)
	return s
}

// SetMessageHandler must be called before Connect.
func (s *Subscriber) SetMessageHandler(h Handler) {
	s.handler = h
}

// Connect waits for the broker connection and subscribes to the topic.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() && s.subscribed.Load() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}

	if err := s.subscribe(); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("subscribe: %w", err)
	}
	s.subscribed.Store(true)
	return nil
}

func (s *Subscriber) subscribe() error {
	// Nodes publish at QoS 0.
	const qos = byte(0)

	token := s.client.Subscribe(s.opts.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.opts.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.opts.Topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", "topic", s.opts.Topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, body []byte) {
	s.received.Add(1)
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(body))

	u, err := Decode(topic, body, s.now())
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("rejected uplink",
			"topic", topic,
			"size", len(body),
			"error", err,
		)
		return
	}

	if s.handler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.HandlerTimeout)
	defer cancel()
	if err := s.handler(ctx, u); err != nil {
		s.logger.Error("uplink handler failed",
			"topic", topic,
			"device_id", u.DeviceID,
			"error", err,
		)
	}
}

// Stats returns how many messages arrived and how many failed to decode.
func (s *Subscriber) Stats() (received, rejected int64) {
	return s.received.Load(), s.rejected.Load()
}

func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect is idempotent.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
