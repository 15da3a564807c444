// Package receiver decodes sensor node uplinks delivered over MQTT and hands
// them to a store.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"picolink/internal/payload"
)

// ErrTopic is returned for messages outside uplink/<device>/payload.
var ErrTopic = errors.New("unexpected uplink topic")

// Uplink is one received payload with its readings already un-biased.
type Uplink struct {
	DeviceID   string
	ReceivedAt time.Time
	Payload    payload.Payload
	Readings   [payload.TripletsPerPayload]payload.Reading
}

// Handler processes a decoded uplink.
type Handler func(ctx context.Context, u Uplink) error

// DeviceFromTopic extracts the device id from uplink/<device>/payload.
func DeviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "uplink" || parts[2] != "payload" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrTopic, topic)
	}
	return parts[1], nil
}

// Decode validates and decodes one uplink message.
func Decode(topic string, body []byte, receivedAt time.Time) (Uplink, error) {
	deviceID, err := DeviceFromTopic(topic)
	if err != nil {
		return Uplink{}, err
	}
	p, err := payload.Parse(body)
	if err != nil {
		return Uplink{}, err
	}
	readings, err := p.Decode()
	if err != nil {
		return Uplink{}, fmt.Errorf("payload %s: %w", p.String(), err)
	}
	return Uplink{
		DeviceID:   deviceID,
		ReceivedAt: receivedAt,
		Payload:    p,
		Readings:   readings,
	}, nil
}

// Store persists uplinks.
type Store interface {
	InsertPayload(ctx context.Context, deviceID string, receivedAt time.Time, p payload.Payload, readings [payload.TripletsPerPayload]payload.Reading) (int64, error)
}

// StoreHandler returns a Handler that writes every uplink to store.
func StoreHandler(store Store, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, u Uplink) error {
		id, err := store.InsertPayload(ctx, u.DeviceID, u.ReceivedAt, u.Payload, u.Readings)
		if err != nil {
			logger.Error("failed to store uplink",
				"device_id", u.DeviceID,
				"payload", u.Payload.String(),
				"error", err,
			)
			return err
		}

		attrs := []any{"device_id", u.DeviceID, "payload_id", id, "payload", u.Payload.String()}
		for slot, r := range u.Readings {
			attrs = append(attrs, fmt.Sprintf("slot%d", slot), fmt.Sprintf("%.2fC/%d%%", r.Temperature(), r.Humidity))
		}
		logger.Info("uplink stored", attrs...)
		return nil
	}
}
