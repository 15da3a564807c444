package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"

	"picolink/internal/config"
	"picolink/internal/payload"
	"picolink/internal/sampler"
	"picolink/internal/sensor"
	"picolink/internal/transmit"
	"picolink/internal/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func startBroker(t *testing.T) int {
	t.Helper()
	port := freePort(t)

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "app-test",
		Type:    "tcp",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })
	return port
}

// cancelAfterSend forwards one send and then stops the node.
type cancelAfterSend struct {
	next   transmit.Transmitter
	cancel context.CancelFunc
	sent   []payload.Payload
}

func (c *cancelAfterSend) Send(ctx context.Context, p payload.Payload) error {
	err := c.next.Send(ctx, p)
	if err == nil {
		c.sent = append(c.sent, p)
	}
	c.cancel()
	return err
}

func TestNodeToReceiver(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	brokerPort := startBroker(t)
	httpAddr := fmt.Sprintf("127.0.0.1:%d", freePort(t))

	rcfg := config.Receiver{
		Common:             config.Common{AppEnv: "dev", LogLevel: slog.LevelInfo},
		MQTT:               config.MQTT{Broker: "127.0.0.1", Port: brokerPort, ClientID: "receiver-test"},
		MQTTTopic:          "uplink/+/payload",
		HTTPAddr:           httpAddr,
		SQLiteDriver:       "sqlite3",
		SQLitePath:         filepath.Join(t.TempDir(), "picolink.db"),
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}

	rctx, rcancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunReceiver(rctx, rcfg) }()
	t.Cleanup(func() {
		rcancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("RunReceiver() error = %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Error("receiver did not stop")
		}
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + httpAddr
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body map[string]string
		return resp.StatusCode == http.StatusOK &&
			json.NewDecoder(resp.Body).Decode(&body) == nil &&
			body["mqtt"] == "connected"
	}, 10*time.Second, 50*time.Millisecond)

	ncfg := testNodeConfig()
	ncfg.DeviceID = "node-e2e"
	tx := transmit.NewMQTT(transmit.MQTTOptions{
		Broker:   "127.0.0.1",
		Port:     brokerPort,
		ClientID: "node-e2e",
		DeviceID: ncfg.DeviceID,
	}, slog.Default())
	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()
	require.NoError(t, tx.Connect(cctx))
	t.Cleanup(tx.Disconnect)
	require.Eventually(t, tx.IsConnected, 5*time.Second, 20*time.Millisecond)

	hi := 23.47
	src := sensor.NewScripted(sensor.Sample{Temperature: 22, Humidity: 45, HeatIndex: &hi})
	src.Loop = true

	nctx, ncancel := context.WithCancel(context.Background())
	defer ncancel()
	wrapped := &cancelAfterSend{next: tx, cancel: ncancel}
	err := runPipeline(nctx, ncfg, src, wrapped, &sampler.RecordingSleeper{})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, wrapped.sent, 1)

	var readings []types.Reading
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/api/devices/node-e2e/readings?limit=10")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		readings = nil
		return json.NewDecoder(resp.Body).Decode(&readings) == nil && len(readings) == payload.TripletsPerPayload
	}, 5*time.Second, 50*time.Millisecond)

	for _, r := range readings {
		require.Equal(t, "node-e2e", r.DeviceID)
		require.InDelta(t, 23.47, r.HeatIndexC, 1e-9)
		require.Equal(t, 45, r.HumidityPct)
		require.Equal(t, "324A48324A48324A48324A48", r.PayloadHex)
	}

	// Exactly one payload: nothing more arrives after the node stopped.
	time.Sleep(200 * time.Millisecond)
	resp, err := client.Get(base + "/api/devices/node-e2e/readings?limit=100")
	require.NoError(t, err)
	defer resp.Body.Close()
	var all []types.Reading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, payload.TripletsPerPayload)
}
