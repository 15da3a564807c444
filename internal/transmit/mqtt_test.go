package transmit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"

	"picolink/internal/payload"
)

// startBroker spins up an in-process MQTT broker on a free local port.
func startBroker(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Type:    "tcp",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })

	return port
}

func TestMQTT_SendPublishesRawPayload(t *testing.T) {
	port := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan []byte, 1)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://127.0.0.1:%d", port)).
		SetClientID("listener")
	listener := mqtt.NewClient(opts)
	tok := listener.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { listener.Disconnect(100) })

	tok = listener.Subscribe(Topic("node-1"), 0, func(_ mqtt.Client, m mqtt.Message) {
		received <- append([]byte(nil), m.Payload()...)
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	tx := NewMQTT(MQTTOptions{
		Broker:   "127.0.0.1",
		Port:     port,
		ClientID: "node-1",
		DeviceID: "node-1",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, tx.Connect(ctx))
	t.Cleanup(tx.Disconnect)
	require.Eventually(t, tx.IsConnected, 5*time.Second, 20*time.Millisecond)

	p := payload.Payload{50, 74, 72, 50, 74, 72, 50, 74, 72, 50, 74, 72}
	require.NoError(t, tx.Send(ctx, p))

	select {
	case got := <-received:
		require.Equal(t, p[:], got)
	case <-ctx.Done():
		t.Fatal("payload not received")
	}
}

func TestMQTT_SendWithoutConnection(t *testing.T) {
	tx := NewMQTT(MQTTOptions{Broker: "127.0.0.1", Port: 1, ClientID: "x", DeviceID: "x"}, nil)
	err := tx.Send(context.Background(), payload.Payload{})
	require.ErrorIs(t, err, ErrTransmit)
}

func TestMQTT_ConnectAfterDisconnect(t *testing.T) {
	tx := NewMQTT(MQTTOptions{Broker: "127.0.0.1", Port: 1, ClientID: "x", DeviceID: "x"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tx.Disconnect()
	tx.Disconnect()
	require.Error(t, tx.Connect(context.Background()))
}
