package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sudo_thrust/internal/infra"

	"github.com/gorilla/websocket"
)

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("bad envelope %s: %v", data, err)
	}
	return env
}

func TestHub_StateThenBroadcast(t *testing.T) {
	metrics := &infra.Metrics{}
	hub := NewHub(func() any { return map[string]string{"symbol": "ETH-PERP"} }, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(New(":0", &fakeTerminal{}, hub).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Type != "state" {
		t.Fatalf("Expected initial state, got %s", env.Type)
	}

	// Registration happens before the first message is read back.
	deadline := time.Now().Add(2 * time.Second)
	for metrics.Snapshot().ActiveClients != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	hub.Publish("tick", map[string]float64{"price": 3000})
	env := readEnvelope(t, conn)
	if env.Type != "tick" {
		t.Fatalf("Expected tick, got %s", env.Type)
	}
	if payload, ok := env.Payload.(map[string]any); !ok || payload["price"] != float64(3000) {
		t.Errorf("Unexpected payload %v", env.Payload)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for metrics.Snapshot().ActiveClients != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := metrics.Snapshot().ActiveClients; n != 0 {
		t.Errorf("Expected client unregistered, got %d", n)
	}
}

func TestHub_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, &infra.Metrics{})
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize*2; i++ {
			hub.Publish("tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
