package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/orc/internal/events"
)

func TestWSHandlerConnect(t *testing.T) {
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	handler := NewWSHandler(pub, nil)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer func() { _ = ws.Close() }()

	if err := ws.WriteJSON(WSMessage{Type: "ping"}); err != nil {
		t.Errorf("failed to send message: %v", err)
	}

	var resp map[string]any
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("failed to read pong: %v", err)
	}
	if resp["type"] != "pong" {
		t.Errorf("expected pong, got %+v", resp)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if handler.ConnectionCount() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("expected 1 connection, got %d", handler.ConnectionCount())
}

func TestWSHandlerSubscribeForwardsEvents(t *testing.T) {
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	handler := NewWSHandler(pub, nil)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer func() { _ = ws.Close() }()

	if err := ws.WriteJSON(WSMessage{Type: "subscribe", AttemptID: "attempt-1"}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	var ack map[string]any
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read subscribe ack: %v", err)
	}
	if ack["type"] != "subscribed" || ack["attempt_id"] != "attempt-1" {
		t.Fatalf("unexpected subscribe ack: %+v", ack)
	}

	pub.Publish(events.NewEvent(events.EventAttemptState, "attempt-1", events.AttemptStateData{State: "Idle"}))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evMsg map[string]any
	if err := ws.ReadJSON(&evMsg); err != nil {
		t.Fatalf("failed to read forwarded event: %v", err)
	}
	if evMsg["type"] != "event" || evMsg["attempt_id"] != "attempt-1" {
		t.Errorf("unexpected forwarded event: %+v", evMsg)
	}
}

func TestWSHandlerSubscribeRequiresAttemptID(t *testing.T) {
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	handler := NewWSHandler(pub, nil)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer func() { _ = ws.Close() }()

	if err := ws.WriteJSON(WSMessage{Type: "subscribe"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	var resp map[string]any
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp["type"] != "error" {
		t.Errorf("expected error response, got %+v", resp)
	}
}

func TestWSMessageJSONRoundtrip(t *testing.T) {
	msg := WSMessage{Type: "subscribe", AttemptID: "attempt-9"}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out WSMessage
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != msg.Type || out.AttemptID != msg.AttemptID {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
}
