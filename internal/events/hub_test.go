package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Broadcast(TypeSnapshotTaken, map[string]any{"holders": 10})
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	conn := dialTestClient(t, server)
	waitForClients(t, hub, 1)

	hub.Broadcast(TypeTierUpgraded, map[string]any{"wallet": "wallet-a", "tier": 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var event Event
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if event.Type != TypeTierUpgraded {
		t.Errorf("Type = %s, want %s", event.Type, TypeTierUpgraded)
	}
	var payload map[string]any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal payload failed: %v", err)
	}
	if payload["wallet"] != "wallet-a" {
		t.Errorf("Payload wallet = %v, want wallet-a", payload["wallet"])
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	dialTestClient(t, server)
	waitForClients(t, hub, 1)

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount after Close = %d, want 0", hub.ClientCount())
	}
}
