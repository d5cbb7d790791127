package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func newHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(func(*http.Request) bool { return true }, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHubSubscribeAndBroadcastBySport(t *testing.T) {
	hub, srv := newHubServer(t)
	nba := dial(t, srv)
	all := dial(t, srv)

	_ = nba.WriteJSON(ClientMsg{Type: "subscribe", Sport: "basketball_nba"})
	if m := readMsg(t, nba); m["type"] != "subscribed" {
		t.Fatalf("ack = %v", m)
	}
	_ = all.WriteJSON(ClientMsg{Type: "subscribe", Sport: AllSports})
	readMsg(t, all)

	if got := hub.Subscribers(); got != 2 {
		t.Fatalf("subscribers = %d", got)
	}

	hub.Broadcast(OpportunityUpdate{Type: "opportunity", SportKey: "soccer_epl", Payload: json.RawMessage(`{"id":"epl"}`)})
	hub.Broadcast(OpportunityUpdate{Type: "opportunity", SportKey: "basketball_nba", Payload: json.RawMessage(`{"id":"nba"}`)})

	// o assinante de "*" recebe os dois, em ordem
	if m := readMsg(t, all); m["sportKey"] != "soccer_epl" {
		t.Fatalf("all first = %v", m)
	}
	if m := readMsg(t, all); m["sportKey"] != "basketball_nba" {
		t.Fatalf("all second = %v", m)
	}
	// o assinante de nba só recebe nba
	if m := readMsg(t, nba); m["sportKey"] != "basketball_nba" {
		t.Fatalf("nba = %v", m)
	}
}

func TestHubPingAndErrors(t *testing.T) {
	_, srv := newHubServer(t)
	conn := dial(t, srv)

	_ = conn.WriteJSON(ClientMsg{Type: "ping"})
	if m := readMsg(t, conn); m["type"] != "pong" {
		t.Fatalf("ping = %v", m)
	}
	_ = conn.WriteJSON(ClientMsg{Type: "subscribe"})
	if m := readMsg(t, conn); m["type"] != "error" {
		t.Fatalf("subscribe without sport = %v", m)
	}
	_ = conn.WriteJSON(ClientMsg{Type: "dance"})
	if m := readMsg(t, conn); m["type"] != "error" {
		t.Fatalf("unknown = %v", m)
	}
}

func TestRedisSubscriberForwardsToHub(t *testing.T) {
	hub, srv := newHubServer(t)
	conn := dial(t, srv)
	_ = conn.WriteJSON(ClientMsg{Type: "subscribe", Sport: "soccer_epl"})
	readMsg(t, conn)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRedisSubscriber(ctx, rdb, "arbitrage_broadcast", hub, zap.NewNop())

	payload := `{"type":"opportunity","sportKey":"soccer_epl","payload":{"id":"o1"}}`
	deadline := time.Now().Add(2 * time.Second)
	for mr.Publish("arbitrage_broadcast", payload) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	m := readMsg(t, conn)
	if p, _ := m["payload"].(map[string]any); p["id"] != "o1" {
		t.Fatalf("forwarded = %v", m)
	}
}
