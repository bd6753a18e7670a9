package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/observerproto"
)

func TestFeedFiltersByAction(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Actions: []string{"claim"}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for s.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_ = s.WriteAudit(model.AuditEntry{Action: "UNCLAIM", World: "world"})
	_ = s.WriteAudit(model.AuditEntry{Action: "CLAIM", World: "world", X: 2, Z: -1})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got observerproto.AuditMsg
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Seq != 2 || got.Entry.Action != "CLAIM" || got.Entry.X != 2 || got.Entry.Z != -1 {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestFeedRejectsBadSubscribe(t *testing.T) {
	s := NewServer(nil)
	ts := httptest.NewServer(s.WSHandler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": "HELLO"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	s := NewServer(nil)
	st := &subscriber{out: make(chan []byte, 1), gone: make(chan struct{})}
	s.subs["O1"] = st

	_ = s.WriteAudit(model.AuditEntry{Action: "CLAIM"})
	_ = s.WriteAudit(model.AuditEntry{Action: "CLAIM"})

	select {
	case <-st.gone:
	default:
		t.Fatalf("slow subscriber not dropped")
	}
	if s.Subscribers() != 0 || s.Dropped() != 1 {
		t.Fatalf("subscribers=%d dropped=%d", s.Subscribers(), s.Dropped())
	}
	// Later entries must not panic on the closed subscriber.
	_ = s.WriteAudit(model.AuditEntry{Action: "CLAIM"})
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.5:80":    false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q) = %v", addr, got)
		}
	}
}
