package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/scamshield-labs/scamshield/internal/identity"
)

func newHubServer(t *testing.T) (*Hub, *httptest.Server, *http.Client) {
	t.Helper()

	hub := NewHub()
	handler := NewWebSocketHandler(hub, "", true)

	mux := http.NewServeMux()
	mux.Handle("/ws/game", identity.Middleware(true)(handler))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}
	return hub, srv, &http.Client{Jar: jar}
}

func dialGame(t *testing.T, srv *httptest.Server, client *http.Client) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/game"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: client})
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func anonID(t *testing.T, srv *httptest.Server, client *http.Client) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == identity.AnonCookieName {
			return c.Value
		}
	}
	t.Fatal("no anonymous identity cookie set")
	return ""
}

// waitRegistered polls until the hub has registered a connection for the
// user; registration races the dial returning.
func waitRegistered(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		_, registered := hub.active[userID]
		hub.mu.RUnlock()
		if registered {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	t.Parallel()

	hub, srv, client := newHubServer(t)
	conn := dialGame(t, srv, client)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	userID := anonID(t, srv, client)
	waitRegistered(t, hub, userID)

	hub.Publish(userID, identity.DefaultTabIDValue, Event{
		Type:      EventAggregates,
		SessionID: "sess-1",
		Payload:   map[string]int{"score": 100},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read push event: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode push event: %v", err)
	}
	if ev.Type != EventAggregates || ev.SessionID != "sess-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	t.Parallel()

	hub, srv, client := newHubServer(t)

	first := dialGame(t, srv, client)
	waitRegistered(t, hub, anonID(t, srv, client))
	second := dialGame(t, srv, client)
	defer second.Close(websocket.StatusNormalClosure, "test done")

	// The replaced connection gets a proper close frame from the hub.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	if err == nil {
		t.Fatal("replaced connection must be closed")
	}
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}

func TestPublishWithoutSubscriberIsNoop(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	// Must not panic or block.
	hub.Publish("nobody", "default", Event{Type: EventSummary, SessionID: "sess-x"})
}
