package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/brain"
	"github.com/priyankdesai/jaal/internal/callback"
	"github.com/priyankdesai/jaal/internal/config"
	"github.com/priyankdesai/jaal/internal/engage"
	"github.com/priyankdesai/jaal/internal/feed"
	"github.com/priyankdesai/jaal/internal/intel"
	"github.com/priyankdesai/jaal/internal/observability"
	"github.com/priyankdesai/jaal/internal/persona"
	"github.com/priyankdesai/jaal/internal/scoring"
	"github.com/priyankdesai/jaal/internal/session"
)

func newTestServer(t *testing.T) (*Server, *feed.Hub) {
	t.Helper()
	cfg := config.Config{}
	store := session.NewInMemoryStore(time.Hour)
	hub := feed.NewHub()
	metrics := observability.NewMetrics("test")
	engine := persona.NewEngine(brain.NewMockAdapter(), time.Second, zap.NewNop())
	dispatcher := callback.NewDispatcher(callback.Config{
		URL: "http://127.0.0.1:0", Attempts: 1, BackoffBase: time.Millisecond,
		BackoffCap: time.Millisecond, Timeout: time.Second, HoldingDir: t.TempDir(),
	}, zap.NewNop())
	orchestrator := engage.NewOrchestrator(engage.Config{
		EngagementThreshold: 0.7,
		MaxTurns:            30,
		HighValueMinimum:    3,
		DefaultPersona:      "confused_senior",
		TurnDeadline:        5 * time.Second,
		PersistTimeout:      time.Second,
	}, store, &scoring.StaticProvider{}, engine, dispatcher, hub, metrics, zap.NewNop())
	return New(cfg, orchestrator, store, hub, metrics, zap.NewNop()), hub
}

func postTurn(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	res, err := http.Post(ts.URL+"/v1/turns", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /v1/turns: %v", err)
	}
	return res
}

func TestTurnEndpointAssignsSessionID(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postTurn(t, ts, `{"message":"hello there"}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var result engage.TurnResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.SessionID == "" {
		t.Fatalf("no session id assigned")
	}
	if result.Reply == "" || result.TurnCount != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestTurnEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postTurn(t, ts, `{"session_id":"s1","message":"   "}`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank message status = %d, want 400", res.StatusCode)
	}

	res = postTurn(t, ts, `{not json`)
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", res.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res := postTurn(t, ts, `{"session_id":"life-1","message":"hello"}`)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", res.StatusCode)
	}

	res, err := http.Get(ts.URL + "/v1/sessions/life-1")
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	var sess session.Session
	if err := json.NewDecoder(res.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	res.Body.Close()
	if sess.ID != "life-1" || sess.TurnCount != 1 || len(sess.History) != 2 {
		t.Fatalf("session = %+v", sess)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/life-1", nil)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE session: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", res.StatusCode)
	}

	res, err = http.Get(ts.URL + "/v1/sessions/life-1")
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", res.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	res.Body.Close()
	if health["status"] != "ok" || health["store_mode"] != "inmemory" {
		t.Fatalf("health = %v", health)
	}

	res, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", res.StatusCode)
	}

	res, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", res.StatusCode)
	}
}

func TestIntelWSStreamsEvents(t *testing.T) {
	srv, hub := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/intel/ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	// Give the subscription a moment to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	var ev feed.Event
	for {
		hub.Publish(feed.Event{
			SessionID: "ws-1",
			Type:      feed.EventExtraction,
			Record:    &intel.Record{Type: intel.TypePaymentID, Value: "winner@paytm"},
			At:        time.Now(),
		})
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.ReadJSON(&ev); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no event received over websocket")
		}
	}
	if ev.SessionID != "ws-1" || ev.Record == nil || ev.Record.Value != "winner@paytm" {
		t.Fatalf("event = %+v", ev)
	}
}
