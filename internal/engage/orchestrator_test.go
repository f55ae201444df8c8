package engage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/brain"
	"github.com/priyankdesai/jaal/internal/callback"
	"github.com/priyankdesai/jaal/internal/feed"
	"github.com/priyankdesai/jaal/internal/intel"
	"github.com/priyankdesai/jaal/internal/observability"
	"github.com/priyankdesai/jaal/internal/persona"
	"github.com/priyankdesai/jaal/internal/scoring"
	"github.com/priyankdesai/jaal/internal/session"
)

const scamMessage = "URGENT! Verify your KYC now at http://secure-bank.tk or account blocked. Pay fee to winner@paytm"

func testOrchestrator(t *testing.T, cfg Config, store session.Store, provider scoring.Provider, adapter brain.Adapter, callbackURL string) *Orchestrator {
	t.Helper()
	if cfg.EngagementThreshold == 0 {
		cfg.EngagementThreshold = 0.7
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 30
	}
	if cfg.HighValueMinimum == 0 {
		cfg.HighValueMinimum = 3
	}
	if cfg.DefaultPersona == "" {
		cfg.DefaultPersona = "confused_senior"
	}
	if cfg.TurnDeadline == 0 {
		cfg.TurnDeadline = 5 * time.Second
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = time.Second
	}
	if store == nil {
		store = session.NewInMemoryStore(time.Hour)
	}
	if provider == nil {
		provider = &scoring.StaticProvider{}
	}
	if adapter == nil {
		adapter = brain.NewMockAdapter()
	}
	dispatcher := callback.NewDispatcher(callback.Config{
		URL:         callbackURL,
		Attempts:    1,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
		Timeout:     time.Second,
		HoldingDir:  t.TempDir(),
	}, zap.NewNop())
	engine := persona.NewEngine(adapter, time.Second, zap.NewNop())
	return NewOrchestrator(cfg, store, provider, engine, dispatcher, feed.NewHub(),
		observability.NewMetrics("test"), zap.NewNop())
}

func suspiciousProvider() *scoring.StaticProvider {
	age := 10
	return &scoring.StaticProvider{Result: scoring.Signals{DomainAgeDays: &age}}
}

func TestBelowThresholdTurnStaysGeneric(t *testing.T) {
	o := testOrchestrator(t, Config{}, nil, nil, nil, "")

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "benign-1",
		SenderID:  "HDFCBK",
		Message:   "Hi, are we still on for lunch tomorrow?",
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Engaged {
		t.Fatalf("benign message engaged: %+v", res)
	}
	if res.ScamProbability >= 0.7 {
		t.Fatalf("probability = %v", res.ScamProbability)
	}
	if len(res.NewRecords) != 0 {
		t.Fatalf("extraction ran on a gated turn: %+v", res.NewRecords)
	}
	if res.EmotionalState != "" {
		t.Fatalf("persona advanced on a gated turn: %q", res.EmotionalState)
	}
	if res.Reply == "" {
		t.Fatalf("gated turn still needs a reply")
	}
}

func TestEngagedTurnScoresRepliesAndExtracts(t *testing.T) {
	o := testOrchestrator(t, Config{}, nil, suspiciousProvider(), nil, "")

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "scam-1",
		SenderID:  "JX-44",
		Message:   scamMessage,
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !res.Engaged {
		t.Fatalf("suspicious message not engaged, probability %v", res.ScamProbability)
	}
	if res.ScamProbability < 0.7 {
		t.Fatalf("probability = %v, want >= 0.7", res.ScamProbability)
	}
	if res.TurnCount != 1 || res.Completed {
		t.Fatalf("result = %+v", res)
	}
	if res.EmotionalState != string(persona.StateInitial) {
		t.Fatalf("state = %q, want initial", res.EmotionalState)
	}
	if res.Reply == "" {
		t.Fatalf("no reply")
	}

	var gotPayment, gotURL bool
	for _, r := range res.NewRecords {
		switch r.Type {
		case intel.TypePaymentID:
			gotPayment = r.Value == "winner@paytm" && r.FirstSeenTurn == 1
		case intel.TypeURL:
			gotURL = r.Suspicious
		}
	}
	if !gotPayment || !gotURL {
		t.Fatalf("records = %+v", res.NewRecords)
	}

	sess, err := o.Get(context.Background(), "scam-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(sess.History) != 2 || sess.History[0].Speaker != session.SpeakerScammer {
		t.Fatalf("history = %+v", sess.History)
	}
	if sess.LastReply != res.Reply {
		t.Fatalf("last reply not recorded")
	}
}

func TestDuplicateIntelReportedOnce(t *testing.T) {
	o := testOrchestrator(t, Config{}, nil, suspiciousProvider(), nil, "")
	ctx := context.Background()

	first, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "dup-1", SenderID: "JX-44", Message: scamMessage})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "dup-1", SenderID: "JX-44", Message: scamMessage})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if len(first.NewRecords) == 0 {
		t.Fatalf("first turn extracted nothing")
	}
	if len(second.NewRecords) != 0 {
		t.Fatalf("duplicates re-reported: %+v", second.NewRecords)
	}

	sess, _ := o.Get(ctx, "dup-1")
	if len(sess.Ledger) != len(first.NewRecords) {
		t.Fatalf("ledger grew on duplicates: %d vs %d", len(sess.Ledger), len(first.NewRecords))
	}
}

func TestHighValueCompletionDispatchesReport(t *testing.T) {
	var mu sync.Mutex
	var received *callback.Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep callback.Report
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = &rep
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := testOrchestrator(t, Config{HighValueMinimum: 2}, nil, suspiciousProvider(), nil, srv.URL)
	ctx := context.Background()

	first, err := o.ProcessTurn(ctx, TurnRequest{
		SessionID: "hv-1", SenderID: "JX-44",
		Message: "URGENT kyc verify http://fast-prize.tk pay to winner@paytm now",
	})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Completed {
		t.Fatalf("completed after one high-value record")
	}

	second, err := o.ProcessTurn(ctx, TurnRequest{
		SessionID: "hv-1", SenderID: "JX-44",
		Message: "URGENT verify http://fast-prize.tk also send to backup@ybl immediately",
	})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.Completed {
		t.Fatalf("second high-value record should complete: %+v", second)
	}

	o.Flush()
	mu.Lock()
	defer mu.Unlock()
	if received == nil {
		t.Fatalf("no report delivered")
	}
	if received.SessionID != "hv-1" || received.CompletionReason != callback.ReasonHighValue {
		t.Fatalf("report = %+v", received)
	}
	if received.TurnCount != 2 || len(received.Ledger) == 0 {
		t.Fatalf("report = %+v", received)
	}

	sess, _ := o.Get(ctx, "hv-1")
	if sess.Stage != session.StageClosed {
		t.Fatalf("stage = %q, want closed", sess.Stage)
	}
}

func TestMaxTurnsCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := testOrchestrator(t, Config{MaxTurns: 2}, nil, nil, nil, srv.URL)
	ctx := context.Background()

	first, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "mt-1", Message: "hello?"})
	if err != nil || first.Completed {
		t.Fatalf("first turn: %+v, %v", first, err)
	}
	second, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "mt-1", Message: "hello again"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.Completed || second.TurnCount != 2 {
		t.Fatalf("turn cap not enforced: %+v", second)
	}
	o.Flush()
}

func TestCompletedSessionReplaysLastReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := testOrchestrator(t, Config{MaxTurns: 1}, nil, nil, nil, srv.URL)
	ctx := context.Background()

	final, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "rp-1", Message: "last words"})
	if err != nil || !final.Completed {
		t.Fatalf("final turn: %+v, %v", final, err)
	}
	o.Flush()

	replay, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "rp-1", Message: "are you still there??"})
	if err != nil {
		t.Fatalf("replay turn: %v", err)
	}
	if replay.Reply != final.Reply {
		t.Fatalf("replay reply = %q, want %q", replay.Reply, final.Reply)
	}
	if replay.TurnCount != final.TurnCount {
		t.Fatalf("replay advanced the turn count: %d", replay.TurnCount)
	}
	if len(replay.NewRecords) != 0 {
		t.Fatalf("replay extracted records")
	}
}

type failingBrain struct{}

func (failingBrain) Generate(context.Context, brain.Request) (brain.Response, error) {
	return brain.Response{}, context.DeadlineExceeded
}

func TestGenerationFailureServesPersonaLine(t *testing.T) {
	o := testOrchestrator(t, Config{}, nil, suspiciousProvider(), failingBrain{}, "")

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "gf-1", SenderID: "JX-44", Message: scamMessage,
	})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	profile, _ := persona.Lookup("confused_senior")
	want := persona.FallbackLine(profile, persona.StateInitial, 1)
	if res.Reply != want {
		t.Fatalf("reply = %q, want fallback %q", res.Reply, want)
	}
	if !res.Engaged {
		t.Fatalf("generation failure must not drop the turn")
	}
}

type saveFailStore struct {
	session.Store
	failSaves bool
}

func (s *saveFailStore) Save(ctx context.Context, sess *session.Session) error {
	if s.failSaves {
		return &session.TransientError{Op: "save", Err: context.DeadlineExceeded}
	}
	return s.Store.Save(ctx, sess)
}

func TestPersistFailureDegradesGracefully(t *testing.T) {
	store := &saveFailStore{Store: session.NewInMemoryStore(time.Hour), failSaves: true}
	o := testOrchestrator(t, Config{}, store, suspiciousProvider(), nil, "")

	res, err := o.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "pf-1", SenderID: "JX-44", Message: scamMessage,
	})
	if err != nil {
		t.Fatalf("persist failure must not error the turn: %v", err)
	}
	if res.Reply != apologeticReply {
		t.Fatalf("reply = %q", res.Reply)
	}
	if res.Completed {
		t.Fatalf("degraded turn must not report completion")
	}
}

func TestDeleteSession(t *testing.T) {
	o := testOrchestrator(t, Config{}, nil, nil, nil, "")
	ctx := context.Background()

	if _, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "del-1", Message: "hi"}); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if err := o.Delete(ctx, "del-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := o.Get(ctx, "del-1"); err != session.ErrNotFound {
		t.Fatalf("Get after delete = %v", err)
	}
	if err := o.Delete(ctx, "del-1"); err != session.ErrNotFound {
		t.Fatalf("Delete of absent session = %v", err)
	}
}
