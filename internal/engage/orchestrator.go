// Package engage runs the per-turn pipeline: score the incoming
// message, gate engagement, generate the persona reply, extract
// intelligence, persist, and close out completed sessions.
package engage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/callback"
	"github.com/priyankdesai/jaal/internal/feed"
	"github.com/priyankdesai/jaal/internal/intel"
	"github.com/priyankdesai/jaal/internal/observability"
	"github.com/priyankdesai/jaal/internal/persona"
	"github.com/priyankdesai/jaal/internal/reliability"
	"github.com/priyankdesai/jaal/internal/scoring"
	"github.com/priyankdesai/jaal/internal/session"
)

const storeRetryBase = 50 * time.Millisecond

// Non-committal lines served while a session sits below the
// engagement threshold.
var genericReplies = []string{
	"Ok.",
	"Sorry, who is this?",
	"I think you may have the wrong number.",
	"Hmm, I will check and get back to you.",
}

const apologeticReply = "Sorry, my phone is acting up. Can you send that once more in a bit?"

// Config carries the pipeline tunables.
type Config struct {
	EngagementThreshold float64
	MaxTurns            int
	HighValueMinimum    int
	DefaultPersona      string
	TurnDeadline        time.Duration
	PersistTimeout      time.Duration
	StoreReadRetries    int
}

// TurnRequest is one inbound scammer message. At is the message's
// origination time when the routing layer supplies one; zero means
// "now".
type TurnRequest struct {
	SessionID string
	SenderID  string
	Message   string
	At        time.Time
}

// TurnResult is what the transport returns to the caller.
type TurnResult struct {
	SessionID         string         `json:"session_id"`
	Reply             string         `json:"reply"`
	ScamProbability   float64        `json:"scam_probability"`
	EmotionalState    string         `json:"emotional_state"`
	TurnCount         int            `json:"turn_count"`
	Engaged           bool           `json:"engaged"`
	Completed         bool           `json:"is_complete"`
	EngagementSeconds float64        `json:"engagement_duration_seconds"`
	NewRecords        []intel.Record `json:"new_records,omitempty"`
}

// Orchestrator owns the turn pipeline.
type Orchestrator struct {
	cfg        Config
	store      session.Store
	locks      *session.Locks
	provider   scoring.Provider
	engine     *persona.Engine
	dispatcher *callback.Dispatcher
	hub        *feed.Hub
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time

	dispatchWG sync.WaitGroup
}

func NewOrchestrator(
	cfg Config,
	store session.Store,
	provider scoring.Provider,
	engine *persona.Engine,
	dispatcher *callback.Dispatcher,
	hub *feed.Hub,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		locks:      session.NewLocks(),
		provider:   provider,
		engine:     engine,
		dispatcher: dispatcher,
		hub:        hub,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessTurn runs the full pipeline for one inbound message. Turns
// for the same session are serialized; the returned result is always
// usable even when persistence degrades mid-turn.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	release := o.locks.Acquire(req.SessionID)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnDeadline)
	defer cancel()

	sess, created, err := o.loadOrCreate(ctx, req.SessionID)
	if err != nil {
		o.metrics.StoreErrors.WithLabelValues("load").Inc()
		return TurnResult{}, fmt.Errorf("load session: %w", err)
	}
	if created {
		o.metrics.ActiveSessions.Inc()
		o.logger.Info("session created",
			zap.String("session_id", sess.ID),
			zap.String("persona", sess.Persona),
		)
	}

	// A completed session replays its final reply instead of
	// reopening the conversation.
	if sess.Completed {
		o.metrics.TurnEvents.WithLabelValues("replay").Inc()
		return TurnResult{
			SessionID:         sess.ID,
			Reply:             sess.LastReply,
			ScamProbability:   sess.ScamProbability,
			EmotionalState:    sess.EmotionalState,
			TurnCount:         sess.TurnCount,
			Engaged:           true,
			Completed:         true,
			EngagementSeconds: sess.CompletedAt.Sub(sess.CreatedAt).Seconds(),
		}, nil
	}

	now := o.now().UTC()
	msgAt := now
	if !req.At.IsZero() {
		msgAt = req.At.UTC()
	}
	sess.TurnCount++
	sess.Append(session.SpeakerScammer, req.Message, msgAt)

	result := scoring.Score(req.Message, req.SenderID, o.lookupSignals(ctx, req))
	sess.ScamProbability = result.Probability
	sess.AddFlags(result.Flags...)
	o.metrics.ScamProbability.Observe(result.Probability)

	engaged := result.Probability >= o.cfg.EngagementThreshold
	var reply string
	var newRecords []intel.Record
	if engaged {
		profile, perr := persona.Lookup(sess.Persona)
		if perr == nil {
			sess.EmotionalState = string(persona.Advance(
				profile,
				persona.State(sess.EmotionalState),
				sess.TurnCount,
				result.Probability,
				o.cfg.EngagementThreshold,
			))
		}

		var fellBack bool
		reply, fellBack = o.engine.NextReply(ctx, sess, req.Message)
		if fellBack {
			o.metrics.GenerationFailures.Inc()
		}

		newRecords = intel.Extract(req.Message, sess.Ledger, sess.TurnCount, now)
		sess.Ledger = append(sess.Ledger, newRecords...)
		for i := range newRecords {
			o.metrics.ExtractionRecords.WithLabelValues(string(newRecords[i].Type)).Inc()
			o.hub.Publish(feed.Event{
				SessionID: sess.ID,
				Type:      feed.EventExtraction,
				Record:    &newRecords[i],
				At:        now,
			})
		}
		o.metrics.TurnEvents.WithLabelValues("engaged").Inc()
	} else {
		reply = genericReplies[sess.TurnCount%len(genericReplies)]
		o.metrics.TurnEvents.WithLabelValues("below_threshold").Inc()
	}

	sess.Append(session.SpeakerAgent, reply, now)
	sess.LastReply = reply

	reason := o.completionReason(sess)
	if reason != "" {
		sess.Completed = true
		sess.CompletedAt = now
		sess.Stage = session.StageCompleting
	}

	if err := o.persist(sess); err != nil {
		o.metrics.StoreErrors.WithLabelValues("save").Inc()
		o.logger.Error("session persist failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return TurnResult{
			SessionID:         sess.ID,
			Reply:             apologeticReply,
			ScamProbability:   sess.ScamProbability,
			EmotionalState:    sess.EmotionalState,
			TurnCount:         sess.TurnCount,
			Engaged:           engaged,
			Completed:         false,
			EngagementSeconds: now.Sub(sess.CreatedAt).Seconds(),
		}, nil
	}

	if reason != "" {
		o.logger.Info("session completed",
			zap.String("session_id", sess.ID),
			zap.String("reason", reason),
			zap.Int("turns", sess.TurnCount),
			zap.Int("ledger_size", len(sess.Ledger)),
		)
		o.metrics.ActiveSessions.Dec()
		o.hub.Publish(feed.Event{SessionID: sess.ID, Type: feed.EventSessionCompleted, At: now})
		o.dispatchReport(sess.Clone(), reason)
	}

	return TurnResult{
		SessionID:         sess.ID,
		Reply:             reply,
		ScamProbability:   sess.ScamProbability,
		EmotionalState:    sess.EmotionalState,
		TurnCount:         sess.TurnCount,
		Engaged:           engaged,
		Completed:         sess.Completed,
		EngagementSeconds: now.Sub(sess.CreatedAt).Seconds(),
		NewRecords:        newRecords,
	}, nil
}

// Get returns the stored session.
func (o *Orchestrator) Get(ctx context.Context, id string) (*session.Session, error) {
	return o.store.Load(ctx, id)
}

// Delete drops the session without dispatching a report.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	release := o.locks.Acquire(id)
	defer release()

	sess, err := o.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	if !sess.Completed {
		o.metrics.ActiveSessions.Dec()
	}
	return nil
}

// Flush blocks until in-flight report dispatches finish. Used during
// shutdown.
func (o *Orchestrator) Flush() {
	o.dispatchWG.Wait()
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, id string) (*session.Session, bool, error) {
	chosen := persona.Select(id, o.cfg.DefaultPersona)
	var lastErr error
	for attempt := 0; attempt <= o.cfg.StoreReadRetries; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, storeRetryBase, time.Second)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, false, ctx.Err()
			case <-timer.C:
			}
		}
		sess, created, err := o.store.CreateIfAbsent(ctx, id, chosen)
		if err == nil {
			return sess, created, nil
		}
		lastErr = err
		if !session.IsTransient(err) {
			return nil, false, err
		}
	}
	return nil, false, lastErr
}

// persist writes on a context detached from the turn deadline so a
// slow turn never loses state it already computed.
func (o *Orchestrator) persist(sess *session.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PersistTimeout)
	defer cancel()
	return o.store.Save(ctx, sess)
}

func (o *Orchestrator) lookupSignals(ctx context.Context, req TurnRequest) scoring.Signals {
	if o.provider == nil {
		return scoring.Signals{}
	}
	lookup := scoring.LookupRequest{SenderID: req.SenderID}
	if urls := intel.MatchURLs(req.Message); len(urls) > 0 {
		lookup.URL = urls[0]
		lookup.Domain = scoring.DomainOf(urls[0])
	}
	sig, err := o.provider.Lookup(ctx, lookup)
	if err != nil {
		o.logger.Warn("signal lookup failed, scoring on message alone",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return scoring.Signals{}
	}
	return sig
}

// completionReason checks the two completion triggers after
// extraction. When both fire on the same turn the turn cap wins.
func (o *Orchestrator) completionReason(sess *session.Session) string {
	if sess.TurnCount >= o.cfg.MaxTurns {
		return callback.ReasonMaxTurns
	}
	if sess.HighValueCount() >= o.cfg.HighValueMinimum {
		return callback.ReasonHighValue
	}
	return ""
}

func (o *Orchestrator) dispatchReport(sess *session.Session, reason string) {
	report := callback.BuildReport(sess, reason)
	o.dispatchWG.Add(1)
	go func() {
		defer o.dispatchWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result, err := o.dispatcher.Dispatch(ctx, report)
		o.metrics.CallbackAttempts.WithLabelValues(result.Outcome).Add(float64(len(result.Attempts)))
		if err != nil {
			o.logger.Error("report lost: delivery and holding both failed",
				zap.String("session_id", report.SessionID),
				zap.Error(err),
			)
		}

		sess.Stage = session.StageClosed
		if err := o.persist(sess); err != nil {
			o.logger.Warn("failed to mark session closed",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
	}()
}
