package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/brain"
	"github.com/priyankdesai/jaal/internal/session"
)

const historyWindow = 12

// Engine turns incoming scammer messages into in-character replies. A
// generation failure never surfaces to the caller; the persona's
// canned line for its current state is served instead.
type Engine struct {
	adapter brain.Adapter
	timeout time.Duration
	logger  *zap.Logger
}

func NewEngine(adapter brain.Adapter, timeout time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{adapter: adapter, timeout: timeout, logger: logger}
}

// NextReply generates the persona's reply to the incoming message. The
// returned bool reports whether a canned fallback line was used.
func (e *Engine) NextReply(ctx context.Context, sess *session.Session, incoming string) (string, bool) {
	profile, err := Lookup(sess.Persona)
	if err != nil {
		profile = profiles["confused_senior"]
	}
	state := State(sess.EmotionalState)
	if state == "" {
		state = StateInitial
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.adapter.Generate(genCtx, brain.Request{
		SessionID:      sess.ID,
		PersonaID:      profile.ID,
		EmotionalState: string(state),
		InputText:      incoming,
		History:        historyLines(sess),
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		e.logger.Warn("reply generation failed, serving fallback line",
			zap.String("session_id", sess.ID),
			zap.String("persona", profile.ID),
			zap.Error(err),
		)
		return FallbackLine(profile, state, sess.TurnCount), true
	}
	return strings.TrimSpace(resp.Text), false
}

func historyLines(sess *session.Session) []string {
	msgs := sess.History
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker, m.Text))
	}
	return lines
}
