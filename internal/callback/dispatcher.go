package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/reliability"
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeHeld      = "held"
)

// Attempt records one delivery try.
type Attempt struct {
	Number     int       `json:"number"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Result summarizes a dispatch.
type Result struct {
	Outcome     string
	Attempts    []Attempt
	HoldingPath string
}

// Config controls delivery behavior.
type Config struct {
	URL         string
	APIKey      string
	Attempts    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Timeout     time.Duration
	HoldingDir  string
}

// Dispatcher posts completion reports to the configured endpoint.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Dispatch delivers the report, retrying transient failures with
// capped exponential backoff. When every attempt fails the report is
// written to the holding directory; Dispatch itself only errors when
// even that fallback fails.
func (d *Dispatcher) Dispatch(ctx context.Context, report Report) (Result, error) {
	var attempts []Attempt
	for i := 0; i < d.cfg.Attempts; i++ {
		if i > 0 {
			wait := reliability.ExponentialBackoff(i-1, d.cfg.BackoffBase, d.cfg.BackoffCap)
			if err := d.sleep(ctx, wait); err != nil {
				break
			}
		}
		attempt := Attempt{Number: i + 1, At: time.Now().UTC()}
		status, err := d.post(ctx, report)
		attempt.StatusCode = status
		if err != nil {
			attempt.Error = err.Error()
		}
		attempts = append(attempts, attempt)

		if err == nil {
			d.logger.Info("callback delivered",
				zap.String("session_id", report.SessionID),
				zap.Int("attempt", attempt.Number),
			)
			return Result{Outcome: OutcomeDelivered, Attempts: attempts}, nil
		}
		d.logger.Warn("callback attempt failed",
			zap.String("session_id", report.SessionID),
			zap.Int("attempt", attempt.Number),
			zap.Int("status", status),
			zap.Error(err),
		)
		if status != 0 && !reliability.IsRetryableHTTPStatus(status) {
			break
		}
	}

	path, err := Hold(d.cfg.HoldingDir, report, attempts)
	if err != nil {
		d.logger.Error("holding fallback failed",
			zap.String("session_id", report.SessionID),
			zap.Error(err),
		)
		return Result{Outcome: OutcomeHeld, Attempts: attempts}, err
	}
	d.logger.Warn("callback held for later delivery",
		zap.String("session_id", report.SessionID),
		zap.String("path", path),
	)
	return Result{Outcome: OutcomeHeld, Attempts: attempts, HoldingPath: path}, nil
}

func (d *Dispatcher) post(ctx context.Context, report Report) (int, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	res, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send report: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, fmt.Errorf("callback status %d", res.StatusCode)
	}
	return res.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
