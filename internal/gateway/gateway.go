// Package gateway routes normalized verification requests from every channel
// through the agent facade and records what happened.
package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
	"github.com/ashureev/truthguard/internal/feed"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DiagnosticInvalidRequest is reported for requests rejected before the upstream call.
const DiagnosticInvalidRequest = "invalid request"

const recordTimeout = 5 * time.Second

// Verifier produces a verification result for one identity.
type Verifier interface {
	Verify(ctx context.Context, identity, text string) domain.VerificationResult
}

// Recorder persists verification outcomes.
type Recorder interface {
	RecordVerification(ctx context.Context, rec *domain.VerificationRecord) error
}

// Publisher receives a projection of every completed verification.
type Publisher interface {
	Publish(ev feed.Event)
}

// Gateway is the single entry point channel adapters submit requests to.
type Gateway struct {
	verifier  Verifier
	recorder  Recorder
	publisher Publisher
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Gateway. recorder and publisher may be nil.
func New(v Verifier, recorder Recorder, publisher Publisher, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		verifier:  v,
		recorder:  recorder,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates req, verifies it and returns the result. Like the facade
// it never fails; history and feed problems are logged only.
func (g *Gateway) Submit(ctx context.Context, req domain.VerificationRequest) domain.VerificationResult {
	req.Text = strings.TrimSpace(req.Text)
	req.Identity = strings.TrimSpace(req.Identity)

	if err := g.validate.Struct(req); err != nil {
		g.logger.Warn("Rejected verification request",
			"channel", req.Channel,
			"identity", req.Identity,
			"error", err)
		return domain.ErrorResult(DiagnosticInvalidRequest)
	}

	start := g.now()
	result := g.verifier.Verify(ctx, req.Identity, req.Text)
	if len(result.Evidence) > domain.MaxEvidence {
		result.Evidence = result.Evidence[:domain.MaxEvidence]
	}

	rec := &domain.VerificationRecord{
		ID:         uuid.NewString(),
		Identity:   req.Identity,
		Channel:    req.Channel,
		Query:      req.Text,
		Status:     result.Status,
		Verdict:    result.Verdict,
		Confidence: result.Confidence,
		Diagnostic: result.Diagnostic,
		CreatedAt:  g.now(),
	}

	g.logger.Info("Verification completed",
		"id", rec.ID,
		"channel", req.Channel,
		"identity", req.Identity,
		"status", result.Status,
		"verdict", result.Verdict,
		"duration", rec.CreatedAt.Sub(start))

	g.record(ctx, rec)
	if g.publisher != nil {
		g.publisher.Publish(feed.EventFromRecord(rec))
	}
	return result
}

func (g *Gateway) record(ctx context.Context, rec *domain.VerificationRecord) {
	if g.recorder == nil {
		return
	}
	// The reply has already been computed; a client hanging up must not lose the history row.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := g.recorder.RecordVerification(ctx, rec); err != nil {
		g.logger.Error("Failed to record verification", "id", rec.ID, "error", err)
	}
}
