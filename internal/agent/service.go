// Package agent implements the session-affinity client for the remote
// verification agent and the facade the channel adapters call.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/truthguard/internal/domain"
	"golang.org/x/sync/singleflight"
)

// WarmupIdentity is the identity used to wake the upstream at boot.
const WarmupIdentity = "warmup-user"

// Service resolves sessions, runs the agent and classifies its reply.
type Service struct {
	sessions    SessionStore
	provisioner Provisioner
	invoker     Invoker
	creating    singleflight.Group
	logger      *slog.Logger
}

// NewService wires the facade over its collaborators.
func NewService(sessions SessionStore, provisioner Provisioner, invoker Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions:    sessions,
		provisioner: provisioner,
		invoker:     invoker,
		logger:      logger,
	}
}

// NewServiceWithClient is a convenience for the common case where one
// Client provides both provisioning and invocation.
func NewServiceWithClient(sessions SessionStore, client *Client, logger *slog.Logger) *Service {
	return NewService(sessions, client, client, logger)
}

// Verify runs text through the agent on behalf of identity. It never fails:
// every error is folded into a result with status "error".
func (s *Service) Verify(ctx context.Context, identity, text string) (result domain.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = s.fail(identity, newError(KindUnexpected, "unexpected", fmt.Errorf("panic: %v", r)))
		}
	}()

	// Upstream calls run to completion or timeout regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	session, err := s.resolveSession(ctx, identity)
	if err != nil {
		return s.fail(identity, err)
	}

	raw, err := s.invoker.Run(ctx, session, identity, text)
	if err != nil {
		s.forgetRejectedSession(identity, session, err)
		return s.fail(identity, err)
	}

	verdict, confidence := Classify(raw)
	return domain.VerificationResult{
		Status:     domain.StatusOK,
		Verdict:    verdict,
		Confidence: confidence,
		Evidence:   []domain.Evidence{},
		RawText:    raw,
	}
}

// resolveSession returns the cached session or provisions a replacement.
// Concurrent first use of one identity shares a single provisioning call.
func (s *Service) resolveSession(ctx context.Context, identity string) (domain.Session, error) {
	if sess, ok := s.sessions.Get(identity); ok {
		return sess, nil
	}

	v, err, _ := s.creating.Do(identity, func() (any, error) {
		if sess, ok := s.sessions.Get(identity); ok {
			return sess, nil
		}
		sess, err := s.provisioner.CreateSession(ctx, identity)
		if err != nil {
			return nil, err
		}
		s.sessions.Put(identity, sess)
		return sess, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	sess, ok := v.(domain.Session)
	if !ok {
		return domain.Session{}, newError(KindUnexpected, "unexpected", fmt.Errorf("session resolver returned %T", v))
	}
	return sess, nil
}

// forgetRejectedSession drops a cached session the upstream no longer knows
// so the next call provisions a fresh one. The current call is not retried.
// A newer session stored by a concurrent call is left alone.
func (s *Service) forgetRejectedSession(identity string, session domain.Session, err error) {
	var ae *Error
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusNotFound {
		return
	}
	if !s.sessions.DeleteIf(identity, session.Handle) {
		return
	}
	s.logger.Warn("agent rejected session, dropped from cache",
		"identity", identity,
		"session_id", session.Handle,
	)
}

func (s *Service) fail(identity string, err error) domain.VerificationResult {
	detail := DetailOf(err)
	s.logger.Error("verification failed",
		"identity", identity,
		"kind", KindOf(err),
		"detail", truncate(err.Error(), logBodyLimit),
	)
	return domain.ErrorResult(detail)
}

// Warmup provisions a throwaway session so a sleeping upstream starts
// booting before real traffic arrives. Failures are only logged.
func (s *Service) Warmup(ctx context.Context) {
	if _, err := s.provisioner.CreateSession(ctx, WarmupIdentity); err != nil {
		s.logger.Warn("agent warmup failed", "kind", KindOf(err), "error", err)
		return
	}
	s.logger.Info("agent warmup complete")
}
