package agent

import (
	"context"

	"github.com/ashureev/truthguard/internal/domain"
)

// Provisioner creates upstream sessions.
type Provisioner interface {
	// CreateSession always creates a new session for identity.
	CreateSession(ctx context.Context, identity string) (domain.Session, error)
}

// Invoker runs one conversational turn against an established session.
type Invoker interface {
	// Run returns the agent's final utterance for text.
	Run(ctx context.Context, session domain.Session, identity, text string) (string, error)
}

// Ensure Client implements both halves of the upstream protocol.
var (
	_ Provisioner = (*Client)(nil)
	_ Invoker     = (*Client)(nil)
)
