// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/court-assistant-go/internal/domain"
)

// AgentCaller invokes a remote conversational agent.
type AgentCaller interface {
	Call(ctx context.Context, agent string, messages []string) (string, error)
	CallDetailed(ctx context.Context, agent string, messages []string) (*domain.CallResult, error)
}

// SessionStore keeps the per-case conversation history.
// Implementations must preserve insertion order.
type SessionStore interface {
	Append(caseID string, role domain.Role, text string, isError bool) domain.Message
	History(caseID string) []domain.Message
	Reset(caseID string)
	Active() string
	SetActive(caseID string)
}

// StatusSource exposes the last connectivity check.
type StatusSource interface {
	Status() *domain.StatusRecord
}
