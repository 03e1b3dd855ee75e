// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Conversation operations
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	FinishConversation(ctx context.Context, conversationID string, endedAt time.Time) error
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	CountUserConversationsSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Utterance operations
	CreateUtterance(ctx context.Context, utt *domain.Utterance) error
	GetUtterances(ctx context.Context, conversationID string) ([]domain.Utterance, error)

	// Summary lifecycle. Both updates are conditional on the record still
	// being PENDING and report whether the transition committed.
	ListStalePendingSummaries(ctx context.Context, olderThan time.Time, limit int) ([]domain.Conversation, error)
	CompleteSummaryIfPending(ctx context.Context, conversationID string, summary string, highlights []byte) (bool, error)
	FailSummaryIfPending(ctx context.Context, conversationID string, reason string) (bool, error)

	// Lifecycle
	Close() error
}
