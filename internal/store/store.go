// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

// Repository defines the interface for persisting profiles, knowledge and chat data.
type Repository interface {
	// GetProfile retrieves a user profile. It returns nil, nil when none exists.
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// UpsertProfile creates or replaces a user profile.
	UpsertProfile(ctx context.Context, profile *domain.UserProfile) error

	// QueryKnowledge runs a full-text search over one content class.
	// An empty Text lists items of the class, optionally filtered by category.
	QueryKnowledge(ctx context.Context, q domain.KnowledgeQuery) ([]domain.KnowledgeItem, error)

	// UpsertKnowledge inserts or replaces knowledge items by ID.
	UpsertKnowledge(ctx context.Context, items ...domain.KnowledgeItem) error

	// CountKnowledge returns the number of stored items of a content class.
	CountKnowledge(ctx context.Context, kind domain.KnowledgeKind) (int, error)

	// AppendChat records one request/response exchange.
	AppendChat(ctx context.Context, record *domain.ChatRecord) error

	// ListChatHistory returns the most recent exchanges for a user, newest first.
	ListChatHistory(ctx context.Context, userID string, limit int) ([]*domain.ChatRecord, error)

	// CleanupChatHistory removes exchanges older than retention.
	CleanupChatHistory(ctx context.Context, retention time.Duration) (int64, error)

	// InsertFeedback stores a user rating.
	InsertFeedback(ctx context.Context, feedback *domain.Feedback) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
