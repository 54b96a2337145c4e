// Package profile maintains durable per-user profiles on top of a
// persistence collaborator. Persistence failures never escape: callers get a
// fresh default profile instead.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

// Persistence loads and saves profiles. GetProfile returns nil, nil when the
// user has no stored profile.
type Persistence interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.UserProfile) error
}

// Manager implements load-or-create and post-exchange profile updates.
type Manager struct {
	repo    Persistence
	topics  *TopicExtractor
	timeout time.Duration
	logger  *slog.Logger
	locks   *keyedMutex
	now     func() time.Time
}

// NewManager creates a profile manager. Each persistence call is bounded by timeout.
func NewManager(repo Persistence, topics *TopicExtractor, timeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if topics == nil {
		topics = NewTopicExtractor(nil)
	}
	return &Manager{
		repo:    repo,
		topics:  topics,
		timeout: timeout,
		logger:  logger,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Load returns the stored profile for userID, creating and persisting a
// default one on first lookup.
func (m *Manager) Load(ctx context.Context, userID string) *domain.UserProfile {
	unlock := m.locks.Lock(userID)
	defer unlock()

	profile, err := m.loadOrCreate(ctx, userID)
	if err != nil {
		m.logger.Warn("profile load failed, using default", "user_id", userID, "error", err)
		return domain.NewDefaultProfile(userID, m.now())
	}
	return profile
}

// Update records one exchange on the user's profile: it stamps the last
// interaction, replaces the summary when summary is non-empty and unions in
// any vocabulary topics mentioned by either text.
func (m *Manager) Update(ctx context.Context, userID, userText, assistantText, summary string) *domain.UserProfile {
	unlock := m.locks.Lock(userID)
	defer unlock()

	profile, err := m.loadOrCreate(ctx, userID)
	if err != nil {
		m.logger.Warn("profile update failed, using default", "user_id", userID, "error", err)
		return domain.NewDefaultProfile(userID, m.now())
	}

	profile.LastInteraction = m.now()
	if summary != "" {
		profile.Summary = summary
	}
	profile.MergeTopics(m.topics.Extract(userText, assistantText))

	if err := m.save(ctx, profile); err != nil {
		m.logger.Warn("profile update failed, using default", "user_id", userID, "error", err)
		return domain.NewDefaultProfile(userID, m.now())
	}
	return profile
}

func (m *Manager) loadOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if m.repo == nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: errors.New("no persistence configured")}
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.timeout)
	profile, err := m.repo.GetProfile(loadCtx, userID)
	cancel()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", UserID: userID, Err: err}
	}
	if profile != nil {
		return profile, nil
	}

	profile = domain.NewDefaultProfile(userID, m.now())
	if err := m.save(ctx, profile); err != nil {
		return nil, err
	}
	m.logger.Debug("created default profile", "user_id", userID)
	return profile, nil
}

func (m *Manager) save(ctx context.Context, profile *domain.UserProfile) error {
	saveCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.repo.UpsertProfile(saveCtx, profile); err != nil {
		return &domain.PersistenceError{Op: "save", UserID: profile.UserID, Err: err}
	}
	return nil
}
