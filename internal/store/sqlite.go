package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	return newSQLiteStore(dbPath)
}

func newSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the retention worker prune while chat requests write.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		key_topics_json TEXT NOT NULL DEFAULT '[]',
		health_concerns_json TEXT NOT NULL DEFAULT '[]',
		preferences_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		last_interaction INTEGER NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS knowledge USING fts5(
		item_id UNINDEXED,
		kind UNINDEXED,
		name,
		body,
		category UNINDEXED,
		price UNINDEXED,
		tokenize = 'porter unicode61'
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_history_user ON chat_history(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_chat_history_created ON chat_history(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetProfile retrieves a user profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, summary, key_topics_json, health_concerns_json,
		       preferences_json, created_at, last_interaction
		FROM user_profiles WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var profile domain.UserProfile
	var topicsJSON, concernsJSON, prefsJSON string
	var createdAt, lastInteraction int64

	err := row.Scan(
		&profile.UserID, &profile.Summary, &topicsJSON, &concernsJSON,
		&prefsJSON, &createdAt, &lastInteraction,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	if err := json.Unmarshal([]byte(topicsJSON), &profile.KeyTopics); err != nil {
		return nil, fmt.Errorf("decode key topics: %w", err)
	}
	if err := json.Unmarshal([]byte(concernsJSON), &profile.HealthConcerns); err != nil {
		return nil, fmt.Errorf("decode health concerns: %w", err)
	}
	if err := json.Unmarshal([]byte(prefsJSON), &profile.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if profile.KeyTopics == nil {
		profile.KeyTopics = []string{}
	}
	if profile.HealthConcerns == nil {
		profile.HealthConcerns = []string{}
	}

	profile.CreatedAt = time.Unix(createdAt, 0)
	profile.LastInteraction = time.Unix(lastInteraction, 0)

	return &profile, nil
}

// UpsertProfile creates or replaces a user profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return fmt.Errorf("upsert profile: user id is required")
	}

	topicsJSON, err := marshalList(profile.KeyTopics)
	if err != nil {
		return fmt.Errorf("encode key topics: %w", err)
	}
	concernsJSON, err := marshalList(profile.HealthConcerns)
	if err != nil {
		return fmt.Errorf("encode health concerns: %w", err)
	}
	prefs := profile.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	query := `
	INSERT INTO user_profiles (
		user_id, summary, key_topics_json, health_concerns_json,
		preferences_json, created_at, last_interaction
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		summary = excluded.summary,
		key_topics_json = excluded.key_topics_json,
		health_concerns_json = excluded.health_concerns_json,
		preferences_json = excluded.preferences_json,
		last_interaction = excluded.last_interaction`

	return shared.RetryOnConflict(ctx, s.retry, "upsert_profile", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			profile.UserID, profile.Summary, topicsJSON, concernsJSON, string(prefsJSON),
			profile.CreatedAt.Unix(), profile.LastInteraction.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return nil
	})
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// QueryKnowledge runs a bm25-ranked full-text query over one content class.
func (s *SQLiteStore) QueryKnowledge(ctx context.Context, q domain.KnowledgeQuery) ([]domain.KnowledgeItem, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT item_id, kind, name, body, category, price FROM knowledge WHERE kind = ?`)
	args = append(args, string(q.Kind))

	match := matchExpression(q.Text)
	if match != "" {
		query.WriteString(` AND knowledge MATCH ?`)
		args = append(args, match)
	}
	if q.Category != "" {
		query.WriteString(` AND category = ?`)
		args = append(args, q.Category)
	}
	if match != "" {
		query.WriteString(` ORDER BY rank`)
	} else {
		query.WriteString(` ORDER BY item_id`)
	}
	query.WriteString(` LIMIT ?`)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close knowledge rows", "error", closeErr)
		}
	}()

	var items []domain.KnowledgeItem
	for rows.Next() {
		var item domain.KnowledgeItem
		var kind string
		var name, category sql.NullString
		var price sql.NullFloat64
		if err := rows.Scan(&item.ID, &kind, &name, &item.Text, &category, &price); err != nil {
			return nil, fmt.Errorf("scan knowledge row: %w", err)
		}
		item.Kind = domain.KnowledgeKind(kind)
		item.Name = name.String
		item.Category = category.String
		item.Price = price.Float64
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge: %w", err)
	}

	return items, nil
}

// UpsertKnowledge inserts or replaces knowledge items by ID.
func (s *SQLiteStore) UpsertKnowledge(ctx context.Context, items ...domain.KnowledgeItem) error {
	if len(items) == 0 {
		return nil
	}

	return shared.RetryOnConflict(ctx, s.retry, "upsert_knowledge", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin knowledge tx: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back knowledge tx", "error", rbErr)
			}
		}()

		for _, item := range items {
			if item.ID == "" {
				return fmt.Errorf("upsert knowledge: item id is required")
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge WHERE item_id = ?`, item.ID); err != nil {
				return fmt.Errorf("replace knowledge %s: %w", item.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO knowledge (item_id, kind, name, body, category, price) VALUES (?, ?, ?, ?, ?, ?)`,
				item.ID, string(item.Kind), item.Name, item.Text, item.Category, item.Price,
			); err != nil {
				return fmt.Errorf("insert knowledge %s: %w", item.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit knowledge tx: %w", err)
		}
		return nil
	})
}

// CountKnowledge returns the number of stored items of a content class.
func (s *SQLiteStore) CountKnowledge(ctx context.Context, kind domain.KnowledgeKind) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge WHERE kind = ?`, string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count knowledge: %w", err)
	}
	return n, nil
}

// AppendChat records one request/response exchange.
func (s *SQLiteStore) AppendChat(ctx context.Context, record *domain.ChatRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	return shared.RetryOnConflict(ctx, s.retry, "append_chat", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO chat_history (user_id, channel, message, response, created_at) VALUES (?, ?, ?, ?, ?)`,
			record.UserID, record.Channel, record.Message, record.Response, record.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("append chat: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("chat history id: %w", err)
		}
		record.ID = id
		return nil
	})
}

// ListChatHistory returns the most recent exchanges for a user, newest first.
func (s *SQLiteStore) ListChatHistory(ctx context.Context, userID string, limit int) ([]*domain.ChatRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, channel, message, response, created_at
		FROM chat_history WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat history rows", "error", closeErr)
		}
	}()

	var records []*domain.ChatRecord
	for rows.Next() {
		var rec domain.ChatRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Channel, &rec.Message, &rec.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat history row: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}

	return records, nil
}

// CleanupChatHistory removes exchanges older than retention.
func (s *SQLiteStore) CleanupChatHistory(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()

	var deleted int64
	err := shared.RetryOnConflict(ctx, s.retry, "cleanup_chat_history", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("cleanup chat history: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// InsertFeedback stores a user rating.
func (s *SQLiteStore) InsertFeedback(ctx context.Context, feedback *domain.Feedback) error {
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}

	return shared.RetryOnConflict(ctx, s.retry, "insert_feedback", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO feedback (id, user_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
			feedback.ID, feedback.UserID, feedback.Rating, feedback.Comment, feedback.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		return nil
	})
}
