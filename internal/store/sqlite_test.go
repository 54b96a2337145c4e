package store

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := newSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("newSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetProfile(ctx, "missing")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got != nil {
		t.Fatalf("Expected nil profile for unknown user, got %+v", got)
	}

	now := time.Now()
	profile := domain.NewDefaultProfile("whatsapp:+1555", now)
	profile.Summary = "User asked about: sleep..."
	profile.MergeTopics([]string{"sleep", "stress"})

	if err := s.UpsertProfile(ctx, profile); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	got, err = s.GetProfile(ctx, "whatsapp:+1555")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected stored profile")
	}
	if got.Summary != profile.Summary {
		t.Errorf("Expected summary %q, got %q", profile.Summary, got.Summary)
	}
	if !slices.Equal(got.KeyTopics, []string{"sleep", "stress"}) {
		t.Errorf("Unexpected topics: %v", got.KeyTopics)
	}
	if got.Preferences["language"] != domain.DefaultLanguage {
		t.Errorf("Expected language preference %q, got %v", domain.DefaultLanguage, got.Preferences)
	}
	if got.CreatedAt.Unix() != now.Unix() {
		t.Errorf("Expected created_at %d, got %d", now.Unix(), got.CreatedAt.Unix())
	}
	if got.HealthConcerns == nil {
		t.Error("Expected non-nil health concerns")
	}
}

func TestUpsertProfileRequiresUserID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.UpsertProfile(context.Background(), &domain.UserProfile{}); err == nil {
		t.Fatal("Expected error for empty user id")
	}
}

func TestSeedAndQueryKnowledge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	n, err := SeedKnowledge(ctx, s)
	if err != nil {
		t.Fatalf("SeedKnowledge failed: %v", err)
	}
	if want := len(DefaultHealthTips) + len(DefaultProducts); n != want {
		t.Errorf("Expected %d seeded items, got %d", want, n)
	}

	again, err := SeedKnowledge(ctx, s)
	if err != nil {
		t.Fatalf("second SeedKnowledge failed: %v", err)
	}
	if again != 0 {
		t.Errorf("Expected seeding to be skipped, inserted %d", again)
	}

	tips, err := s.QueryKnowledge(ctx, domain.KnowledgeQuery{Kind: domain.KindHealthTip, Text: "How can I sleep better?", Limit: 5})
	if err != nil {
		t.Fatalf("QueryKnowledge failed: %v", err)
	}
	if len(tips) != 1 || tips[0].ID != "tip1" {
		t.Fatalf("Expected the sleep tip, got %+v", tips)
	}

	products, err := s.QueryKnowledge(ctx, domain.KnowledgeQuery{Kind: domain.KindProduct, Text: "sleep", Limit: 5})
	if err != nil {
		t.Fatalf("QueryKnowledge failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("Expected 2 sleep products, got %+v", products)
	}
	for _, p := range products {
		if p.Name == "" || p.Price == 0 {
			t.Errorf("Expected product metadata, got %+v", p)
		}
	}

	none, err := s.QueryKnowledge(ctx, domain.KnowledgeQuery{Kind: domain.KindProduct, Text: "quantum chromodynamics", Limit: 5})
	if err != nil {
		t.Fatalf("QueryKnowledge failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no matches, got %+v", none)
	}

	general, err := s.QueryKnowledge(ctx, domain.KnowledgeQuery{Kind: domain.KindProduct, Category: "general", Limit: 5})
	if err != nil {
		t.Fatalf("QueryKnowledge failed: %v", err)
	}
	if len(general) != 2 {
		t.Errorf("Expected 2 general products, got %+v", general)
	}
}

func TestUpsertKnowledgeReplacesByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	item := domain.KnowledgeItem{ID: "tip9", Kind: domain.KindHealthTip, Text: "Walk daily.", Category: "lifestyle"}
	if err := s.UpsertKnowledge(ctx, item); err != nil {
		t.Fatalf("UpsertKnowledge failed: %v", err)
	}
	item.Text = "Walk briskly every day."
	if err := s.UpsertKnowledge(ctx, item); err != nil {
		t.Fatalf("UpsertKnowledge failed: %v", err)
	}

	n, err := s.CountKnowledge(ctx, domain.KindHealthTip)
	if err != nil {
		t.Fatalf("CountKnowledge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 tip after replace, got %d", n)
	}
}

func TestChatHistoryAppendListCleanup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	old := &domain.ChatRecord{UserID: "u1", Channel: "chat_http", Message: "old", Response: "r", CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := &domain.ChatRecord{UserID: "u1", Channel: "chat_http", Message: "new", Response: "r"}
	other := &domain.ChatRecord{UserID: "u2", Channel: "chat_http", Message: "x", Response: "r"}
	for _, rec := range []*domain.ChatRecord{old, recent, other} {
		if err := s.AppendChat(ctx, rec); err != nil {
			t.Fatalf("AppendChat failed: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected AppendChat to assign an id")
		}
	}

	records, err := s.ListChatHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListChatHistory failed: %v", err)
	}
	if len(records) != 2 || records[0].Message != "new" {
		t.Fatalf("Expected newest-first history for u1, got %+v", records)
	}

	deleted, err := s.CleanupChatHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupChatHistory failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 expired row, got %d", deleted)
	}
}

func TestInsertFeedback(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	fb := &domain.Feedback{ID: "fb-1", UserID: "u1", Rating: 5, Comment: "helpful"}
	if err := s.InsertFeedback(context.Background(), fb); err != nil {
		t.Fatalf("InsertFeedback failed: %v", err)
	}
	if fb.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be stamped")
	}
	if err := s.InsertFeedback(context.Background(), fb); err == nil {
		t.Error("Expected duplicate feedback id to fail")
	}
}

func TestMatchExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Is it ok?", ""},
		{"Is melatonin safe for long-term use?", `"melatonin" OR "safe" OR "long" OR "term"`},
		{"sleep SLEEP stress", `"sleep" OR "stress"`},
	}
	for _, tt := range tests {
		if got := matchExpression(tt.in); got != tt.want {
			t.Errorf("matchExpression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
