package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

type fakeSource struct {
	mu      sync.Mutex
	items   map[domain.KnowledgeKind][]domain.KnowledgeItem
	errKind domain.KnowledgeKind
	queries []domain.KnowledgeQuery
}

func (f *fakeSource) QueryKnowledge(_ context.Context, q domain.KnowledgeQuery) ([]domain.KnowledgeItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if q.Kind == f.errKind {
		return nil, errors.New("database is locked")
	}
	var out []domain.KnowledgeItem
	for _, item := range f.items[q.Kind] {
		if q.Category != "" && item.Category != q.Category {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func TestRetrieveEmptyWithoutMatchesOrProfile(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	r := NewRetriever(src, 5, time.Second, nil)

	got := r.Retrieve(context.Background(), "anything", nil)
	if got != "" {
		t.Errorf("Expected empty context, got %q", got)
	}
}

func TestRetrieveExpandsQueryWithTopics(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	r := NewRetriever(src, 5, time.Second, nil)
	profile := domain.NewDefaultProfile("u1", time.Now())
	profile.KeyTopics = []string{"sleep", "stress"}

	r.Retrieve(context.Background(), "How do I relax?", profile)

	if len(src.queries) != 2 {
		t.Fatalf("Expected tip and product queries, got %d", len(src.queries))
	}
	for _, q := range src.queries {
		if q.Text != "How do I relax? sleep stress" {
			t.Errorf("Expected expanded query, got %q", q.Text)
		}
		if q.Limit != 5 || q.Category != "" {
			t.Errorf("Unexpected query %+v", q)
		}
	}
	if src.queries[0].Kind != domain.KindHealthTip || src.queries[1].Kind != domain.KindProduct {
		t.Errorf("Expected tips then products, got %v then %v", src.queries[0].Kind, src.queries[1].Kind)
	}
}

func TestRetrieveFormatsSections(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: map[domain.KnowledgeKind][]domain.KnowledgeItem{
		domain.KindHealthTip: {
			{Text: "Aim for 7-9 hours of sleep."},
			{Text: "Keep a regular schedule."},
		},
		domain.KindProduct: {
			{Name: "Sleep Support Supplement", Text: "Melatonin and magnesium."},
			{Text: "Mystery blend."},
		},
	}}
	r := NewRetriever(src, 5, time.Second, nil)
	profile := domain.NewDefaultProfile("u1", time.Now())
	profile.Summary = "User asked about: sleep..."

	got := r.Retrieve(context.Background(), "sleep", profile)

	want := "Health Tip: Aim for 7-9 hours of sleep.\nHealth Tip: Keep a regular schedule.\n\n" +
		"Product: Sleep Support Supplement - Melatonin and magnesium.\nProduct: Unknown - Mystery blend.\n\n" +
		"User History: User asked about: sleep..."
	if got.String() != want {
		t.Errorf("Unexpected context:\n got: %q\nwant: %q", got, want)
	}
}

func TestRetrieveOmitsAbsentSections(t *testing.T) {
	t.Parallel()
	src := &fakeSource{items: map[domain.KnowledgeKind][]domain.KnowledgeItem{
		domain.KindHealthTip: {{Text: "Aim for 7-9 hours of sleep."}},
	}}
	r := NewRetriever(src, 5, time.Second, nil)

	got := r.Retrieve(context.Background(), "sleep", domain.NewDefaultProfile("u1", time.Now()))
	if got.String() != "Health Tip: Aim for 7-9 hours of sleep." {
		t.Errorf("Expected only the tip section, got %q", got)
	}
}

func TestRetrieveCapsItemsPerClass(t *testing.T) {
	t.Parallel()
	var tips []domain.KnowledgeItem
	for i := 0; i < 8; i++ {
		tips = append(tips, domain.KnowledgeItem{Text: "tip"})
	}
	src := &fakeSource{items: map[domain.KnowledgeKind][]domain.KnowledgeItem{domain.KindHealthTip: tips}}
	r := NewRetriever(src, 3, time.Second, nil)

	got := r.Retrieve(context.Background(), "q", nil)
	if want := "Health Tip: tip\nHealth Tip: tip\nHealth Tip: tip"; got.String() != want {
		t.Errorf("Expected 3 tips, got %q", got)
	}
}

func TestRetrieveFailureYieldsEmptyContext(t *testing.T) {
	t.Parallel()
	src := &fakeSource{
		items: map[domain.KnowledgeKind][]domain.KnowledgeItem{
			domain.KindHealthTip: {{Text: "tip"}},
		},
		errKind: domain.KindProduct,
	}
	r := NewRetriever(src, 5, time.Second, nil)
	profile := domain.NewDefaultProfile("u1", time.Now())
	profile.Summary = "summary"

	if got := r.Retrieve(context.Background(), "q", profile); !got.Empty() {
		t.Errorf("Expected empty context on failure, got %q", got)
	}
}

func TestExpandQuery(t *testing.T) {
	t.Parallel()
	if got := ExpandQuery("q", nil); got != "q" {
		t.Errorf("Expected unchanged query, got %q", got)
	}
	p := domain.NewDefaultProfile("u1", time.Now())
	if got := ExpandQuery("q", p); got != "q" {
		t.Errorf("Expected unchanged query for empty topics, got %q", got)
	}
}
