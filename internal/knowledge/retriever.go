// Package knowledge turns the local knowledge base (health tips and
// products) into prompt context and serves standalone tips.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

// DefaultLimit caps the items retrieved per content class.
const DefaultLimit = 5

// Source queries stored knowledge items.
type Source interface {
	QueryKnowledge(ctx context.Context, q domain.KnowledgeQuery) ([]domain.KnowledgeItem, error)
}

// Retriever builds the local-knowledge context block for one utterance.
type Retriever struct {
	source  Source
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// NewRetriever creates a retriever returning at most limit items per class.
func NewRetriever(source Source, limit int, timeout time.Duration, logger *slog.Logger) *Retriever {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{source: source, limit: limit, timeout: timeout, logger: logger}
}

// Retrieve looks up tips and products relevant to query and formats them,
// followed by the profile summary when one exists. A profile's topics expand
// the search text. Any lookup failure yields an empty context.
func (r *Retriever) Retrieve(ctx context.Context, query string, profile *domain.UserProfile) domain.RetrievalContext {
	text := ExpandQuery(query, profile)

	tips, err := r.query(ctx, domain.KindHealthTip, text)
	if err != nil {
		r.logger.Warn("knowledge retrieval failed", "error", err)
		return ""
	}
	products, err := r.query(ctx, domain.KindProduct, text)
	if err != nil {
		r.logger.Warn("knowledge retrieval failed", "error", err)
		return ""
	}

	var sections []string
	if len(tips) > 0 {
		lines := make([]string, 0, len(tips))
		for _, tip := range tips {
			lines = append(lines, "Health Tip: "+tip.Text)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(products) > 0 {
		lines := make([]string, 0, len(products))
		for _, p := range products {
			lines = append(lines, fmt.Sprintf("Product: %s - %s", p.DisplayName(), p.Text))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if profile.HasSummary() {
		sections = append(sections, "User History: "+profile.Summary)
	}

	r.logger.Debug("knowledge retrieved", "tips", len(tips), "products", len(products))
	return domain.RetrievalContext(strings.Join(sections, "\n\n"))
}

func (r *Retriever) query(ctx context.Context, kind domain.KnowledgeKind, text string) ([]domain.KnowledgeItem, error) {
	if r.source == nil {
		return nil, &domain.RetrievalError{Kind: kind, Err: fmt.Errorf("no knowledge source configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	items, err := r.source.QueryKnowledge(callCtx, domain.KnowledgeQuery{Kind: kind, Text: text, Limit: r.limit})
	if err != nil {
		return nil, &domain.RetrievalError{Kind: kind, Err: err}
	}
	if len(items) > r.limit {
		items = items[:r.limit]
	}
	return items, nil
}

// ExpandQuery appends the profile's topic tags to query, space separated.
func ExpandQuery(query string, profile *domain.UserProfile) string {
	if !profile.HasTopics() {
		return query
	}
	return query + " " + strings.Join(profile.KeyTopics, " ")
}
