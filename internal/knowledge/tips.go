package knowledge

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

const tipCandidates = 5

// safeTip is served when both storage and the fallback set are unusable.
var safeTip = domain.KnowledgeItem{
	ID:       "default",
	Kind:     domain.KindHealthTip,
	Text:     "Remember to maintain a healthy lifestyle!",
	Category: "general",
}

// Tip is a single health tip with products from the same category.
type Tip struct {
	Text            string                 `json:"tip"`
	Category        string                 `json:"category"`
	RelatedProducts []domain.KnowledgeItem `json:"related_products"`
}

// TipService picks random tips from the knowledge base.
type TipService struct {
	source   Source
	fallback []domain.KnowledgeItem
	timeout  time.Duration
	logger   *slog.Logger
	pick     func(n int) int
}

// NewTipService creates a tip service. fallback tips are used when storage
// holds no matching tip.
func NewTipService(source Source, fallback []domain.KnowledgeItem, timeout time.Duration, logger *slog.Logger) *TipService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TipService{
		source:   source,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
		pick:     rand.IntN,
	}
}

// RandomTip returns a random stored tip, optionally restricted to category.
func (s *TipService) RandomTip(ctx context.Context, category string) Tip {
	tips, err := s.lookup(ctx, domain.KnowledgeQuery{Kind: domain.KindHealthTip, Category: category, Limit: tipCandidates})
	if err != nil {
		s.logger.Warn("tip lookup failed, using default", "category", category, "error", err)
		return Tip{Text: safeTip.Text, Category: safeTip.Category, RelatedProducts: []domain.KnowledgeItem{}}
	}

	if len(tips) == 0 {
		tip := safeTip
		if len(s.fallback) > 0 {
			tip = s.fallback[s.pick(len(s.fallback))]
		}
		return Tip{Text: tip.Text, Category: tip.Category, RelatedProducts: []domain.KnowledgeItem{}}
	}

	tip := tips[s.pick(len(tips))]
	return Tip{
		Text:            tip.Text,
		Category:        tip.Category,
		RelatedProducts: s.relatedProducts(ctx, tip.Category),
	}
}

func (s *TipService) relatedProducts(ctx context.Context, category string) []domain.KnowledgeItem {
	products, err := s.lookup(ctx, domain.KnowledgeQuery{Kind: domain.KindProduct, Category: category, Limit: DefaultLimit})
	if err != nil {
		s.logger.Warn("related product lookup failed", "category", category, "error", err)
		return []domain.KnowledgeItem{}
	}
	if products == nil {
		products = []domain.KnowledgeItem{}
	}
	return products
}

func (s *TipService) lookup(ctx context.Context, q domain.KnowledgeQuery) ([]domain.KnowledgeItem, error) {
	if s.source == nil {
		return nil, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.source.QueryKnowledge(callCtx, q)
	if err != nil {
		return nil, &domain.RetrievalError{Kind: q.Kind, Err: err}
	}
	return items, nil
}
