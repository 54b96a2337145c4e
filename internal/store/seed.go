package store

import (
	"context"
	"fmt"

	"github.com/ashureev/healthchat/internal/domain"
)

// DefaultHealthTips are loaded into an empty knowledge base.
var DefaultHealthTips = []domain.KnowledgeItem{
	{ID: "tip1", Kind: domain.KindHealthTip, Text: "Aim for 7-9 hours of sleep each night for optimal health.", Category: "sleep"},
	{ID: "tip2", Kind: domain.KindHealthTip, Text: "Stay hydrated by drinking at least 8 glasses of water daily.", Category: "general"},
	{ID: "tip3", Kind: domain.KindHealthTip, Text: "Regular exercise can improve both physical and mental health.", Category: "lifestyle"},
}

// DefaultProducts are loaded into an empty knowledge base.
var DefaultProducts = []domain.KnowledgeItem{
	{
		ID:       "prod1",
		Kind:     domain.KindProduct,
		Name:     "Sleep Support Supplement",
		Text:     "Natural supplement with Melatonin and Magnesium for better sleep.",
		Category: "sleep",
		Price:    29.99,
	},
	{
		ID:       "prod2",
		Kind:     domain.KindProduct,
		Name:     "Stress Relief Tea",
		Text:     "Herbal tea blend for relaxation and better sleep.",
		Category: "general",
		Price:    15.99,
	},
	{
		ID:       "prod3",
		Kind:     domain.KindProduct,
		Name:     "Multivitamin Complex",
		Text:     "Complete daily vitamin and mineral supplement.",
		Category: "general",
		Price:    24.99,
	},
}

// SeedKnowledge loads the default tips and products into any content class
// that is still empty. It returns the number of items inserted.
func SeedKnowledge(ctx context.Context, repo Repository) (int, error) {
	inserted := 0
	for kind, items := range map[domain.KnowledgeKind][]domain.KnowledgeItem{
		domain.KindHealthTip: DefaultHealthTips,
		domain.KindProduct:   DefaultProducts,
	} {
		n, err := repo.CountKnowledge(ctx, kind)
		if err != nil {
			return inserted, fmt.Errorf("count %s: %w", kind, err)
		}
		if n > 0 {
			continue
		}
		if err := repo.UpsertKnowledge(ctx, items...); err != nil {
			return inserted, fmt.Errorf("seed %s: %w", kind, err)
		}
		inserted += len(items)
	}
	return inserted, nil
}
