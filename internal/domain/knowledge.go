package domain

import "time"

// KnowledgeKind identifies a content class in the local knowledge base.
type KnowledgeKind string

const (
	// KindHealthTip is a short advisory snippet.
	KindHealthTip KnowledgeKind = "health_tip"
	// KindProduct is a product or offer with a name and description.
	KindProduct KnowledgeKind = "product"
)

// KnowledgeItem is one retrieved document plus its metadata.
type KnowledgeItem struct {
	ID       string        `json:"id"`
	Kind     KnowledgeKind `json:"kind"`
	Name     string        `json:"name,omitempty"`
	Text     string        `json:"text"`
	Category string        `json:"category"`
	Price    float64       `json:"price,omitempty"`
}

// DisplayName returns the item name, or "Unknown" when none was stored.
func (k KnowledgeItem) DisplayName() string {
	if k.Name == "" {
		return "Unknown"
	}
	return k.Name
}

// KnowledgeQuery selects items by content class, free text and optional category.
type KnowledgeQuery struct {
	Kind     KnowledgeKind
	Text     string
	Category string
	Limit    int
}

// ChatRecord is one persisted request/response exchange.
type ChatRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback is a user rating of the service.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
