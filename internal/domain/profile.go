package domain

import (
	"slices"
	"time"
)

// DefaultLanguage is the preference assigned to freshly created profiles.
const DefaultLanguage = "en"

// UserProfile is the durable, per-user accumulation of topics and preferences.
type UserProfile struct {
	UserID          string            `json:"user_id"`
	Summary         string            `json:"summary"`
	KeyTopics       []string          `json:"key_topics"`
	HealthConcerns  []string          `json:"health_concerns"`
	Preferences     map[string]string `json:"preferences"`
	CreatedAt       time.Time         `json:"created_at"`
	LastInteraction time.Time         `json:"last_interaction"`
}

// NewDefaultProfile returns a profile with empty defaults for userID.
func NewDefaultProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:          userID,
		KeyTopics:       []string{},
		HealthConcerns:  []string{},
		Preferences:     map[string]string{"language": DefaultLanguage},
		CreatedAt:       now,
		LastInteraction: now,
	}
}

// HasTopics reports whether any topic tags have been accumulated.
func (p *UserProfile) HasTopics() bool {
	return p != nil && len(p.KeyTopics) > 0
}

// HasSummary reports whether the profile carries a non-empty summary.
func (p *UserProfile) HasSummary() bool {
	return p != nil && p.Summary != ""
}

// MergeTopics unions topics into the profile's topic set. Existing tags are
// never removed and duplicates are ignored. The result is kept sorted so the
// stored representation is stable across updates.
func (p *UserProfile) MergeTopics(topics []string) {
	if len(topics) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(p.KeyTopics)+len(topics))
	merged := make([]string, 0, len(p.KeyTopics)+len(topics))
	for _, t := range p.KeyTopics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	slices.Sort(merged)
	p.KeyTopics = merged
}

// Clone returns a deep copy of the profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.KeyTopics = slices.Clone(p.KeyTopics)
	c.HealthConcerns = slices.Clone(p.HealthConcerns)
	if p.Preferences != nil {
		c.Preferences = make(map[string]string, len(p.Preferences))
		for k, v := range p.Preferences {
			c.Preferences[k] = v
		}
	}
	return &c
}
