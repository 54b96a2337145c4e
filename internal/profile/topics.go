package profile

import (
	"slices"
	"strings"
)

// TopicExtractor scans free text for a configured vocabulary of topic
// keywords. Matching is case-insensitive substring containment.
type TopicExtractor struct {
	vocabulary []string
}

// NewTopicExtractor normalizes vocabulary to a sorted, de-duplicated,
// lowercase keyword set. Blank entries are ignored.
func NewTopicExtractor(vocabulary []string) *TopicExtractor {
	words := make([]string, 0, len(vocabulary))
	for _, w := range vocabulary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	slices.Sort(words)
	return &TopicExtractor{vocabulary: slices.Compact(words)}
}

// Extract returns the vocabulary keywords found in any of texts.
func (e *TopicExtractor) Extract(texts ...string) []string {
	combined := strings.ToLower(strings.Join(texts, " "))
	var found []string
	for _, w := range e.vocabulary {
		if strings.Contains(combined, w) {
			found = append(found, w)
		}
	}
	return found
}

// Vocabulary returns a copy of the keyword set.
func (e *TopicExtractor) Vocabulary() []string {
	return slices.Clone(e.vocabulary)
}
