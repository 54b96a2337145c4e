// Package research runs decomposed sub-queries against an external research
// provider concurrently and gathers every outcome, failures included.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/healthchat/internal/domain"
)

// ErrorMarkerPrefix starts the summary stored for a failed sub-query.
const ErrorMarkerPrefix = "Error retrieving research: "

// Searcher answers one research question.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// FanOut issues sub-queries in parallel and waits for all of them to settle.
type FanOut struct {
	searcher Searcher
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFanOut creates a fan-out over searcher. Each call is bounded by timeout.
func NewFanOut(searcher Searcher, timeout time.Duration, logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{searcher: searcher, timeout: timeout, logger: logger}
}

// Research returns one finding per distinct sub-query, in issue order. A
// failed lookup is recorded as an error-marker finding and never affects the
// others. Research returns only after every call has completed or failed.
func (f *FanOut) Research(ctx context.Context, subQueries []string) domain.ResearchBundle {
	queries := distinct(subQueries)
	if len(queries) == 0 {
		return domain.NewResearchBundle()
	}

	start := time.Now()
	findings := make([]domain.ResearchFinding, len(queries))

	// Plain Group: one failure must not cancel its siblings.
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			findings[i] = f.lookup(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	bundle := domain.NewResearchBundle(findings...)
	f.logger.Info("research fan-out completed",
		"sub_queries", bundle.Len(),
		"failed", bundle.Failures(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return bundle
}

func (f *FanOut) lookup(ctx context.Context, query string) (finding domain.ResearchFinding) {
	defer func() {
		if r := recover(); r != nil {
			finding = f.failed(query, fmt.Errorf("panic: %v", r))
		}
	}()

	if f.searcher == nil {
		return f.failed(query, errors.New("research provider not configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	summary, err := f.searcher.Search(callCtx, query)
	if err != nil {
		return f.failed(query, err)
	}
	return domain.ResearchFinding{Query: query, Summary: summary}
}

func (f *FanOut) failed(query string, err error) domain.ResearchFinding {
	serr := &domain.SearchError{Query: query, Err: err}
	f.logger.Warn("research lookup failed", "sub_query", query, "error", serr)
	return domain.ResearchFinding{
		Query:   query,
		Summary: ErrorMarkerPrefix + err.Error(),
		Failed:  true,
	}
}

func distinct(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
