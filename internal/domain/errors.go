package domain

import "fmt"

// PlanningError reports that decomposition or classification failed.
// The planner recovers from it locally.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string { return fmt.Sprintf("planning failed: %v", e.Err) }
func (e *PlanningError) Unwrap() error { return e.Err }

// SearchError reports that one sub-query's research call failed.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}
func (e *SearchError) Unwrap() error { return e.Err }

// RetrievalError reports a failed local knowledge lookup.
type RetrievalError struct {
	Kind KnowledgeKind
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.Kind, e.Err)
}
func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError reports a failed synthesis pass. It is the only component
// error that propagates to the orchestrator.
type GenerationError struct {
	Pass string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s pass failed: %v", e.Pass, e.Err)
}
func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError reports a failed profile load or save.
type PersistenceError struct {
	Op     string
	UserID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s profile %s: %v", e.Op, e.UserID, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }
