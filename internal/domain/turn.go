// Package domain contains core domain types for the health conversation service.
package domain

import (
	"time"
)

// Role tags who authored a turn.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the pipeline.
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation session.
// Turns are immutable once created.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the given time.
func NewTurn(role Role, content string, at time.Time) Turn {
	return Turn{Role: role, Content: content, Timestamp: at}
}
