package domain

import (
	"encoding/json"
	"time"
)

// ─── Generation Records ─────────────────────────────────────────────────────

// GenerationStatus is the outcome recorded for an invocation.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// GenerationRecord is a persisted artifact produced by a tool invocation.
// Records are never deduplicated by content: a "save" of the same result
// produces another record. Result may be string-encoded or wrapped one or
// more times in {"result": ...}; decode it with the payload package.
type GenerationRecord struct {
	ID        string           `json:"id"`
	ToolID    ToolID           `json:"tool_id"`
	UserID    string           `json:"user_id,omitempty"`
	Inputs    json.RawMessage  `json:"inputs,omitempty"`
	Result    json.RawMessage  `json:"result,omitempty"`
	Status    GenerationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// ─── Profile & Activity ─────────────────────────────────────────────────────

// Profile is the user profile record held by the data store.
type Profile struct {
	UserID      string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	FullName    string    `json:"full_name,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is one row of the user's activity log.
type Activity struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	Action      string    `json:"action"`
	ToolID      ToolID    `json:"tool_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity actions written by this layer.
const (
	ActionGeneration = "generation"
	ActionSave       = "save"
	ActionCalendar   = "calendar_update"
)
