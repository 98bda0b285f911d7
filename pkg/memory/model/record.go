package model

import (
	"strings"
	"time"
)

// Importance grades how much weight a memory carries during recall.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Valid reports whether the value is one of the three supported grades.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// ParseImportance coerces free-form input, defaulting to medium.
func ParseImportance(s string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceLow:
		return ImportanceLow
	case ImportanceHigh:
		return ImportanceHigh
	default:
		return ImportanceMedium
	}
}

// MemoryRecord is the canonical unit of remembered information, persisted in
// the fast store. The embedding is a distinguished field stored beside the
// metadata document, never inside it.
type MemoryRecord struct {
	ID             int64      `json:"id"`
	Content        string     `json:"content"`
	Category       string     `json:"category"`
	Importance     Importance `json:"importance"`
	Metadata       Document   `json:"metadata,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AccessCount    int64      `json:"access_count"`
	LastAccessedAt time.Time  `json:"last_accessed_at,omitempty"`
	Score          float64    `json:"score,omitempty"`
}
