// Package audit provides a local, graph-independent trail of manual review
// decisions, so an entity's merge/reject history survives even when the
// graph store issuing it is unreachable at read time.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ReviewOverrideEvent records a human reviewer's decision on a ReviewItem,
// logged in addition to (not instead of) the graph-resident review record.
type ReviewOverrideEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Reviewer    string    `json:"reviewer"`
	EntityID    string    `json:"entity_id"`
	CandidateID string    `json:"candidate_id,omitempty"`
	Decision    string    `json:"decision"` // APPROVED or REJECTED
	PriorScore  float64   `json:"prior_score"`
	Reasoning   string    `json:"reasoning,omitempty"`
}

// LogOverride appends a review decision to a JSONL trail at
// <dir>/review_overrides.jsonl, creating the directory if needed. Call
// sites should treat a logging failure as non-fatal to the review flow
// itself; the graph-resident ReviewItem remains the source of truth.
func LogOverride(dir string, event ReviewOverrideEvent) error {
	if dir == "" {
		dir = ".entityresolver"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	logPath := filepath.Join(dir, "review_overrides.jsonl")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(event)
}
