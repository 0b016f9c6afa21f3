package domain

import (
	"time"
)

// VerificationRecord is one persisted verification outcome.
type VerificationRecord struct {
	ID         string    `json:"id"`
	Identity   string    `json:"identity"`
	Channel    Channel   `json:"channel"`
	Query      string    `json:"query"`
	Status     Status    `json:"status"`
	Verdict    Verdict   `json:"verdict"`
	Confidence float64   `json:"confidence"`
	Diagnostic string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	Identity string
	Limit    int
}

// VerificationSummary aggregates the history table for the analytics view.
type VerificationSummary struct {
	Total      int64            `json:"total_verifications"`
	Verified   int64            `json:"verified"`
	Unverified int64            `json:"unverified"`
	Errors     int64            `json:"errors"`
	Accuracy   float64          `json:"accuracy"`
	ByChannel  map[string]int64 `json:"by_channel"`
}
