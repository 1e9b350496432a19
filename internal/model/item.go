package model

import (
	"encoding/json"
	"time"
)

// Source identifies the upstream a raw item was fetched from.
type Source string

const (
	SourceLinkedIn     Source = "linkedin"
	SourceIndeed       Source = "indeed"
	SourcePlatsbanken  Source = "platsbanken"
	SourceGooglePlaces Source = "google_places"
)

// AllSources lists every known source in fetch order.
var AllSources = []Source{SourceLinkedIn, SourceIndeed, SourcePlatsbanken, SourceGooglePlaces}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceLinkedIn, SourceIndeed, SourcePlatsbanken, SourceGooglePlaces:
		return true
	}
	return false
}

// Item is a recruitment signal normalized to the shared shape, regardless of
// which source produced it. Raw holds the original source payload so that
// downstream stages (contact extraction, auditing) can reach fields the
// normalized shape does not carry.
type Item struct {
	Source      Source          `json:"source"`
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Company     string          `json:"company"`
	Location    string          `json:"location,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	JobType     string          `json:"job_type,omitempty"`
	Salary      string          `json:"salary,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Identifier returns the stable identity used for deduplication: the
// source-assigned external ID when present, otherwise the item URL.
func (it Item) Identifier() string {
	if it.ExternalID != "" {
		return it.ExternalID
	}
	return it.URL
}
