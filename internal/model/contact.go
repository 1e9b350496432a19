package model

import "strings"

// ContactMethod tells how a contact was derived.
type ContactMethod string

const (
	// ContactAIExtracted marks contacts built from an email address the AI
	// model surfaced in the item description.
	ContactAIExtracted ContactMethod = "ai_extracted"
	// ContactAPIExtracted marks contacts taken directly from structured
	// fields in the source's raw payload.
	ContactAPIExtracted ContactMethod = "api_extracted"
)

// Contact is a person or mailbox tied to a persisted record.
type Contact struct {
	Source     Source        `json:"source"`
	Method     ContactMethod `json:"method"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name,omitempty"`
	Email      string        `json:"email,omitempty"`
	ProfileURL string        `json:"profile_url,omitempty"`
	Title      string        `json:"title,omitempty"`
	CompanyID  string        `json:"company_id,omitempty"`
	RecordID   string        `json:"record_id,omitempty"`
}

// FullName joins the name parts, or returns just the first name for
// single-token contacts.
func (c Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Reachable reports whether the contact has at least one usable channel.
// Contacts with neither an email nor a profile URL are dropped before upsert.
func (c Contact) Reachable() bool {
	return c.Email != "" || c.ProfileURL != ""
}
