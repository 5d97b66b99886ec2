package model

import "time"

// Contact is one extracted person record. Confidence is assigned by the agent
// that produced the record and drives duplicate resolution: when two records
// share an identity the higher-confidence one survives.
type Contact struct {
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Position    string    `json:"position,omitempty"`
	Location    string    `json:"location,omitempty"`
	ProfileURL  string    `json:"profile_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	Source      string    `json:"source"`                // e.g. "LinkedIn", "Directory:yellowpages"
	ExtractedAt time.Time `json:"extracted_at"`
	Confidence  float64   `json:"confidence"`            // 0..1
	Verified    bool      `json:"verified"`              // set by validation
}

// HasContactInfo reports whether the record carries at least one direct
// channel (email or phone).
func (c Contact) HasContactInfo() bool {
	return c.Email != "" || c.Phone != ""
}
