// Package scrape converts listing-page markup into structured admission
// records. It defines the core AdmissionResult type shared across subsystems.
package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DecisionStatus is the normalized outcome of a posting.
type DecisionStatus string

// Decision status values persisted in the results table.
const (
	StatusAccepted   DecisionStatus = "accepted"
	StatusRejected   DecisionStatus = "rejected"
	StatusWaitListed DecisionStatus = "wait_listed"
	StatusInterview  DecisionStatus = "interview"
	StatusOther      DecisionStatus = "other"
)

// Decision captures the outcome text of a posting plus its effective date.
// Date carries a zero value when the posting named a status without a date.
type Decision struct {
	Status DecisionStatus `json:"status"`
	Date   time.Time      `json:"date,omitempty"`
}

// Term is the application term a posting refers to (e.g. fall 2024).
type Term struct {
	Season string `json:"season"`
	Year   int    `json:"year"`
}

// Tags holds the auxiliary facts extracted from a posting's tag cloud. All
// score fields are optional; Extra preserves unrecognized tag text verbatim
// so nothing is silently discarded.
type Tags struct {
	Term       *Term    `json:"term,omitempty"`
	GPA        *float64 `json:"gpa,omitempty"`
	GREQuant   *int     `json:"gre_quant,omitempty"`
	GREVerbal  *int     `json:"gre_verbal,omitempty"`
	GREWriting *float64 `json:"gre_writing,omitempty"`
	Extra      []string `json:"extra,omitempty"`
}

// AdmissionResult is one admission-outcome posting. Institution and Program
// hold the raw text as scraped; the Std fields are filled in later by the
// standardizer and are the only fields mutated after parse.
type AdmissionResult struct {
	Institution    string     `json:"institution"`
	Program        string     `json:"program"`
	InstitutionStd string     `json:"institution_std,omitempty"`
	ProgramStd     string     `json:"program_std,omitempty"`
	Degree         string     `json:"degree,omitempty"`
	Decision       Decision   `json:"decision"`
	Tags           Tags       `json:"tags"`
	Origin         string     `json:"origin,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	SourceID       string     `json:"source_id"`
	Page           int        `json:"page"`
	Row            int        `json:"row"`
	AddedOn        *time.Time `json:"added_on,omitempty"`
	RetrievedAt    time.Time  `json:"retrieved_at"`
}

// Key returns the stable natural key used for upsert deduplication: a digest
// over raw institution, raw program, and the source identifier. Decision
// fields stay out of the digest so a posting whose status or date was edited
// upstream updates its existing row instead of inserting a duplicate.
// Re-scraping the same posting also yields the same key after improved
// standardization changes the Std fields.
func (r AdmissionResult) Key() string {
	payload := fmt.Sprintf("%s|%s|%s", r.Institution, r.Program, r.SourceID)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
