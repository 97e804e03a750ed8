// Package claim defines the core types and errors for the Savline warranty store.
package claim

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested claim does not exist.
	ErrNotFound = errors.New("claim: not found")
	// ErrAttachmentNotFound is returned when a storage name resolves to no attachment.
	ErrAttachmentNotFound = errors.New("claim: attachment not found")
	// ErrInvalidStatus is returned when a status value is outside the enumeration.
	ErrInvalidStatus = errors.New("claim: invalid status")
)

// Status is the review state of a claim. Any admin update may set any value;
// there is no enforced transition graph.
type Status string

const (
	StatusRegistered   Status = "Registered"
	StatusAccepted     Status = "Accepted"
	StatusAwaitingInfo Status = "Awaiting-Info"
	StatusRejected     Status = "Rejected"
)

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusAccepted, StatusAwaitingInfo, StatusRejected:
		return true
	default:
		return false
	}
}

// Attachment is a stored file tied to a claim. StorageName is the opaque
// on-disk key; OriginalName is user-supplied and only used for display and
// content-type inference.
type Attachment struct {
	OriginalName string `json:"original_name"`
	StorageName  string `json:"storage_name"`
}

// HistoryEntry is one append-only audit line. History is never reordered or
// truncated.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// Claim is one customer warranty submission and its full history.
type Claim struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	StoreID      string `json:"store_id"`

	Product    string `json:"product,omitempty"`
	PartNumber string `json:"part_number,omitempty"`

	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehicleModel string `json:"vehicle_model,omitempty"`
	VehicleYear  string `json:"vehicle_year,omitempty"`

	ProblemSummary string `json:"problem_summary,omitempty"`
	ProblemDetails string `json:"problem_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`

	// Response is nil until an admin supplies a non-empty response text.
	// An empty string in an update is treated as "not supplied" and never
	// clears an existing response.
	Response *string `json:"response"`

	Files         []Attachment   `json:"files"`
	ResponseFiles []Attachment   `json:"response_files"`
	History       []HistoryEntry `json:"history"`
}

// AppendHistory records an action with the current UTC time.
func (c *Claim) AppendHistory(action string) {
	c.History = append(c.History, HistoryEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
	})
}

// Normalize guarantees the attachment slices are non-nil so API responses
// serialize them as empty arrays rather than null.
func (c *Claim) Normalize() {
	if c.Files == nil {
		c.Files = []Attachment{}
	}
	if c.ResponseFiles == nil {
		c.ResponseFiles = []Attachment{}
	}
	if c.History == nil {
		c.History = []HistoryEntry{}
	}
}
