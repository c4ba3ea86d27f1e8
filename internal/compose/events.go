package compose

import (
	"time"

	"campushub/composer/internal/richtext"
	"campushub/composer/internal/upload"
)

// EventType discriminates session events.
type EventType string

const (
	EventChange EventType = "change"
	EventUpload EventType = "upload"
	EventDraft  EventType = "draft"
)

// Event is one session notification fanned out to subscribers: a full
// value after a document change, an upload status move, or a draft
// write landing.
type Event struct {
	Type     EventType       `json:"type"`
	Value    *richtext.Value `json:"value,omitempty"`
	UploadID string          `json:"upload_id,omitempty"`
	Status   upload.Status   `json:"status,omitempty"`
	Src      string          `json:"src,omitempty"`
	SavedAt  *time.Time      `json:"saved_at,omitempty"`
}
