package models

import "time"

// FeedbackKind selects how the transient feedback area is drawn.
type FeedbackKind string

const (
	FeedbackNone    FeedbackKind = "none"
	FeedbackSpinner FeedbackKind = "spinner"
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
)

// Feedback is what the feedback area shows for a given status and message.
type Feedback struct {
	Kind    FeedbackKind `json:"kind" msgpack:"kind"`
	Message string       `json:"message,omitempty" msgpack:"message,omitempty"`
}

// Visible reports whether anything should be drawn.
func (f Feedback) Visible() bool {
	return f.Kind != FeedbackNone
}

// Receipt is the optional JSON body returned by the ingestion backend on success.
type Receipt struct {
	Status            string `json:"status,omitempty" msgpack:"status,omitempty"`
	SessionID         string `json:"sessionId,omitempty" msgpack:"sessionId,omitempty"`
	State             string `json:"state,omitempty" msgpack:"state,omitempty"`
	RemovedVideoCount int    `json:"removedVideoCount,omitempty" msgpack:"removedVideoCount,omitempty"`
}

// SelectedFileInfo describes the file currently held by a controller.
type SelectedFileInfo struct {
	Name        string `json:"name" msgpack:"name"`
	Size        int64  `json:"size" msgpack:"size"`
	ContentType string `json:"contentType,omitempty" msgpack:"contentType,omitempty"`
}

// UploadSnapshot is a point-in-time copy of a controller's observable state.
type UploadSnapshot struct {
	SessionID string            `json:"sessionId,omitempty" msgpack:"sessionId,omitempty"`
	Status    UploadStatus      `json:"status" msgpack:"status"`
	Message   string            `json:"message,omitempty" msgpack:"message,omitempty"`
	File      *SelectedFileInfo `json:"file,omitempty" msgpack:"file,omitempty"`
	Receipt   *Receipt          `json:"receipt,omitempty" msgpack:"receipt,omitempty"`
	Steps     []Step            `json:"steps,omitempty" msgpack:"steps,omitempty"`
	Feedback  *Feedback         `json:"feedback,omitempty" msgpack:"feedback,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt" msgpack:"updatedAt"`
}
