package upload

import (
	"fmt"
	"net/http"
)

// User-facing messages. Every failure collapses to one of these or to the
// transport error's own text.
const (
	MessageNoFile   = "Select your YouTube watch-history JSON file to continue."
	MessageRejected = "Upload failed - make sure the ingestion backend is running."
	MessageSuccess  = "History uploaded. Continue to the analytics dashboard to explore your data."
	MessageFallback = "Something went wrong while uploading. Please try again."
)

// ValidationError is returned by Submit when nothing can be sent. Status is left untouched.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UploadError is returned by Submit after the controller moved to the error status.
type UploadError struct {
	Message    string
	StatusCode int // zero for transport failures
	Err        error
}

func (e *UploadError) Error() string {
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the backend answered with a non-2xx status.
func (e *UploadError) Rejected() bool {
	return e.StatusCode != 0
}

// RejectedError is returned by the HTTP client for a non-2xx response.
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ingestion backend responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
