// backend.go - Fake ingestion backend for testing
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ReceivedUpload is what the fake backend saw for one request.
type ReceivedUpload struct {
	Field       string
	Filename    string
	ContentType string
	Body        []byte
	Cookies     []*http.Cookie
}

// Backend is an httptest server that accepts multipart uploads the way the
// ingestion service does.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	received []ReceivedUpload

	// StatusCode is returned for every request. Zero means 200.
	StatusCode int
	// SessionCookie, when set, is issued as the session_id cookie.
	SessionCookie string
	// Block, when set, holds each request until it is closed.
	Block chan struct{}
}

// NewBackend starts a fake backend and registers its shutdown with t.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.Server.Close)
	return b
}

// Endpoint returns the loadData URL of the backend.
func (b *Backend) Endpoint() string {
	return b.Server.URL + "/loadData"
}

// Received returns every upload seen so far.
func (b *Backend) Received() []ReceivedUpload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ReceivedUpload(nil), b.received...)
}

func (b *Backend) handle(w http.ResponseWriter, r *http.Request) {
	if b.Block != nil {
		<-b.Block
	}

	rec := ReceivedUpload{Cookies: r.Cookies()}
	if mr, err := r.MultipartReader(); err == nil {
		if part, err := mr.NextPart(); err == nil {
			rec.Field = part.FormName()
			rec.Filename = part.FileName()
			rec.ContentType = part.Header.Get("Content-Type")
			rec.Body, _ = io.ReadAll(part)
		}
	}

	b.mu.Lock()
	b.received = append(b.received, rec)
	b.mu.Unlock()

	if b.SessionCookie != "" {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: b.SessionCookie, Path: "/"})
	}

	status := b.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status < 300 {
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"sessionId": b.SessionCookie,
		})
	}
}
