// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"io"

	"github.com/labstack/echo/v4"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/session"
)

// UploadHandler serves the upload page and its HTMX fragments
type UploadHandler interface {
	HandleIndex(c echo.Context) error
	HandleInstructions(c echo.Context) error
	HandleSelectFile(c echo.Context) error
	HandleSubmit(c echo.Context) error
}

// StatusHandler exposes the session's upload snapshot
type StatusHandler interface {
	HandleStatus(c echo.Context) error
	HandleStatusMsgpack(c echo.Context) error
}

// StatusStreamHandler pushes snapshots over a WebSocket
type StatusStreamHandler interface {
	HandleStatusStream(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	GetOrCreate(id string) (*session.SessionState, bool, error)
	StageFile(id, name, contentType string, r io.Reader) (*models.FileInfo, error)
	ClearSelection(id string) error
	TouchSession(id string) bool
	Count() int
}

var _ SessionManager = (*session.Manager)(nil)
