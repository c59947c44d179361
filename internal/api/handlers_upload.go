// handlers_upload.go - Upload page and HTMX fragment handlers
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/session"
	"github.com/zodakzach/youtube-history-metrics/internal/storage"
	"github.com/zodakzach/youtube-history-metrics/internal/upload"
	"github.com/zodakzach/youtube-history-metrics/internal/web"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	sessions     SessionManager
	resolver     *sessionResolver
	view         web.ViewOptions
	relayCookies bool
	version      string
	logger       logrus.FieldLogger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(deps *Dependencies) UploadHandler {
	return &UploadHandlerImpl{
		sessions:     deps.Sessions,
		resolver:     deps.resolver(),
		view:         deps.View,
		relayCookies: deps.RelayCookies,
		version:      deps.Version,
		logger:       deps.logger(),
	}
}

// HandleIndex renders the full upload page
func (h *UploadHandlerImpl) HandleIndex(c echo.Context) error {
	state, err := h.resolver.resolve(c)
	if err != nil {
		return err
	}
	page := web.NewPageView(state.Controller.Snapshot(), h.view, h.version)
	return c.Render(http.StatusOK, web.PageIndex, page)
}

// HandleInstructions renders the Takeout export walkthrough
func (h *UploadHandlerImpl) HandleInstructions(c echo.Context) error {
	page := web.NewPageView(models.UploadSnapshot{}, h.view, h.version)
	page.Title = "Export instructions"
	return c.Render(http.StatusOK, web.PageInstructions, page)
}

// HandleSelectFile stages the posted file and makes it the session's selection.
// An empty file input clears the selection.
func (h *UploadHandlerImpl) HandleSelectFile(c echo.Context) error {
	state, err := h.resolver.resolve(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile(upload.FormField)
	if errors.Is(err, http.ErrMissingFile) {
		if err := h.sessions.ClearSelection(state.ID); err != nil {
			return NewInternalError("failed to clear selection", err)
		}
		return h.renderPanel(c, state)
	}
	if err != nil {
		return NewBadRequestError("invalid multipart body", err)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read file", err)
	}
	defer src.Close()

	info, err := h.sessions.StageFile(state.ID, fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		var tooLarge *storage.ErrTooLarge
		if errors.As(err, &tooLarge) {
			return NewPayloadTooLargeError(tooLarge.Error())
		}
		return NewInternalError("failed to stage file", err)
	}

	h.logger.WithFields(logrus.Fields{
		"session": state.ID[:8],
		"file":    info.Name,
		"size":    info.Size,
	}).Debugf("File staged")

	return h.renderPanel(c, state)
}

// HandleSubmit sends the selected file to the ingestion backend and renders
// the resulting panel. Validation and upload failures are part of the panel,
// not HTTP errors.
func (h *UploadHandlerImpl) HandleSubmit(c echo.Context) error {
	state, err := h.resolver.resolve(c)
	if err != nil {
		return err
	}

	// The upload outlives a closed tab so the status stays accurate.
	ctx := context.WithoutCancel(c.Request().Context())
	err = state.Controller.Submit(ctx)

	var validationErr *upload.ValidationError
	var uploadErr *upload.UploadError
	switch {
	case err == nil:
		if h.relayCookies {
			if n := relayCookies(c, state); n > 0 {
				h.logger.WithField("session", state.ID[:8]).Debugf("Relayed %d backend cookies", n)
			}
		}
	case errors.As(err, &validationErr), errors.As(err, &uploadErr):
	default:
		return NewInternalError("upload failed", err)
	}

	return h.renderPanel(c, state)
}

func (h *UploadHandlerImpl) renderPanel(c echo.Context, state *session.SessionState) error {
	panel := web.NewPanelView(state.Controller.Snapshot(), h.view)
	return c.Render(http.StatusOK, web.FragmentPanel, panel)
}
