// handlers_status.go - Upload status snapshot handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is the content type of msgpack snapshots
const MIMEApplicationMsgpack = "application/msgpack"

// StatusHandlerImpl implements the StatusHandler interface
type StatusHandlerImpl struct {
	resolver *sessionResolver
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(deps *Dependencies) StatusHandler {
	return &StatusHandlerImpl{resolver: deps.resolver()}
}

// HandleStatus returns the session's snapshot as JSON
func (h *StatusHandlerImpl) HandleStatus(c echo.Context) error {
	state, err := h.resolver.resolve(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, state.Controller.Snapshot())
}

// HandleStatusMsgpack returns the same snapshot encoded as MessagePack
func (h *StatusHandlerImpl) HandleStatusMsgpack(c echo.Context) error {
	state, err := h.resolver.resolve(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(state.Controller.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
}
