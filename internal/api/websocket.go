package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	wsWriteWait = 10 * time.Second

	// Send pings to peer with this period; each ping also keeps the session alive
	wsPingPeriod = 30 * time.Second

	// Snapshots buffered per connection before older ones are dropped
	wsBuffer = 8
)

// WebSocketHandler pushes the session's upload snapshots to the browser
type WebSocketHandler struct {
	sessions   SessionManager
	resolver   *sessionResolver
	upgrader   websocket.Upgrader
	logger     logrus.FieldLogger
	pingPeriod time.Duration
}

// NewWebSocketHandler creates a new status stream handler
func NewWebSocketHandler(deps *Dependencies) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: deps.Sessions,
		resolver: deps.resolver(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     deps.checkOrigin,
		},
		logger:     deps.logger(),
		pingPeriod: wsPingPeriod,
	}
}

// HandleStatusStream upgrades the connection and writes the current snapshot,
// then one snapshot per status change until either side goes away.
func (wsh *WebSocketHandler) HandleStatusStream(c echo.Context) error {
	state, err := wsh.resolver.resolve(c)
	if err != nil {
		return err
	}

	// Pass the response headers so a freshly issued session cookie survives the upgrade.
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), c.Response().Header())
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := wsh.logger.WithField("session", state.ID[:8])
	logger.Debugf("Status stream connected")

	updates, unsubscribe := state.Controller.Subscribe(wsBuffer)
	defer unsubscribe()

	if err := wsh.write(ws, state.Controller.Snapshot()); err != nil {
		return nil
	}

	// The browser never sends data; reading only surfaces close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.WithError(err).Debugf("Status stream read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsh.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Debugf("Status stream disconnected")
			return nil

		case snap, ok := <-updates:
			if !ok {
				// Session was cleaned up
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"),
					time.Now().Add(wsWriteWait))
				return nil
			}
			if err := wsh.write(ws, snap); err != nil {
				logger.WithError(err).Debugf("Status stream write failed")
				return nil
			}

		case <-ticker.C:
			wsh.sessions.TouchSession(state.ID)
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func (wsh *WebSocketHandler) write(ws *websocket.Conn, v interface{}) error {
	ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.WriteJSON(v)
}

// sameHostOrigin accepts requests without an Origin header and requests whose
// Origin host matches the Host header.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
