package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/zodakzach/youtube-history-metrics/internal/session"
)

// DefaultSessionCookie names the browser cookie carrying the session id.
const DefaultSessionCookie = "ythm_session"

// sessionResolver maps a request to its upload session, issuing the session
// cookie when a new one is created.
type sessionResolver struct {
	sessions   SessionManager
	cookieName string
	secure     bool
}

func newSessionResolver(sessions SessionManager, cookieName string, secure bool) *sessionResolver {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &sessionResolver{sessions: sessions, cookieName: cookieName, secure: secure}
}

func (r *sessionResolver) resolve(c echo.Context) (*session.SessionState, error) {
	var id string
	if cookie, err := c.Cookie(r.cookieName); err == nil {
		id = cookie.Value
	}

	state, created, err := r.sessions.GetOrCreate(id)
	if err != nil {
		return nil, NewInternalError("failed to start session", err)
	}

	if created {
		c.SetCookie(&http.Cookie{
			Name:     r.cookieName,
			Value:    state.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.secure,
			SameSite: http.SameSiteLaxMode,
		})
		// Cookies the browser already holds for this host (such as a relayed
		// backend session) go out with the first upload.
		state.SeedCookies(r.browserCookies(c.Request()))
	}
	return state, nil
}

func (r *sessionResolver) browserCookies(req *http.Request) []*http.Cookie {
	var out []*http.Cookie
	for _, cookie := range req.Cookies() {
		if cookie.Name == r.cookieName {
			continue
		}
		out = append(out, cookie)
	}
	return out
}

// relayCookies copies the backend cookies held by the session onto the response.
func relayCookies(c echo.Context, state *session.SessionState) int {
	cookies := state.Cookies()
	for _, cookie := range cookies {
		c.SetCookie(&http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
	}
	return len(cookies)
}
