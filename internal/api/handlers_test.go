package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/session"
	"github.com/zodakzach/youtube-history-metrics/internal/storage"
	"github.com/zodakzach/youtube-history-metrics/internal/testutil"
	"github.com/zodakzach/youtube-history-metrics/internal/upload"
	"github.com/zodakzach/youtube-history-metrics/internal/web"
)

const testDashboard = "http://dashboard.test/"

type testEnv struct {
	e        *echo.Echo
	backend  *testutil.Backend
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, testutil.NewMockStorage())
}

func newTestEnvWithStore(t *testing.T, store storage.Store) *testEnv {
	t.Helper()

	backend := testutil.NewBackend(t)
	backend.SessionCookie = "backend-session"

	logger, _ := test.NewNullLogger()
	sessions := session.NewManager(store, session.Options{Endpoint: backend.Endpoint(), Logger: logger})
	t.Cleanup(sessions.Close)

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer
	SetupMiddleware(e, MiddlewareOptions{Logger: logger, BodyLimit: "1M"})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Sessions:     sessions,
		Endpoint:     backend.Endpoint(),
		RelayCookies: true,
		Version:      "test",
		Logger:       logger,
		View:         web.ViewOptions{Links: web.Links{Dashboard: testDashboard}},
	}))

	return &testEnv{e: e, backend: backend, sessions: sessions}
}

// do serves req, attaching cookies first.
func (env *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// startSession loads the page and returns the issued session cookie.
func (env *testEnv) startSession(t *testing.T, extra ...*http.Cookie) *http.Cookie {
	t.Helper()
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), extra...)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := findCookie(rec.Result().Cookies(), DefaultSessionCookie)
	require.NotNil(t, cookie, "session cookie should be issued")
	return cookie
}

func (env *testEnv) status(t *testing.T, cookie *http.Cookie) models.UploadSnapshot {
	t.Helper()
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/upload/status", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap models.UploadSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func selectRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if name == "" {
		// What a browser sends for a cleared file input
		require.NoError(t, w.WriteField(upload.FormField, ""))
	} else {
		part, err := w.CreateFormFile(upload.FormField, name)
		require.NoError(t, err)
		part.Write(data)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/select", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	return req
}

func submitRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/upload/submit", nil)
	req.Header.Set("HX-Request", "true")
	return req
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.startSession(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, env.backend.Endpoint(), body["endpoint"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestPages(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		contains []string
	}{
		{
			name:     "index",
			path:     "/",
			contains: []string{`id="upload-panel"`, `hx-post="/upload/select"`, `hx-post="/upload/submit"`, "Load Data"},
		},
		{
			name:     "instructions",
			path:     "/instructions",
			contains: []string{"takeout.google.com", `href="/"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
			for _, s := range tt.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestSessionCookie_ReusedAcrossRequests(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.startSession(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec.Result().Cookies(), DefaultSessionCookie), "known session should not be reissued")
	assert.Equal(t, 1, env.sessions.Count())

	// A stale cookie from a previous run yields a fresh session
	stale := &http.Cookie{Name: DefaultSessionCookie, Value: "expired"}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil), stale)
	fresh := findCookie(rec.Result().Cookies(), DefaultSessionCookie)
	require.NotNil(t, fresh)
	assert.NotEqual(t, "expired", fresh.Value)
	assert.True(t, fresh.HttpOnly)
}

func TestStatusHandler_Msgpack(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.startSession(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/upload/status/msgpack", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	snap := decodeMsgpack(t, rec.Body.Bytes())
	assert.Equal(t, models.UploadStatusIdle, snap.Status)
	require.Len(t, snap.Steps, 3)
	assert.Equal(t, models.StepVerify, snap.Steps[0].ID)
	assert.Equal(t, models.StepStateUpcoming, snap.Steps[0].State)
}

func TestMetricsRoute(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, &Handlers{
		Health:  NewHealthHandler(&Dependencies{}),
		Upload:  NewUploadHandler(&Dependencies{}),
		Status:  NewStatusHandler(&Dependencies{}),
		Stream:  NewWebSocketHandler(&Dependencies{}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, SplitOrigins(" http://a, ,http://b "))
	assert.Nil(t, SplitOrigins(""))
}
