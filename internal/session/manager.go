package session

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/storage"
	"github.com/zodakzach/youtube-history-metrics/internal/upload"
)

// DefaultMaxSessions limits concurrent sessions to bound memory and staged files
const DefaultMaxSessions = 1000

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// CookieJar is implemented by uploaders that carry backend cookies.
type CookieJar interface {
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
}

// Gauge receives the number of live sessions and the bytes staged for them.
type Gauge interface {
	SetActiveSessions(n int)
	FileStaged(size int64)
}

// UploaderFactory builds the uploader for a new session.
type UploaderFactory func(sessionID string) (upload.Uploader, error)

// Options configures a Manager.
type Options struct {
	Endpoint    string
	MaxSessions int
	Logger      logrus.FieldLogger
	Recorder    upload.Recorder
	Gauge       Gauge
	// NewUploader overrides the default per-session HTTP client.
	NewUploader UploaderFactory
}

// Manager holds one upload controller per browser session.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	store       storage.Store
	maxSessions int
	logger      logrus.FieldLogger
	recorder    upload.Recorder
	gauge       Gauge
	newUploader UploaderFactory
}

// SessionState holds a session's controller and its staged file.
type SessionState struct {
	ID           string
	Controller   *upload.Controller
	Uploader     upload.Uploader
	CreatedAt    time.Time
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)

	stagedMu     sync.Mutex
	stagedFileID string
}

// Cookies returns the backend cookies held for this session, if any.
func (s *SessionState) Cookies() []*http.Cookie {
	if jar, ok := s.Uploader.(CookieJar); ok {
		return jar.Cookies()
	}
	return nil
}

// SeedCookies hands browser cookies to the session's uploader.
func (s *SessionState) SeedCookies(cookies []*http.Cookie) {
	if jar, ok := s.Uploader.(CookieJar); ok {
		jar.SetCookies(cookies)
	}
}

// StagedFileID returns the id of the staged file backing the current selection.
func (s *SessionState) StagedFileID() string {
	s.stagedMu.Lock()
	defer s.stagedMu.Unlock()
	return s.stagedFileID
}

// NewManager creates a new session manager.
func NewManager(store storage.Store, opts Options) *Manager {
	m := &Manager{
		sessions:    make(map[string]*SessionState),
		store:       store,
		maxSessions: opts.MaxSessions,
		logger:      opts.Logger,
		recorder:    opts.Recorder,
		gauge:       opts.Gauge,
		newUploader: opts.NewUploader,
	}
	if m.maxSessions <= 0 {
		m.maxSessions = DefaultMaxSessions
	}
	if m.logger == nil {
		m.logger = logrus.StandardLogger()
	}
	if m.newUploader == nil {
		endpoint := opts.Endpoint
		m.newUploader = func(string) (upload.Uploader, error) {
			return upload.NewClient(endpoint)
		}
	}
	return m
}

// GetOrCreate returns the session for id, creating a new one when id is empty
// or unknown. The bool reports whether a session was created.
func (m *Manager) GetOrCreate(id string) (*SessionState, bool, error) {
	if id != "" {
		if state, ok := m.touch(id); ok {
			return state, false, nil
		}
	}

	// Clean up old sessions if at limit
	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	uploader, err := m.newUploader(sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("creating uploader: %w", err)
	}

	opts := []upload.Option{
		upload.WithSessionID(sessionID),
		upload.WithLogger(m.logger),
	}
	if m.recorder != nil {
		opts = append(opts, upload.WithRecorder(m.recorder))
	}

	now := time.Now()
	state := &SessionState{
		ID:           sessionID,
		Controller:   upload.NewController(uploader, opts...),
		Uploader:     uploader,
		CreatedAt:    now,
		LastAccessed: now,
	}

	m.mu.Lock()
	m.sessions[sessionID] = state
	count := len(m.sessions)
	m.mu.Unlock()

	m.reportCount(count)
	m.logger.WithField("session", sessionID[:8]).Debugf("Session created")
	return state, true, nil
}

// GetSession returns a session by ID.
func (m *Manager) GetSession(id string) (*SessionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	return state, ok
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	_, ok := m.touch(id)
	return ok
}

func (m *Manager) touch(id string) (*SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = time.Now()
	return state, true
}

// StageFile stores r in the staging store and makes it the session's selected
// file. The previously staged file is released.
func (m *Manager) StageFile(id, name, contentType string, r io.Reader) (*models.FileInfo, error) {
	state, ok := m.touch(id)
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}

	info, err := m.store.Save(name, contentType, r)
	if err != nil {
		return nil, err
	}

	if m.gauge != nil {
		m.gauge.FileStaged(info.Size)
	}

	fileID := info.ID
	store := m.store
	selected := upload.NewSelectedFile(info.Name, info.Size, info.ContentType, func() (io.ReadCloser, error) {
		return store.Open(fileID)
	})

	// The swap and the selection happen under one lock so the controller
	// always holds the file recorded as staged.
	state.stagedMu.Lock()
	previous := state.stagedFileID
	state.stagedFileID = fileID
	state.Controller.SelectFile(selected)
	state.stagedMu.Unlock()

	if previous != "" {
		m.releaseStaged(previous)
	}
	return info, nil
}

// ClearSelection drops the session's selected file, as when the user empties
// the file input.
func (m *Manager) ClearSelection(id string) error {
	state, ok := m.touch(id)
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	state.stagedMu.Lock()
	previous := state.stagedFileID
	state.stagedFileID = ""
	state.Controller.SelectFile(nil)
	state.stagedMu.Unlock()

	if previous != "" {
		m.releaseStaged(previous)
	}
	return nil
}

// CleanupOldSessions removes sessions idle for longer than maxAge. Sessions
// with an upload in flight, or touched within SessionKeepAliveWindow, are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	var removed []*SessionState
	for id, state := range m.sessions {
		if state.Controller.Status() == models.UploadStatusUploading {
			continue
		}

		// Don't clean up sessions that are actively being used
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}

		if state.LastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, state)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, state := range removed {
		m.dispose(state)
		m.logger.WithField("session", state.ID[:8]).Debugf("Cleaned up aged session (last accessed: %s ago)",
			time.Since(state.LastAccessed).Round(time.Second))
	}
	m.reportCount(count)
	return len(removed)
}

// cleanupOldSessionsIfNeeded evicts the least recently used idle sessions when at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()

	if len(m.sessions) < m.maxSessions {
		m.mu.Unlock()
		return
	}

	var candidates []*SessionState
	for _, state := range m.sessions {
		if state.Controller.Status() != models.UploadStatusUploading {
			candidates = append(candidates, state)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastAccessed.Before(candidates[j].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	if toFree > len(candidates) {
		toFree = len(candidates)
	}
	evicted := candidates[:toFree]
	for _, state := range evicted {
		delete(m.sessions, state.ID)
	}
	m.mu.Unlock()

	for _, state := range evicted {
		m.dispose(state)
		m.logger.WithField("session", state.ID[:8]).Infof("Evicted session to stay under %d sessions", m.maxSessions)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close disposes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	states := make([]*SessionState, 0, len(m.sessions))
	for id, state := range m.sessions {
		states = append(states, state)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, state := range states {
		m.dispose(state)
	}
	m.reportCount(0)
}

func (m *Manager) dispose(state *SessionState) {
	state.Controller.Close()

	state.stagedMu.Lock()
	staged := state.stagedFileID
	state.stagedFileID = ""
	state.stagedMu.Unlock()

	if staged != "" {
		m.releaseStaged(staged)
	}
}

func (m *Manager) releaseStaged(fileID string) {
	if err := m.store.Delete(fileID); err != nil {
		m.logger.WithError(err).Warnf("Failed to release staged file %s", fileID)
	}
}

func (m *Manager) reportCount(n int) {
	if m.gauge != nil {
		m.gauge.SetActiveSessions(n)
	}
}
