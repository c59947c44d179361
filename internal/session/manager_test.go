package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/testutil"
	"github.com/zodakzach/youtube-history-metrics/internal/upload"
)

type recordingGauge struct {
	mu     sync.Mutex
	last   int
	staged int64
}

func (g *recordingGauge) SetActiveSessions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *recordingGauge) FileStaged(size int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staged += size
}

func (g *recordingGauge) Staged() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.staged
}

func (g *recordingGauge) Last() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type okUploader struct{}

func (okUploader) Upload(ctx context.Context, file *upload.SelectedFile) (*models.Receipt, error) {
	return &models.Receipt{Status: "ok"}, nil
}

func newTestManager(t *testing.T, store *testutil.MockStorage, maxSessions int) (*Manager, *recordingGauge) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	gauge := &recordingGauge{}
	m := NewManager(store, Options{
		MaxSessions: maxSessions,
		Logger:      logger,
		Gauge:       gauge,
		NewUploader: func(string) (upload.Uploader, error) { return okUploader{}, nil },
	})
	t.Cleanup(m.Close)
	return m, gauge
}

func TestManager_GetOrCreate(t *testing.T) {
	m, gauge := newTestManager(t, testutil.NewMockStorage(), 0)

	first, created, err := m.GetOrCreate("")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if !created {
		t.Error("Expected a new session for an empty id")
	}
	if first.Controller.Status() != models.UploadStatusIdle {
		t.Errorf("Expected new session to be idle, got %s", first.Controller.Status())
	}

	again, created, err := m.GetOrCreate(first.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if created || again != first {
		t.Error("Expected the existing session to be returned")
	}

	other, created, _ := m.GetOrCreate("no-such-session")
	if !created || other.ID == "no-such-session" {
		t.Error("Expected an unknown id to yield a fresh session with a new id")
	}

	if m.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", m.Count())
	}
	if gauge.Last() != 2 {
		t.Errorf("Expected gauge at 2, got %d", gauge.Last())
	}
}

func TestManager_DefaultUploaderCarriesCookies(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.SessionCookie = "backend-session"

	logger, _ := test.NewNullLogger()
	m := NewManager(testutil.NewMockStorage(), Options{Endpoint: backend.Endpoint(), Logger: logger})
	defer m.Close()

	state, _, err := m.GetOrCreate("")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := m.StageFile(state.ID, "watch-history.json", "application/json", strings.NewReader(`[{"title":"a"}]`)); err != nil {
		t.Fatalf("Failed to stage file: %v", err)
	}
	if err := state.Controller.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	received := backend.Received()
	if len(received) != 1 {
		t.Fatalf("Expected 1 upload at the backend, got %d", len(received))
	}
	if received[0].Field != upload.FormField || received[0].Filename != "watch-history.json" {
		t.Errorf("Unexpected multipart part %q/%q", received[0].Field, received[0].Filename)
	}
	if string(received[0].Body) != `[{"title":"a"}]` {
		t.Errorf("Unexpected body %q", received[0].Body)
	}

	cookies := state.Cookies()
	if len(cookies) != 1 || cookies[0].Value != "backend-session" {
		t.Errorf("Expected the backend session cookie to be held, got %v", cookies)
	}
	snap := state.Controller.Snapshot()
	if snap.Receipt == nil || snap.Receipt.SessionID != "backend-session" {
		t.Errorf("Expected receipt with backend session, got %+v", snap.Receipt)
	}
}

func TestManager_StageFile(t *testing.T) {
	store := testutil.NewMockStorage()
	m, gauge := newTestManager(t, store, 0)
	state, _, _ := m.GetOrCreate("")

	t.Run("selects the staged file", func(t *testing.T) {
		info, err := m.StageFile(state.ID, "first.json", "application/json", strings.NewReader("[1]"))
		if err != nil {
			t.Fatalf("Failed to stage: %v", err)
		}
		if state.StagedFileID() != info.ID {
			t.Errorf("Expected staged id %s, got %s", info.ID, state.StagedFileID())
		}
		file := state.Controller.File()
		if file == nil || file.Name() != "first.json" || file.Size() != 3 {
			t.Fatalf("Expected controller to hold first.json, got %+v", file)
		}
	})

	t.Run("replacing releases the previous file", func(t *testing.T) {
		previous := state.StagedFileID()
		if _, err := m.StageFile(state.ID, "second.json", "application/json", strings.NewReader("[2]")); err != nil {
			t.Fatalf("Failed to stage: %v", err)
		}
		if _, err := store.Get(previous); err == nil {
			t.Error("Expected previous staged file to be deleted")
		}
		if store.GetFileCount() != 1 {
			t.Errorf("Expected 1 staged file, got %d", store.GetFileCount())
		}
		if state.Controller.File().Name() != "second.json" {
			t.Errorf("Expected second.json to be selected, got %s", state.Controller.File().Name())
		}
		if gauge.Staged() != 6 {
			t.Errorf("Expected 6 staged bytes reported, got %d", gauge.Staged())
		}
	})

	t.Run("clearing drops the selection", func(t *testing.T) {
		if err := m.ClearSelection(state.ID); err != nil {
			t.Fatalf("Failed to clear: %v", err)
		}
		if state.Controller.File() != nil {
			t.Error("Expected no file after clearing")
		}
		if state.StagedFileID() != "" || store.GetFileCount() != 0 {
			t.Error("Expected staged file to be released")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := m.StageFile("missing", "x.json", "", strings.NewReader("[]")); err == nil {
			t.Error("Expected error for unknown session")
		}
		if err := m.ClearSelection("missing"); err == nil {
			t.Error("Expected error clearing unknown session")
		}
	})
}

func TestManager_StageFileConcurrent(t *testing.T) {
	store := testutil.NewMockStorage()
	m, _ := newTestManager(t, store, 0)
	state, _, _ := m.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tab-%d.json", i)
			if _, err := m.StageFile(state.ID, name, "application/json", strings.NewReader("[]")); err != nil {
				t.Errorf("Failed to stage %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	staged, err := store.Get(state.StagedFileID())
	if err != nil {
		t.Fatalf("Expected the recorded staged file to exist: %v", err)
	}
	file := state.Controller.File()
	if file == nil || file.Name() != staged.Name {
		t.Fatalf("Expected controller to hold %s, got %+v", staged.Name, file)
	}
	rc, err := file.Open()
	if err != nil {
		t.Fatalf("Expected the selected file to still be readable: %v", err)
	}
	rc.Close()
	if store.GetFileCount() != 1 {
		t.Errorf("Expected 1 staged file, got %d", store.GetFileCount())
	}
}

func TestManager_CleanupOldSessions(t *testing.T) {
	store := testutil.NewMockStorage()
	m, gauge := newTestManager(t, store, 0)

	stale, _, _ := m.GetOrCreate("")
	m.StageFile(stale.ID, "old.json", "", strings.NewReader("[]"))
	fresh, _, _ := m.GetOrCreate("")

	m.mu.Lock()
	stale.LastAccessed = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	removed := m.CleanupOldSessions(30 * time.Minute)
	if removed != 1 {
		t.Fatalf("Expected 1 session removed, got %d", removed)
	}
	if _, ok := m.GetSession(stale.ID); ok {
		t.Error("Expected stale session to be gone")
	}
	if _, ok := m.GetSession(fresh.ID); !ok {
		t.Error("Expected fresh session to survive")
	}
	if store.GetFileCount() != 0 {
		t.Errorf("Expected staged file to be released, %d remain", store.GetFileCount())
	}
	if gauge.Last() != 1 {
		t.Errorf("Expected gauge at 1, got %d", gauge.Last())
	}

	ch, _ := stale.Controller.Subscribe(1)
	if _, open := <-ch; open {
		t.Error("Expected subscriptions on a disposed session to be closed")
	}
}

func TestManager_CleanupKeepsRecentlyTouched(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewMockStorage(), 0)
	state, _, _ := m.GetOrCreate("")

	m.mu.Lock()
	state.LastAccessed = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	// maxAge shorter than the keep-alive window still keeps an active session
	if removed := m.CleanupOldSessions(time.Second); removed != 0 {
		t.Errorf("Expected no sessions removed, got %d", removed)
	}
	if !m.TouchSession(state.ID) {
		t.Error("Expected touch to find the session")
	}
	if m.TouchSession("missing") {
		t.Error("Expected touch on unknown session to fail")
	}
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewMockStorage(), 2)

	oldest, _, _ := m.GetOrCreate("")
	newer, _, _ := m.GetOrCreate("")

	m.mu.Lock()
	oldest.LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	third, _, _ := m.GetOrCreate("")

	if m.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", m.Count())
	}
	if _, ok := m.GetSession(oldest.ID); ok {
		t.Error("Expected oldest session to be evicted")
	}
	for _, s := range []*SessionState{newer, third} {
		if _, ok := m.GetSession(s.ID); !ok {
			t.Errorf("Expected session %s to survive", s.ID)
		}
	}
}

func TestManager_Close(t *testing.T) {
	store := testutil.NewMockStorage()
	m, gauge := newTestManager(t, store, 0)

	for i := 0; i < 3; i++ {
		s, _, _ := m.GetOrCreate("")
		m.StageFile(s.ID, "f.json", "", strings.NewReader("[]"))
	}

	m.Close()

	if m.Count() != 0 {
		t.Errorf("Expected no sessions after close, got %d", m.Count())
	}
	if store.GetFileCount() != 0 {
		t.Errorf("Expected staged files released, %d remain", store.GetFileCount())
	}
	if gauge.Last() != 0 {
		t.Errorf("Expected gauge at 0, got %d", gauge.Last())
	}
}
