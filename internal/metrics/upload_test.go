package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadMetrics_Submissions(t *testing.T) {
	m := NewUploadMetrics("test")

	m.UploadStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsInFlight))

	m.UploadFinished("success", 150*time.Millisecond)
	m.SubmitRejected("invalid")
	m.SubmitRejected("invalid")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.uploadsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues("invalid")))
}

func TestUploadMetrics_SessionsAndStaging(t *testing.T) {
	m := NewUploadMetrics("test")

	m.SetActiveSessions(4)
	m.FileStaged(1024)
	m.FileStaged(0)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.stagedBytesTotal))
}

func TestUploadMetrics_Handler(t *testing.T) {
	m := NewUploadMetrics("test")
	m.UploadStarted()
	m.UploadFinished("rejected", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `ythm_upload_submissions_total{outcome="rejected",service="test"} 1`)
	assert.Contains(t, string(body), "ythm_upload_duration_seconds_bucket")
}
