// Package upload holds the upload controller: the one piece of client state
// (status, message, selected file) and the single outbound request per submit.
package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zodakzach/youtube-history-metrics/internal/feedback"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
	"github.com/zodakzach/youtube-history-metrics/internal/progress"
)

// Outcome labels for Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

// Recorder observes submissions. Implemented by the metrics package.
type Recorder interface {
	UploadStarted()
	UploadFinished(outcome string, elapsed time.Duration)
	SubmitRejected(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) UploadStarted() {}

func (noopRecorder) UploadFinished(string, time.Duration) {}

func (noopRecorder) SubmitRejected(string) {}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for submit lifecycle events.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRecorder sets the submission observer.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithSessionID tags snapshots and log lines with the owning session.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		c.sessionID = id
	}
}

// Controller owns the upload status and the selected file.
//
// Status only changes through SelectFile and Submit. The lock is never held
// across the network call; whichever writer finishes last wins, so a file
// change during an in-flight upload is overwritten when that upload resolves.
type Controller struct {
	uploader  Uploader
	logger    logrus.FieldLogger
	recorder  Recorder
	sessionID string

	mu          sync.Mutex
	file        *SelectedFile
	status      models.UploadStatus
	message     string
	receipt     *models.Receipt
	updatedAt   time.Time
	subscribers map[int]chan models.UploadSnapshot
	nextSubID   int
	closed      bool
}

// NewController creates a controller in the idle status.
func NewController(uploader Uploader, opts ...Option) *Controller {
	c := &Controller{
		uploader:    uploader,
		logger:      logrus.StandardLogger(),
		recorder:    noopRecorder{},
		status:      models.UploadStatusIdle,
		updatedAt:   time.Now(),
		subscribers: make(map[int]chan models.UploadSnapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID != "" {
		c.logger = c.logger.WithField("session", shortID(c.sessionID))
	}
	return c
}

// SelectFile replaces the held file, resets the status to idle and clears the
// message. A nil file clears the selection.
func (c *Controller) SelectFile(file *SelectedFile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.file = file
	c.receipt = nil
	c.setLocked(models.UploadStatusIdle, "")

	if file != nil {
		c.logger.WithFields(logrus.Fields{"file": file.Name(), "size": file.Size()}).Debugf("File selected")
	}
}

// Submit sends the held file once. It returns *ValidationError when no file is
// held and *UploadError when the upload failed; the status reflects the outcome
// either way.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	file := c.file
	if file == nil {
		c.message = MessageNoFile
		c.updatedAt = time.Now()
		c.publishLocked()
		c.mu.Unlock()

		c.recorder.SubmitRejected(OutcomeInvalid)
		return &ValidationError{Message: MessageNoFile}
	}
	c.receipt = nil
	c.setLocked(models.UploadStatusUploading, "")
	c.mu.Unlock()

	logger := c.logger.WithField("file", file.Name())
	logger.Infof("Uploading %d bytes", file.Size())

	c.recorder.UploadStarted()
	start := time.Now()
	receipt, err := c.uploader.Upload(ctx, file)
	elapsed := time.Since(start)

	if err != nil {
		uploadErr := toUploadError(err)

		outcome := OutcomeFailed
		if uploadErr.Rejected() {
			outcome = OutcomeRejected
		}
		c.recorder.UploadFinished(outcome, elapsed)
		logger.WithError(err).Warnf("Upload %s after %s", outcome, elapsed.Round(time.Millisecond))

		c.mu.Lock()
		c.setLocked(models.UploadStatusError, uploadErr.Message)
		c.mu.Unlock()
		return uploadErr
	}

	c.recorder.UploadFinished(OutcomeSuccess, elapsed)
	logger.Infof("Upload complete in %s", elapsed.Round(time.Millisecond))

	c.mu.Lock()
	c.receipt = receipt
	c.setLocked(models.UploadStatusSuccess, MessageSuccess)
	c.mu.Unlock()
	return nil
}

// Status returns the current status.
func (c *Controller) Status() models.UploadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Message returns the current user-facing message, possibly empty.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// File returns the held file or nil.
func (c *Controller) File() *SelectedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

// Snapshot returns the observable state with steps and feedback derived from
// the current status.
func (c *Controller) Snapshot() models.UploadSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change. Sends
// never block: a full buffer drops the snapshot for that subscriber. Call the
// returned func to unsubscribe; it closes the channel.
func (c *Controller) Subscribe(buffer int) (<-chan models.UploadSnapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.UploadSnapshot, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(ch)
			}
		})
	}
}

// Close drops every subscriber. Later subscriptions receive a closed channel.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

func (c *Controller) setLocked(status models.UploadStatus, message string) {
	c.status = status
	c.message = message
	c.updatedAt = time.Now()
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Controller) snapshotLocked() models.UploadSnapshot {
	fb := feedback.Render(c.status, c.message)
	snap := models.UploadSnapshot{
		SessionID: c.sessionID,
		Status:    c.status,
		Message:   c.message,
		Steps:     progress.DeriveSteps(c.status),
		Feedback:  &fb,
		UpdatedAt: c.updatedAt,
	}
	if c.file != nil {
		snap.File = c.file.Info()
	}
	if c.receipt != nil {
		r := *c.receipt
		snap.Receipt = &r
	}
	return snap
}

func toUploadError(err error) *UploadError {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return &UploadError{
			Message:    MessageRejected,
			StatusCode: rejected.StatusCode,
			Err:        err,
		}
	}

	msg := err.Error()
	if msg == "" {
		msg = MessageFallback
	}
	return &UploadError{Message: msg, Err: err}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
