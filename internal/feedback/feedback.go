// Package feedback decides what the transient message area shows.
package feedback

import "github.com/zodakzach/youtube-history-metrics/internal/models"

// SpinnerLabel is shown next to the spinner while an upload is in flight.
const SpinnerLabel = "Uploading your file…"

// Render maps a status and the held message to a feedback view.
func Render(status models.UploadStatus, message string) models.Feedback {
	if status == models.UploadStatusIdle && message == "" {
		return models.Feedback{Kind: models.FeedbackNone}
	}

	if status == models.UploadStatusUploading {
		return models.Feedback{Kind: models.FeedbackSpinner, Message: SpinnerLabel}
	}

	if message == "" {
		return models.Feedback{Kind: models.FeedbackNone}
	}

	if status == models.UploadStatusError {
		return models.Feedback{Kind: models.FeedbackError, Message: message}
	}
	return models.Feedback{Kind: models.FeedbackSuccess, Message: message}
}
