package models

// UploadStatus represents the lifecycle of a single upload attempt.
type UploadStatus string

const (
	UploadStatusIdle      UploadStatus = "idle"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusSuccess   UploadStatus = "success"
	UploadStatusError     UploadStatus = "error"
)

// AllUploadStatuses lists every status in lifecycle order.
var AllUploadStatuses = []UploadStatus{
	UploadStatusIdle,
	UploadStatusUploading,
	UploadStatusSuccess,
	UploadStatusError,
}
