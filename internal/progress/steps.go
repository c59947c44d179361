// Package progress derives the three-step ingestion indicator from an upload status.
package progress

import "github.com/zodakzach/youtube-history-metrics/internal/models"

type baseStep struct {
	id    models.StepID
	label string
	blurb string
}

var baseSteps = [...]baseStep{
	{
		id:    models.StepVerify,
		label: "Verifying & Extracting",
		blurb: "We parse your file, clean the entries, and prep them for enrichment.",
	},
	{
		id:    models.StepRequest,
		label: "Requesting Video Data",
		blurb: "Video metadata gets requested from YouTube for richer analytics.",
	},
	{
		id:    models.StepLoaded,
		label: "Data Loaded",
		blurb: "Dive into watch streaks, channel stats, and viewing patterns.",
	},
}

// StepIDs returns the fixed step order.
func StepIDs() []models.StepID {
	ids := make([]models.StepID, len(baseSteps))
	for i, s := range baseSteps {
		ids[i] = s.id
	}
	return ids
}

// DeriveSteps returns a fresh step list for status. It is recomputed on every
// call and never cached, so callers always see the current status reflected.
func DeriveSteps(status models.UploadStatus) []models.Step {
	steps := make([]models.Step, len(baseSteps))
	for i, s := range baseSteps {
		steps[i] = models.Step{
			ID:     s.id,
			Label:  s.label,
			Blurb:  s.blurb,
			State:  StateFor(status, s.id),
			Number: i + 1,
		}
	}
	return steps
}

// StateFor resolves the visual state of a single step.
func StateFor(status models.UploadStatus, id models.StepID) models.StepState {
	switch status {
	case models.UploadStatusUploading:
		if id == models.StepVerify {
			return models.StepStateActive
		}
		return models.StepStateUpcoming
	case models.UploadStatusSuccess:
		if id == models.StepLoaded {
			return models.StepStateActive
		}
		return models.StepStateComplete
	case models.UploadStatusError:
		if id == models.StepVerify {
			return models.StepStateError
		}
		return models.StepStateUpcoming
	default:
		return models.StepStateUpcoming
	}
}
