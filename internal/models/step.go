package models

// StepID identifies one of the fixed ingestion pipeline phases.
type StepID string

const (
	StepVerify  StepID = "verify"
	StepRequest StepID = "request"
	StepLoaded  StepID = "loaded"
)

// StepState is the visual state of a step.
type StepState string

const (
	StepStateUpcoming StepState = "upcoming"
	StepStateActive   StepState = "active"
	StepStateComplete StepState = "complete"
	StepStateError    StepState = "error"
)

// Step is a derived view of one pipeline phase. Never stored.
type Step struct {
	ID     StepID    `json:"id" msgpack:"id"`
	Label  string    `json:"label" msgpack:"label"`
	Blurb  string    `json:"blurb" msgpack:"blurb"`
	State  StepState `json:"state" msgpack:"state"`
	Number int       `json:"number" msgpack:"number"` // 1-based position
}
