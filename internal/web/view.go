package web

import (
	"github.com/zodakzach/youtube-history-metrics/internal/feedback"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
)

// Template names.
const (
	PageIndex        = "index.html"
	PageInstructions = "instructions.html"
	FragmentPanel    = "panel"
)

// SourceURL is linked from the page header.
const SourceURL = "https://github.com/zodakzach/youtube-history-metrics"

// Feature is one of the cards under the upload panel.
type Feature struct {
	Title string
	Body  string
}

// Features lists the cards shown on the upload page.
var Features = []Feature{
	{
		Title: "Short-lived sessions",
		Body:  "Your file is held only until it is sent, and the backend ties it to a session that expires on its own.",
	},
	{
		Title: "Analytics in one step",
		Body:  "Once loaded, explore streaks, top channels and when you watch, straight from the dashboard.",
	},
	{
		Title: "Server-rendered",
		Body:  "The page is plain HTML swapped in by HTMX, with live progress pushed over a WebSocket.",
	},
}

// Links are the outbound links rendered on every page.
type Links struct {
	Dashboard    string
	Instructions string
	Source       string
}

// ViewOptions carries configuration the templates need.
type ViewOptions struct {
	Accept string
	Links  Links
}

// PanelView is the data for the upload panel fragment.
type PanelView struct {
	models.UploadSnapshot
	Accept       string
	Links        Links
	SpinnerLabel string
}

// PageView is the data for a full page.
type PageView struct {
	Title    string
	Version  string
	Panel    PanelView
	Features []Feature
	Links    Links
}

// NewPanelView wraps a snapshot for the panel template.
func NewPanelView(snap models.UploadSnapshot, opts ViewOptions) PanelView {
	opts = opts.withDefaults()
	return PanelView{
		UploadSnapshot: snap,
		Accept:         opts.Accept,
		Links:          opts.Links,
		SpinnerLabel:   feedback.SpinnerLabel,
	}
}

// NewPageView builds the data for the index page.
func NewPageView(snap models.UploadSnapshot, opts ViewOptions, version string) PageView {
	opts = opts.withDefaults()
	return PageView{
		Title:    "Load your watch history",
		Version:  version,
		Panel:    NewPanelView(snap, opts),
		Features: Features,
		Links:    opts.Links,
	}
}

func (o ViewOptions) withDefaults() ViewOptions {
	if o.Accept == "" {
		o.Accept = ".json,application/json"
	}
	if o.Links.Instructions == "" {
		o.Links.Instructions = "/instructions"
	}
	if o.Links.Source == "" {
		o.Links.Source = SourceURL
	}
	return o
}
