// Package termview draws upload snapshots for a terminal.
package termview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
)

// Palette matching the web page
var (
	Accent = lipgloss.Color("#34d399")
	Danger = lipgloss.Color("#fb7185")
	Muted  = lipgloss.Color("#94a3b8")
	Text   = lipgloss.Color("#f8fafc")
)

// View renders snapshots with styles bound to one output.
type View struct {
	title      lipgloss.Style
	file       lipgloss.Style
	badge      map[models.StepState]lipgloss.Style
	label      lipgloss.Style
	blurb      lipgloss.Style
	spinner    lipgloss.Style
	success    lipgloss.Style
	failure    lipgloss.Style
	showBlurbs bool
}

// Options tweak the rendering.
type Options struct {
	NoColor bool
	// Compact drops the step blurbs.
	Compact bool
}

// New creates a View whose color support is detected from w.
func New(w io.Writer, opts Options) *View {
	r := lipgloss.NewRenderer(w)
	if opts.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}

	box := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	return &View{
		title: r.NewStyle().Bold(true).Foreground(Accent),
		file:  r.NewStyle().Foreground(Muted),
		badge: map[models.StepState]lipgloss.Style{
			models.StepStateUpcoming: r.NewStyle().Foreground(Muted),
			models.StepStateActive:   r.NewStyle().Bold(true).Foreground(Accent),
			models.StepStateComplete: r.NewStyle().Foreground(Accent),
			models.StepStateError:    r.NewStyle().Bold(true).Foreground(Danger),
		},
		label:      r.NewStyle().Bold(true).Foreground(Text),
		blurb:      r.NewStyle().Foreground(Muted).PaddingLeft(6),
		spinner:    r.NewStyle().Foreground(Accent),
		success:    box.BorderForeground(Accent).Foreground(Accent),
		failure:    box.BorderForeground(Danger).Foreground(Danger),
		showBlurbs: !opts.Compact,
	}
}

// Render draws the whole snapshot: title, file, steps and feedback.
func (v *View) Render(snap models.UploadSnapshot) string {
	var b strings.Builder

	b.WriteString(v.title.Render("YouTube History Metrics"))
	b.WriteString("  ")
	b.WriteString(v.file.Render(string(snap.Status)))
	b.WriteString("\n")

	if snap.File != nil {
		b.WriteString(v.file.Render(fmt.Sprintf("Selected: %s (%s)", snap.File.Name, humanize.Bytes(uint64(snap.File.Size)))))
		b.WriteString("\n")
	}

	b.WriteString(v.Steps(snap.Steps))

	if snap.Feedback != nil {
		if fb := v.Feedback(*snap.Feedback); fb != "" {
			b.WriteString(fb)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Steps draws one line per step, plus its blurb unless compact.
func (v *View) Steps(steps []models.Step) string {
	var b strings.Builder
	for _, step := range steps {
		mark := fmt.Sprintf("%d", step.Number)
		switch step.State {
		case models.StepStateComplete:
			mark = "✓"
		case models.StepStateError:
			mark = "✗"
		}

		style, ok := v.badge[step.State]
		if !ok {
			style = v.badge[models.StepStateUpcoming]
		}
		fmt.Fprintf(&b, "  %s  %s\n", style.Render("["+mark+"]"), v.label.Render(step.Label))
		if v.showBlurbs {
			b.WriteString(v.blurb.Render(step.Blurb))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Feedback draws the feedback area; empty when nothing is shown.
func (v *View) Feedback(fb models.Feedback) string {
	switch fb.Kind {
	case models.FeedbackSpinner:
		return v.spinner.Render("⟳ " + fb.Message)
	case models.FeedbackSuccess:
		return v.success.Render(fb.Message)
	case models.FeedbackError:
		return v.failure.Render(fb.Message)
	default:
		return ""
	}
}
