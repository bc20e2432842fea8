// Package progress renders ingestion runs on a console.
package progress

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/laav10/astro-ingester/internal/pipeline"
)

const (
	okMark   = "✓"
	failMark = "✗"
)

// Reporter writes a line per finished step and a summary per run.
// Colors are only used when the output is a terminal.
type Reporter struct {
	w io.Writer

	title lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	faint lipgloss.Style
}

// New returns a Reporter writing to w.
func New(w io.Writer) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:     w,
		title: r.NewStyle().Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		faint: r.NewStyle().Faint(true),
	}
}

// Start announces the ingestion of job.
func (r *Reporter) Start(job pipeline.Job) {
	source := "built-in sample metadata"
	if job.MetadataPath != "" {
		source = job.MetadataPath
	}
	r.printf("%s %s\n", r.title.Render("Ingesting"), job.Path)
	r.printf("%s\n", r.faint.Render("metadata: "+source))
}

// StepStarted implements pipeline.Observer.
func (r *Reporter) StepStarted(pipeline.Step) {}

// StepFinished implements pipeline.Observer.
func (r *Reporter) StepFinished(res pipeline.StepResult) {
	if res.Err != nil {
		r.printf("%s %s: %s\n", r.fail.Render(failMark), res.Step.Description(), Cause(res.Err))
		r.printf("  %s\n", r.faint.Render(res.Err.Error()))
		return
	}
	r.printf("%s %s %s\n", r.ok.Render(okMark), res.Step.Description(),
		r.faint.Render(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond))))
}

// Outcome summarizes a finished run.
func (r *Reporter) Outcome(out pipeline.Outcome) {
	if out.Succeeded() {
		name := ""
		if out.Payload != nil {
			name = " " + out.Payload.Basename
		}
		r.printf("%s\n", r.ok.Render(fmt.Sprintf("%s Ingestion complete, registered%s", okMark, name)))
		return
	}
	r.printf("%s\n", r.fail.Render(fmt.Sprintf("%s Ingestion failed: %s", failMark, Cause(out.Err))))
}

// Cause returns a short description of the class of a pipeline error.
func Cause(err error) string {
	for _, e := range []error{
		pipeline.ErrFileNotFound,
		pipeline.ErrMetadataParse,
		pipeline.ErrHeaderRewrite,
		pipeline.ErrObjectStore,
		pipeline.ErrArchiveRegistration,
	} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	if err == nil {
		return "no error"
	}
	return "unexpected error"
}

func (r *Reporter) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}
