// Package report renders validation results for humans (styled text) and
// machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/flowlint/pkg/schema"
)

// Report is one rendered validation run.
type Report struct {
	RunID  string                   `json:"run_id"`
	File   string                   `json:"file,omitempty"`
	Valid  bool                     `json:"valid"`
	Failed bool                     `json:"failed"`
	Result *schema.ValidationResult `json:"-"`
}

// New assembles a report. gate may be nil, in which case the run fails
// exactly when errors were recorded.
func New(runID, file string, result *schema.ValidationResult, gate *Gate) (*Report, error) {
	failed := result.HasErrors()
	if gate != nil {
		var err error
		if failed, err = gate.Fails(result); err != nil {
			return nil, err
		}
	}
	return &Report{RunID: runID, File: file, Valid: result.Valid(), Failed: failed, Result: result}, nil
}

// Verdict is the closing line of the text report.
func (r *Report) Verdict() string {
	switch {
	case r.Failed && r.Valid:
		return "VALIDATION FAILED: the configured gate rejected this flow"
	case r.Failed:
		return "VALIDATION FAILED: errors must be fixed before deployment"
	case len(r.Result.Warnings) > 0:
		return "VALIDATION PASSED: flow is valid but has warnings to review"
	default:
		return "VALIDATION PASSED: flow appears to be valid"
	}
}

type palette struct {
	title   lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	info    lipgloss.Style
	dim     lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	enabled bool
}

func newPalette(color bool) palette {
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		err:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		warn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		passed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		failed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		enabled: color,
	}
}

func (p palette) paint(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

var rule = strings.Repeat("=", 60)

// RenderText writes the human report: errors, warnings and info grouped
// with their counts, then the verdict.
func RenderText(w io.Writer, r *Report, color bool) error {
	p := newPalette(color)
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString(p.paint(p.title, "FLOW VALIDATION REPORT") + "\n")
	if r.File != "" {
		b.WriteString(p.paint(p.dim, "file: "+r.File) + "\n")
	}
	if r.RunID != "" {
		b.WriteString(p.paint(p.dim, "run:  "+r.RunID) + "\n")
	}
	b.WriteString(rule + "\n")

	section := func(style lipgloss.Style, title, hint string, items []schema.Diagnostic) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", p.paint(style, fmt.Sprintf("%s (%d):", title, len(items))))
		if hint != "" {
			b.WriteString(p.paint(p.dim, hint) + "\n")
		}
		for _, d := range items {
			b.WriteString("  " + d.String() + "\n")
		}
	}
	section(p.err, "ERRORS", "These will fail deployment or import and must be fixed:", r.Result.Errors)
	section(p.warn, "WARNINGS", "These may cause issues and should be reviewed:", r.Result.Warnings)
	section(p.info, "INFO", "", r.Result.Info)

	verdict := p.paint(p.passed, r.Verdict())
	if r.Failed {
		verdict = p.paint(p.failed, r.Verdict())
	}
	b.WriteString("\n" + rule + "\n" + verdict + "\n" + rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonReport struct {
	*Report
	Errors   []schema.Diagnostic `json:"errors"`
	Warnings []schema.Diagnostic `json:"warnings"`
	Info     []schema.Diagnostic `json:"info"`
}

// RenderJSON writes {run_id, file, valid, failed, errors, warnings, info}.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Report:   r,
		Errors:   nonNil(r.Result.Errors),
		Warnings: nonNil(r.Result.Warnings),
		Info:     nonNil(r.Result.Info),
	})
}

// Render dispatches on format ("text" or "json").
func Render(w io.Writer, r *Report, format string, color bool) error {
	switch format {
	case "", "text":
		return RenderText(w, r, color)
	case "json":
		return RenderJSON(w, r)
	default:
		return schema.NewErrorf(schema.ErrCodeConfig, "unknown report format %q", format)
	}
}

func nonNil(d []schema.Diagnostic) []schema.Diagnostic {
	if d == nil {
		return []schema.Diagnostic{}
	}
	return d
}
