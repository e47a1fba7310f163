package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/streamscout/internal/model"
)

// SimpleWriter outputs human-readable plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose adds not_found messages and probe durations to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeProviders(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      STREAM RESOLUTION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Identifier:     %s\n", report.Identifier)
	if !report.ResolvedAt.IsZero() {
		fmt.Fprintf(sb, "Resolved At:    %s\n", report.ResolvedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Providers:      %d\n", report.TotalProvidersChecked)
	fmt.Fprintf(sb, "Manifest URLs:  %d\n", report.TotalURLsFound)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nSUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, status := range statusOrder {
		fmt.Fprintf(sb, "  %-10s %d\n", statusLabel(status)+":", report.CountByStatus(status))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeProviders(sb *strings.Builder, report *model.Report) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nPROVIDERS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, o := range report.Outcomes() {
		fmt.Fprintf(sb, "[%s] %s (%s)", statusIndicator(o.Status), o.Tag, statusLabel(o.Status))
		if w.verbose && o.Elapsed > 0 {
			fmt.Fprintf(sb, " %s", o.Elapsed.Round(time.Millisecond))
		}
		sb.WriteString("\n")

		for _, u := range o.URLs {
			fmt.Fprintf(sb, "    %s\n", u)
		}
		if o.Message != "" && (o.Status == model.StatusError || w.verbose) {
			fmt.Fprintf(sb, "    %s\n", o.Message)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by streamscout\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// statusOrder is the display order of statuses in summaries.
var statusOrder = []model.Status{model.StatusSuccess, model.StatusNotFound, model.StatusError}

// statusLabel turns a wire status into a display label ("not_found" -> "Not Found").
func statusLabel(s model.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s.String(), "_", " "))
}

func statusIndicator(s model.Status) string {
	switch s {
	case model.StatusSuccess:
		return "+"
	case model.StatusNotFound:
		return "-"
	case model.StatusError:
		return "!"
	default:
		return "?"
	}
}
