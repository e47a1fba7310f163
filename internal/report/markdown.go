package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/streamscout/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing in issues
// and documentation. It uses the nao1215/markdown builder.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeProviders(md, report)
	w.writeManifests(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("Stream Resolution Report")
	md.PlainText("")

	rows := [][]string{
		{"Identifier", "`" + report.Identifier.String() + "`"},
	}
	if !report.ResolvedAt.IsZero() {
		rows = append(rows, []string{"Resolved At", report.ResolvedAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows,
		[]string{"Providers Checked", strconv.Itoa(report.TotalProvidersChecked)},
		[]string{"Manifest URLs", strconv.Itoa(report.TotalURLsFound)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(statusOrder))
	for _, s := range statusOrder {
		rows = append(rows, []string{statusEmoji(s) + " " + statusLabel(s), strconv.Itoa(report.CountByStatus(s))})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Providers"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.TotalProvidersChecked > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Provider Outcomes"),
		piechart.WithShowData(true),
	)
	for _, s := range statusOrder {
		if n := report.CountByStatus(s); n > 0 {
			chart.LabelAndIntValue(statusLabel(s), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	errs := report.CountByStatus(model.StatusError)
	switch {
	case report.TotalProvidersChecked > 0 && errs == report.TotalProvidersChecked:
		md.Cautionf("Every provider failed. Check connectivity and the provider catalogue.")
	case report.TotalURLsFound == 0:
		md.Warningf("No manifest URL was found for %s.", report.Identifier)
	case errs > 0:
		md.Importantf("%d provider(s) failed; the URL list may be incomplete.", errs)
	default:
		md.Tip("All providers answered.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeProviders(md *markdown.Markdown, report *model.Report) {
	md.H2("Providers")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Providers))
	for _, o := range report.Outcomes() {
		msg := o.Message
		if msg == "" {
			msg = "-"
		}
		rows = append(rows, []string{
			o.Tag,
			statusEmoji(o.Status) + " " + statusLabel(o.Status),
			strconv.Itoa(len(o.URLs)),
			escapeCell(truncateString(msg, 60)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Provider", "Status", "URLs", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeManifests(md *markdown.Markdown, report *model.Report) {
	if report.TotalURLsFound == 0 {
		return
	}

	md.H2("Manifests")
	md.PlainText("")
	for _, o := range report.Outcomes() {
		if o.Status != model.StatusSuccess {
			continue
		}
		md.H3(o.Tag)
		md.PlainText("")
		items := make([]string, len(o.URLs))
		for i, u := range o.URLs {
			items[i] = "`" + u + "`"
		}
		md.BulletList(items...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [streamscout](https://github.com/nao1215/streamscout)*")
}

func statusEmoji(s model.Status) string {
	switch s {
	case model.StatusSuccess:
		return "✅"
	case model.StatusNotFound:
		return "⚪"
	case model.StatusError:
		return "❌"
	default:
		return "❔"
	}
}

// escapeCell keeps pipes in messages from breaking the table.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
