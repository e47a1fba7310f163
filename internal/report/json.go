package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/streamscout/internal/model"
)

// JSONWriter outputs reports in the wire format served by GET /resolve,
// so CLI output can be piped into the same consumers.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as one JSON document followed by a newline.
// Key order is preserved, indentation only adds whitespace.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, err
	}

	if w.indent {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, w.indentPrefix, w.indentString); err != nil {
			return 0, err
		}
		data = buf.Bytes()
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
