// Package report renders resolution reports.
//
// Three writers are provided:
//   - SimpleWriter: plain text for the terminal (default)
//   - JSONWriter: the same JSON document GET /resolve returns
//   - MarkdownWriter: tables, a mermaid pie chart of provider outcomes and
//     the manifest list, for pasting into issues
package report
