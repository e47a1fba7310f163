package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/streamscout/internal/config"
	"github.com/nao1215/streamscout/internal/database"
	"github.com/nao1215/streamscout/internal/model"
)

// historyDateLayout is how record timestamps are shown.
const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// It lists and compares resolutions stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List and compare past resolutions",
		Long: `History shows how the resolutions of an identifier changed over time.

By default it compares the latest two resolutions of the identifier and
shows, per provider:
- Status changes (for example not_found -> success)
- Manifest URLs that appeared
- Manifest URLs that disappeared

Resolutions are recorded by 'streamscout resolve' and by
'streamscout serve --history'.

Examples:
  # Compare the latest two resolutions of an identifier
  streamscout history 550

  # List every resolution of an identifier
  streamscout history --list 550

  # Compare the latest resolution with a specific one by ID
  streamscout history --with-id 5 550

  # Compare with the first resolution on or after a date
  streamscout history --since 2026-01-01 550

  # Output the comparison as JSON
  streamscout history --json 550

  # List every identifier in the database
  streamscout history --list-ids`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List resolution history for the specified identifier")
	cmd.Flags().BoolP("list-ids", "L", false,
		"List all identifiers in the database")

	cmd.Flags().Int64P("with-id", "i", 0,
		"Compare with a specific resolution by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first resolution on or after this date (format: YYYY-MM-DD)")

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("data-dir", config.XDGDataDir(),
		"Directory of the resolution history database")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	identifier string
	list       bool
	listIDs    bool
	withID     int64
	since      string
	json       bool
	markdown   bool
	dataDir    string
}

// parseHistoryOptions reads and validates the history flags.
// It runs before the database is opened.
func parseHistoryOptions(cmd *cobra.Command, args []string) (*historyOptions, error) {
	flags := cmd.Flags()
	opts := &historyOptions{}

	var err error
	if opts.listIDs, err = flags.GetBool("list-ids"); err != nil {
		return nil, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.withID, err = flags.GetInt64("with-id"); err != nil {
		return nil, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dataDir, err = flags.GetString("data-dir"); err != nil {
		return nil, err
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.listIDs {
		return opts, nil
	}

	if len(args) == 0 {
		return nil, errors.New("identifier is required (use --list-ids to see available identifiers)")
	}
	id, err := model.ParseIdentifier(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid identifier: %w", err)
	}
	opts.identifier = id.String()

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listIDs:
		return listIdentifiers(ctx, out, db)
	case opts.list:
		return listHistory(ctx, out, db, opts.identifier)
	default:
		return runComparison(ctx, out, db, opts)
	}
}

// listIdentifiers lists every identifier with stored resolutions.
func listIdentifiers(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	ids, err := db.ListIdentifiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identifiers: %w", err)
	}

	if len(ids) == 0 {
		fmt.Fprintln(out, "No resolutions found in the database.")
		fmt.Fprintln(out, "\nUse 'streamscout resolve <id>' to resolve an identifier.")
		return nil
	}

	fmt.Fprintf(out, "Resolved identifiers (%d):\n\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  • %s\n", id)
	}
	fmt.Fprintln(out, "\nUse 'streamscout history --list <id>' to see the resolutions of an identifier.")

	return nil
}

// listHistory lists every stored resolution of identifier.
func listHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, identifier string) error {
	records, err := db.History(ctx, identifier)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No resolutions found for %s\n", identifier)
		fmt.Fprintln(out, "\nUse 'streamscout resolve' to resolve this identifier.")
		return nil
	}

	fmt.Fprintf(out, "Resolution history for %s (%d resolutions):\n\n", identifier, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %-5s  %s\n", "ID", "Date", "URLs", "Digest")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, rec := range records {
		fmt.Fprintf(out, "  %-6d  %-20s  %-5d  %s\n",
			rec.ID,
			rec.Timestamp.Local().Format(historyDateLayout),
			rec.TotalURLs,
			shortDigest(rec.Digest),
		)
	}

	fmt.Fprintln(out, "\nUse 'streamscout history <id>' to compare the latest two resolutions.")
	fmt.Fprintln(out, "Use 'streamscout history --with-id <row-id> <id>' to compare with a specific resolution.")

	return nil
}

// shortDigest returns the first 12 hex characters of a digest.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// HistoryComparison is the result of comparing two stored resolutions.
type HistoryComparison struct {
	Previous database.Record `json:"previous"`
	Current  database.Record `json:"current"`

	// Identical is true when both reports have the same digest.
	Identical bool `json:"identical"`

	*database.Comparison
}

// runComparison compares the latest resolution with an earlier one.
func runComparison(ctx context.Context, out io.Writer, db *database.HistoryDB, opts *historyOptions) error {
	records, err := db.History(ctx, opts.identifier)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if len(records) == 0 {
		return fmt.Errorf("no resolution history found for %s", opts.identifier)
	}
	if len(records) < 2 && opts.withID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 resolutions are required for comparison (found %d)", len(records))
	}

	// Records are newest first.
	current := records[0]
	previous, err := selectPrevious(records, opts)
	if err != nil {
		return err
	}

	prevReport, err := db.ByID(ctx, previous.ID)
	if err != nil {
		return err
	}
	curReport, err := db.ByID(ctx, current.ID)
	if err != nil {
		return err
	}

	result := &HistoryComparison{
		Previous:   previous,
		Current:    current,
		Identical:  previous.Digest == current.Digest,
		Comparison: database.Compare(prevReport, curReport),
	}

	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// selectPrevious picks the record the latest one is compared with.
func selectPrevious(records []database.Record, opts *historyOptions) (database.Record, error) {
	current := records[0]

	switch {
	case opts.withID > 0:
		for _, rec := range records {
			if rec.ID == opts.withID {
				return rec, nil
			}
		}
		return database.Record{}, fmt.Errorf("resolution with ID %d not found for %s", opts.withID, opts.identifier)

	case opts.since != "":
		sinceDate, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return database.Record{}, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Iterate oldest first to find the first record on or after the date.
		for i := len(records) - 1; i >= 0; i-- {
			rec := records[i]
			if !rec.Timestamp.Before(sinceDate) {
				if rec.ID == current.ID {
					return database.Record{}, fmt.Errorf("only one resolution found since %s; at least 2 are required for comparison", opts.since)
				}
				return rec, nil
			}
		}
		return database.Record{}, fmt.Errorf("no resolutions found since %s", opts.since)

	default:
		return records[1], nil
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *HistoryComparison) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *HistoryComparison) error {
	fmt.Fprintf(out, "# Resolution Comparison: %s\n\n", result.Identifier)

	fmt.Fprintln(out, "## Summary")
	fmt.Fprintf(out, "\n**Status:** %s\n\n", formatChangeStatus(result))

	fmt.Fprintln(out, "| Metric | Previous | Current | Change |")
	fmt.Fprintln(out, "|--------|----------|---------|--------|")
	fmt.Fprintf(out, "| Resolution | #%d | #%d | - |\n", result.Previous.ID, result.Current.ID)
	fmt.Fprintf(out, "| Date | %s | %s | - |\n",
		result.Previous.Timestamp.Local().Format("2006-01-02 15:04"),
		result.Current.Timestamp.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "| **Manifest URLs** | **%d** | **%d** | **%s** |\n",
		result.PreviousTotalURLs,
		result.CurrentTotalURLs,
		formatDelta(result.CurrentTotalURLs-result.PreviousTotalURLs))

	if result.HasChanges() {
		fmt.Fprintf(out, "\n## Provider Changes (%d)\n\n", len(result.Changes))
		for _, c := range result.Changes {
			fmt.Fprintf(out, "- **%s**: %s -> %s\n", c.Tag, formatStatus(c.Previous), formatStatus(c.Current))
			for _, u := range c.AddedURLs {
				fmt.Fprintf(out, "  - added `%s`\n", u)
			}
			for _, u := range c.RemovedURLs {
				fmt.Fprintf(out, "  - ~~removed `%s`~~\n", u)
			}
		}
	}

	return nil
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *HistoryComparison) error {
	fmt.Fprintf(out, "Resolution Comparison: %s\n", result.Identifier)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatChangeStatus(result))

	fmt.Fprintf(out, "\nPrevious resolution: #%-5d %s\n",
		result.Previous.ID, result.Previous.Timestamp.Local().Format(historyDateLayout))
	fmt.Fprintf(out, "Current resolution:  #%-5d %s\n",
		result.Current.ID, result.Current.Timestamp.Local().Format(historyDateLayout))

	fmt.Fprintf(out, "\nManifest URLs: %d -> %d (%s)\n",
		result.PreviousTotalURLs, result.CurrentTotalURLs,
		formatDelta(result.CurrentTotalURLs-result.PreviousTotalURLs))

	if !result.HasChanges() {
		return nil
	}

	fmt.Fprintf(out, "\nProvider Changes (%d):\n", len(result.Changes))
	for _, c := range result.Changes {
		fmt.Fprintf(out, "  [~] %s: %s -> %s\n", c.Tag, formatStatus(c.Previous), formatStatus(c.Current))
		for _, u := range c.AddedURLs {
			fmt.Fprintf(out, "      [+] %s\n", u)
		}
		for _, u := range c.RemovedURLs {
			fmt.Fprintf(out, "      [-] %s\n", u)
		}
	}

	return nil
}

// formatChangeStatus summarizes the comparison for display.
func formatChangeStatus(result *HistoryComparison) string {
	switch {
	case result.Identical:
		return "IDENTICAL (same report digest)"
	case !result.HasChanges():
		return "UNCHANGED"
	case result.CurrentTotalURLs > result.PreviousTotalURLs:
		return "IMPROVED (more manifest URLs)"
	case result.CurrentTotalURLs < result.PreviousTotalURLs:
		return "DEGRADED (fewer manifest URLs)"
	default:
		return "CHANGED"
	}
}

// formatStatus shows a provider missing from one report as "absent".
func formatStatus(s model.Status) string {
	if s == "" {
		return "absent"
	}
	return s.String()
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
