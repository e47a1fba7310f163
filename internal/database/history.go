package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/streamscout/internal/model"
)

// FileName is the name of the SQLite file inside the data directory.
const FileName = "streamscout.db"

// timestampLayout is fixed width so that text ordering in SQLite matches
// chronological ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is false
// and there is no database yet.
var ErrDatabaseNotFound = errors.New("history database not found")

// HistoryDB stores resolution reports in SQLite so that runs for the same
// identifier can be listed and compared later.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging, letting the history command
	// read while a server writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection serialises Save calls
	// coming from concurrent resolutions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath, now: time.Now}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resolutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identifier TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		digest TEXT NOT NULL,
		total_urls INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resolutions_identifier ON resolutions(identifier);
	CREATE INDEX IF NOT EXISTS idx_resolutions_timestamp ON resolutions(timestamp);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Record is a stored resolution without its report body.
type Record struct {
	// ID is the row id, usable with ByID and history --with-id.
	ID int64 `json:"id"`

	// Identifier is the resolved content key.
	Identifier string `json:"identifier"`

	// Timestamp is when the report was resolved.
	Timestamp time.Time `json:"timestamp"`

	// Digest is the hex SHA3-256 of the serialised report. Equal digests
	// mean byte-identical reports.
	Digest string `json:"digest"`

	// TotalURLs is the report's total_urls_found.
	TotalURLs int `json:"total_urls"`
}

// Digest returns the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save stores report and returns the new record.
// The report's ResolvedAt is used as the timestamp when set.
func (h *HistoryDB) Save(ctx context.Context, report *model.Report) (Record, error) {
	if report == nil {
		return Record{}, errors.New("cannot save nil report")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return Record{}, fmt.Errorf("failed to serialize report: %w", err)
	}

	ts := report.ResolvedAt
	if ts.IsZero() {
		ts = h.now()
	}
	rec := Record{
		Identifier: report.Identifier.String(),
		Timestamp:  ts.UTC(),
		Digest:     Digest(data),
		TotalURLs:  report.TotalURLsFound,
	}

	query := `
	INSERT INTO resolutions (identifier, timestamp, digest, total_urls, report_json)
	VALUES (?, ?, ?, ?, ?)
	`
	result, err := h.db.ExecContext(ctx, query,
		rec.Identifier,
		rec.Timestamp.Format(timestampLayout),
		rec.Digest,
		rec.TotalURLs,
		string(data),
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save resolution: %w", err)
	}

	rec.ID, err = result.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read resolution id: %w", err)
	}
	return rec, nil
}

// Latest returns the most recent report for identifier, or nil if none.
func (h *HistoryDB) Latest(ctx context.Context, identifier string) (*model.Report, error) {
	query := `
	SELECT timestamp, report_json FROM resolutions
	WHERE identifier = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return h.queryReport(ctx, query, identifier)
}

// ByID returns the report stored under id, or nil if none.
func (h *HistoryDB) ByID(ctx context.Context, id int64) (*model.Report, error) {
	query := `
	SELECT timestamp, report_json FROM resolutions
	WHERE id = ?
	`
	return h.queryReport(ctx, query, id)
}

func (h *HistoryDB) queryReport(ctx context.Context, query string, arg any) (*model.Report, error) {
	var ts, data string
	err := h.db.QueryRowContext(ctx, query, arg).Scan(&ts, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}
	return decodeReport(ts, data)
}

func decodeReport(ts, data string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	report.ResolvedAt = parseTimestamp(ts)
	return &report, nil
}

// History returns the stored records for identifier, newest first.
func (h *HistoryDB) History(ctx context.Context, identifier string) ([]Record, error) {
	query := `
	SELECT id, identifier, timestamp, digest, total_urls
	FROM resolutions
	WHERE identifier = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := h.db.QueryContext(ctx, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ID, &rec.Identifier, &ts, &rec.Digest, &rec.TotalURLs); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Timestamp = parseTimestamp(ts)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListIdentifiers returns every identifier with at least one stored
// resolution, sorted.
func (h *HistoryDB) ListIdentifiers(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT identifier FROM resolutions
	ORDER BY identifier
	`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// timestampFormats are tried in order by parseTimestamp. The SQLite
// default format covers rows inserted by hand.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
