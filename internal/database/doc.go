// Package database stores resolution history in SQLite (modernc.org/sqlite,
// CGO-free).
//
// Every resolution the CLI or the server performs can be saved as one row
// of the resolutions table: the identifier, a timestamp, the report JSON and
// its SHA3-256 digest. The history command lists those rows and uses
// Compare to show which providers gained, lost or changed manifests between
// two runs.
package database
