// Package journal persists a record of completed session file uploads in an
// embedded SQLite database. The watch command consults it to skip files that
// are already on the server unchanged, so restarting a watcher does not
// re-upload an entire directory.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// Record is one completed upload: which local file went into which session,
// and what the file looked like at upload time. Size, ModTime (Unix
// nanoseconds), and the content hash together decide whether a later version
// of the file needs re-uploading.
type Record struct {
	SessionID  string
	Path       string
	Size       int64
	ModTime    int64
	SHA256     string
	FileID     int64
	UploadedAt int64
}

// Store is an upload journal backed by SQLite with WAL mode. Safe for
// concurrent use by the watch command's uploader workers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	getStmt    *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
	listStmt   *sql.Stmt
	forgetStmt *sql.Stmt
	countStmt  *sql.Stmt
}

// Open creates a Store, opening the database at dbPath, applying migrations,
// and preparing all repeated statements. Parent directories are created as
// needed. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	logger.Debug("opening upload journal", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareAllStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.desc, err)
		}
	}

	return nil
}

// --- SQL query constants ---

const (
	sqlRecordColumns = `session_id, path, size, mtime, sha256, file_id, uploaded_at`

	sqlGetRecord = `SELECT ` + sqlRecordColumns +
		` FROM uploads WHERE session_id = ? AND path = ?`

	sqlUpsertRecord = `INSERT INTO uploads (` + sqlRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, path) DO UPDATE SET
			size        = excluded.size,
			mtime       = excluded.mtime,
			sha256      = excluded.sha256,
			file_id     = excluded.file_id,
			uploaded_at = excluded.uploaded_at`

	sqlDeleteRecord = `DELETE FROM uploads WHERE session_id = ? AND path = ?`

	sqlListSession = `SELECT ` + sqlRecordColumns +
		` FROM uploads WHERE session_id = ? ORDER BY path`

	sqlForgetSession = `DELETE FROM uploads WHERE session_id = ?`

	sqlCountSession = `SELECT COUNT(*) FROM uploads WHERE session_id = ?`
)

// prepareAllStatements creates all prepared statements.
func (s *Store) prepareAllStatements(ctx context.Context) error {
	defs := []struct {
		dest **sql.Stmt
		sql  string
		name string
	}{
		{&s.getStmt, sqlGetRecord, "get"},
		{&s.upsertStmt, sqlUpsertRecord, "upsert"},
		{&s.deleteStmt, sqlDeleteRecord, "delete"},
		{&s.listStmt, sqlListSession, "list"},
		{&s.forgetStmt, sqlForgetSession, "forgetSession"},
		{&s.countStmt, sqlCountSession, "count"},
	}

	for i := range defs {
		stmt, err := s.db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

// Get retrieves the journal record for one file in one session.
// Returns (nil, nil) if no record exists. Callers use the nil record to
// distinguish "never uploaded" from "uploaded before".
func (s *Store) Get(ctx context.Context, sessionID, path string) (*Record, error) {
	r := &Record{}

	err := s.getStmt.QueryRowContext(ctx, sessionID, path).Scan(
		&r.SessionID, &r.Path, &r.Size, &r.ModTime, &r.SHA256, &r.FileID, &r.UploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil record means "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("get record %s in %s: %w", path, sessionID, err)
	}

	return r, nil
}

// Upsert records a completed upload, replacing any previous record for the
// same file in the same session.
func (s *Store) Upsert(ctx context.Context, r *Record) error {
	s.logger.Debug("recording upload",
		"session_id", r.SessionID, "path", r.Path, "file_id", r.FileID)

	_, err := s.upsertStmt.ExecContext(ctx,
		r.SessionID, r.Path, r.Size, r.ModTime, r.SHA256, r.FileID, r.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert record %s in %s: %w", r.Path, r.SessionID, err)
	}

	return nil
}

// Delete removes the record for one file in one session. Deleting a record
// that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, sessionID, path string) error {
	s.logger.Debug("deleting upload record", "session_id", sessionID, "path", path)

	_, err := s.deleteStmt.ExecContext(ctx, sessionID, path)
	if err != nil {
		return fmt.Errorf("delete record %s in %s: %w", path, sessionID, err)
	}

	return nil
}

// List returns all records for a session, ordered by path.
func (s *Store) List(ctx context.Context, sessionID string) ([]*Record, error) {
	rows, err := s.listStmt.QueryContext(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(
			&r.SessionID, &r.Path, &r.Size, &r.ModTime, &r.SHA256, &r.FileID, &r.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}

	return records, nil
}

// ForgetSession removes every record for a session, for when a watched
// session is deleted on the server and its journal entries no longer mean
// anything. Returns the number of records removed.
func (s *Store) ForgetSession(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.forgetStmt.ExecContext(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("forget session %s: %w", sessionID, err)
	}

	affected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		s.logger.Warn("could not read rows affected", "error", rowsErr)
	}

	s.logger.Debug("forgot session", "session_id", sessionID, "removed", affected)

	return affected, nil
}

// Count returns the number of recorded uploads for a session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	var count int

	err := s.countStmt.QueryRowContext(ctx, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count session %s: %w", sessionID, err)
	}

	return count, nil
}

// Close closes all prepared statements and the database connection.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.getStmt, s.upsertStmt, s.deleteStmt, s.listStmt, s.forgetStmt, s.countStmt,
	} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				s.logger.Warn("closing journal statement", "error", err)
			}
		}
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close journal database: %w", err)
	}

	return nil
}

// NowNano returns the current time as Unix nanoseconds, the timestamp unit
// stored in the journal.
func NowNano() int64 {
	return time.Now().UnixNano()
}
