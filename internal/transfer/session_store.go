package transfer

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

// StaleSessionAge is how long an unfinished upload is kept for resume.
// The service discards upload ids well before this.
const StaleSessionAge = 24 * time.Hour

const dbDirPerms = 0o700

const (
	sqlLoadSession = `SELECT file_size, local_mtime, file_id, upload_id, part_size,
		next_part, created_at, updated_at
		FROM upload_sessions
		WHERE drive_id = ? AND parent_file_id = ? AND name = ? AND local_path = ?`

	sqlUpsertSession = `INSERT INTO upload_sessions
		(drive_id, parent_file_id, name, local_path, file_size, local_mtime,
		 file_id, upload_id, part_size, next_part, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(drive_id, parent_file_id, name, local_path) DO UPDATE SET
		 file_size = excluded.file_size,
		 local_mtime = excluded.local_mtime,
		 file_id = excluded.file_id,
		 upload_id = excluded.upload_id,
		 part_size = excluded.part_size,
		 next_part = excluded.next_part,
		 updated_at = excluded.updated_at`

	sqlAdvanceSession = `UPDATE upload_sessions SET next_part = ?, updated_at = ?
		WHERE drive_id = ? AND parent_file_id = ? AND name = ? AND local_path = ?`

	sqlDeleteSession = `DELETE FROM upload_sessions
		WHERE drive_id = ? AND parent_file_id = ? AND name = ? AND local_path = ?`

	sqlDeleteStale = `DELETE FROM upload_sessions WHERE updated_at < ?`
)

// SessionKey identifies one upload: a local file going to a named entry
// under a remote parent.
type SessionKey struct {
	DriveID      string
	ParentFileID string
	Name         string
	LocalPath    string
}

// SessionRecord is the persisted state of an in-flight multipart upload.
// NextPart is the 1-based number of the first part not yet confirmed.
type SessionRecord struct {
	SessionKey

	FileSize   int64
	LocalMtime time.Time
	FileID     string
	UploadID   string
	PartSize   int64
	NextPart   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Matches reports whether the record was created for a file of this size
// and modification time. A changed file cannot resume.
func (r *SessionRecord) Matches(size int64, mtime time.Time) bool {
	return r.FileSize == size && r.LocalMtime.Equal(mtime)
}

// SessionStore persists upload sessions in SQLite so an interrupted upload
// resumes at the first unconfirmed part.
type SessionStore struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// OpenSessionStore opens (creating if needed) the database at dbPath and
// runs migrations. Stale sessions are pruned on open.
func OpenSessionStore(ctx context.Context, dbPath string, logger *slog.Logger) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), dbDirPerms); err != nil {
		return nil, fmt.Errorf("transfer: creating database directory: %w", err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("transfer: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SessionStore{db: db, logger: logger, nowFunc: time.Now}

	if n, err := s.CleanStale(ctx, StaleSessionAge); err != nil {
		logger.Warn("stale upload session cleanup failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("cleaned stale upload sessions", slog.Int("count", n))
	}

	logger.Debug("session store opened", slog.String("db_path", dbPath))

	return s, nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Load returns the session for key, or nil, nil if there is none.
func (s *SessionStore) Load(ctx context.Context, key SessionKey) (*SessionRecord, error) {
	rec := SessionRecord{SessionKey: key}

	var mtime, created, updated int64

	err := s.db.QueryRowContext(ctx, sqlLoadSession,
		key.DriveID, key.ParentFileID, key.Name, key.LocalPath,
	).Scan(&rec.FileSize, &mtime, &rec.FileID, &rec.UploadID, &rec.PartSize,
		&rec.NextPart, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent session is not an error
	}

	if err != nil {
		return nil, fmt.Errorf("transfer: loading upload session: %w", err)
	}

	rec.LocalMtime = time.Unix(0, mtime)
	rec.CreatedAt = time.Unix(0, created)
	rec.UpdatedAt = time.Unix(0, updated)

	return &rec, nil
}

// Save inserts or replaces the session for rec's key.
func (s *SessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	now := s.nowFunc()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	if rec.NextPart < 1 {
		rec.NextPart = 1
	}

	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, sqlUpsertSession,
		rec.DriveID, rec.ParentFileID, rec.Name, rec.LocalPath,
		rec.FileSize, rec.LocalMtime.UnixNano(),
		rec.FileID, rec.UploadID, rec.PartSize, rec.NextPart,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("transfer: saving upload session: %w", err)
	}

	return nil
}

// Advance records that every part before nextPart has been uploaded.
func (s *SessionStore) Advance(ctx context.Context, key SessionKey, nextPart int) error {
	_, err := s.db.ExecContext(ctx, sqlAdvanceSession,
		nextPart, s.nowFunc().UnixNano(),
		key.DriveID, key.ParentFileID, key.Name, key.LocalPath,
	)
	if err != nil {
		return fmt.Errorf("transfer: advancing upload session: %w", err)
	}

	return nil
}

// Delete removes the session for key. No error if it doesn't exist.
func (s *SessionStore) Delete(ctx context.Context, key SessionKey) error {
	_, err := s.db.ExecContext(ctx, sqlDeleteSession,
		key.DriveID, key.ParentFileID, key.Name, key.LocalPath,
	)
	if err != nil {
		return fmt.Errorf("transfer: deleting upload session: %w", err)
	}

	return nil
}

// CleanStale removes sessions not updated within maxAge and returns how
// many were deleted.
func (s *SessionStore) CleanStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.nowFunc().Add(-maxAge).UnixNano()

	res, err := s.db.ExecContext(ctx, sqlDeleteStale, cutoff)
	if err != nil {
		return 0, fmt.Errorf("transfer: cleaning stale sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("transfer: counting cleaned sessions: %w", err)
	}

	return int(n), nil
}
