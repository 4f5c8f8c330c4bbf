package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

// Repository persists history on MySQL. Insert and cap eviction run in one
// transaction, so concurrent writers cannot push a user past the cap.
type Repository struct {
	db        *sql.DB
	retention int
}

func NewRepository(db *sql.DB, retention int) *Repository {
	if retention <= 0 {
		retention = history.DefaultRetention
	}
	return &Repository{db: db, retention: retention}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS analysis_history (
  id          VARCHAR(36)  NOT NULL PRIMARY KEY,
  username    VARCHAR(255) NOT NULL,
  image_count INT          NOT NULL,
  report_text LONGTEXT     NOT NULL,
  created_at  DATETIME(6)  NOT NULL,
  INDEX idx_history_user (username, created_at)
);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Insert stores the record and evicts the owner's rows beyond the cap.
func (r *Repository) Insert(ctx context.Context, rec history.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	defer tx.Rollback()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const ins = `
INSERT INTO analysis_history (id, username, image_count, report_text, created_at)
VALUES (?,?,?,?,?);
`
	if _, err := tx.ExecContext(ctx, ins, rec.ID, rec.Username, rec.ImageCount, rec.Text, createdAt); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}

	const evict = `
DELETE FROM analysis_history
WHERE username = ? AND id NOT IN (
  SELECT id FROM (
    SELECT id FROM analysis_history
    WHERE username = ?
    ORDER BY created_at DESC, id DESC
    LIMIT ?
  ) keep
);
`
	if _, err := tx.ExecContext(ctx, evict, rec.Username, rec.Username, r.retention); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

// List returns the owner's records ordered newest-first.
func (r *Repository) List(ctx context.Context, username string) ([]history.Record, error) {
	const q = `
SELECT id, username, image_count, report_text, created_at
FROM analysis_history
WHERE username = ?
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []history.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get scopes the lookup by owner so a foreign id reads as absent.
func (r *Repository) Get(ctx context.Context, username string, id history.RecordID) (*history.Record, error) {
	const q = `
SELECT id, username, image_count, report_text, created_at
FROM analysis_history
WHERE username = ? AND id = ?;
`
	row := r.db.QueryRowContext(ctx, q, username, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) DeleteOne(ctx context.Context, username string, id history.RecordID) error {
	const q = `DELETE FROM analysis_history WHERE username = ? AND id = ?;`
	res, err := r.db.ExecContext(ctx, q, username, id)
	if err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return history.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteAll(ctx context.Context, username string) error {
	const q = `DELETE FROM analysis_history WHERE username = ?;`
	if _, err := r.db.ExecContext(ctx, q, username); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (history.Record, error) {
	var rec history.Record
	var created time.Time
	if err := row.Scan(&rec.ID, &rec.Username, &rec.ImageCount, &rec.Text, &created); err != nil {
		return history.Record{}, err
	}
	rec.CreatedAt = created.UTC()
	return rec, nil
}
