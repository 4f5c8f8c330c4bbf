package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/friendlens/internal/domain/history"
)

// Repository is the Postgres counterpart of the MySQL store; same port,
// placeholder syntax differs.
type Repository struct {
	db        *sql.DB
	retention int
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
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
  report_text TEXT         NOT NULL,
  created_at  TIMESTAMPTZ  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user ON analysis_history (username, created_at);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

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
VALUES ($1,$2,$3,$4,$5);
`
	if _, err := tx.ExecContext(ctx, ins, rec.ID, rec.Username, rec.ImageCount, rec.Text, createdAt); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}

	const evict = `
DELETE FROM analysis_history
WHERE username = $1 AND id NOT IN (
  SELECT id FROM analysis_history
  WHERE username = $1
  ORDER BY created_at DESC, id DESC
  LIMIT $2
);
`
	if _, err := tx.ExecContext(ctx, evict, rec.Username, r.retention); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, username string) ([]history.Record, error) {
	const q = `
SELECT id, username, image_count, report_text, created_at
FROM analysis_history
WHERE username = $1
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []history.Record{}
	for rows.Next() {
		var rec history.Record
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.ImageCount, &rec.Text, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = created.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, username string, id history.RecordID) (*history.Record, error) {
	const q = `
SELECT id, username, image_count, report_text, created_at
FROM analysis_history
WHERE username = $1 AND id = $2;
`
	var rec history.Record
	var created time.Time
	err := r.db.QueryRowContext(ctx, q, username, id).
		Scan(&rec.ID, &rec.Username, &rec.ImageCount, &rec.Text, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrNotFound
		}
		return nil, err
	}
	rec.CreatedAt = created.UTC()
	return &rec, nil
}

func (r *Repository) DeleteOne(ctx context.Context, username string, id history.RecordID) error {
	const q = `DELETE FROM analysis_history WHERE username = $1 AND id = $2;`
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
	const q = `DELETE FROM analysis_history WHERE username = $1;`
	if _, err := r.db.ExecContext(ctx, q, username); err != nil {
		return fmt.Errorf("%w: %v", history.ErrWrite, err)
	}
	return nil
}
