package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/dossier/internal/digest"
)

// appends larger than this are split across several blocks
const maxBlockSize = 1024 * 1024

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	dir TEXT NOT NULL,
	name TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	digest BLOB,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_dir ON files(dir);

CREATE TABLE IF NOT EXISTS file_blocks (
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (file_id, seq)
);
`

type fileRow struct {
	ID        int64  `db:"id"`
	Path      string `db:"path"`
	Dir       string `db:"dir"`
	Name      string `db:"name"`
	Size      int64  `db:"size"`
	Digest    []byte `db:"digest"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r *fileRow) info() *FileInfo {
	info := &FileInfo{
		Path: r.Path,
		Name: r.Name,
		Size: r.Size,
	}
	if d, err := digest.FromBytes(r.Digest); err == nil {
		info.Digest = &d
	}
	if t, err := time.Parse(time.RFC3339Nano, r.UpdatedAt); err == nil {
		info.UpdatedAt = t
	}
	return info
}

// SqliteStore keeps file contents as ordered blocks in SQLite
type SqliteStore struct {
	db *sqlx.DB
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates the schema if needed. The caller owns db.
func NewSqliteStore(db *sqlx.DB) (*SqliteStore, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) ListRecursive(ctx context.Context, prefix string) ([]FileRecord, error) {
	if err := ValidateDir(prefix); err != nil {
		return nil, err
	}

	// every path under prefix sorts between "prefix" and "prefix" with its
	// trailing '/' bumped to '0'
	upper := strings.TrimSuffix(prefix, Separator) + "0"

	rows, err := s.db.QueryxContext(ctx,
		`SELECT path, digest FROM files WHERE digest IS NOT NULL AND path > ? AND path < ? ORDER BY path`,
		prefix, upper,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	records := make([]FileRecord, 0)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		d, err := digest.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt digest for %s: %w", path, err)
		}
		records = append(records, FileRecord{Path: path, Digest: d})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return records, nil
}

func (s *SqliteStore) List(ctx context.Context, dir string) ([]*FileInfo, error) {
	if err := ValidateDir(dir); err != nil {
		return nil, err
	}

	var rows []*fileRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM files WHERE dir = ? ORDER BY name`, dir); err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	infos := make([]*FileInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, row.info())
	}
	return infos, nil
}

func (s *SqliteStore) Load(ctx context.Context, path string) (FileHandle, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	var row fileRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM files WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	return s.handle(&row), nil
}

func (s *SqliteStore) Create(ctx context.Context, path string) (FileHandle, error) {
	dir, name, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	now := timestamp()
	row := &fileRow{Path: path, Dir: dir, Name: name, CreatedAt: now, UpdatedAt: now}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM files WHERE path = ?`, path); err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}

		res, err := tx.NamedExecContext(ctx,
			`INSERT INTO files (path, dir, name, size, created_at, updated_at)
			VALUES (:path, :dir, :name, 0, :created_at, :updated_at)`,
			row,
		)
		if err != nil {
			return err
		}
		row.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return s.handle(row), nil
}

func (s *SqliteStore) Delete(ctx context.Context, path string) (bool, error) {
	if err := ValidatePath(path); err != nil {
		return false, err
	}

	deleted := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, `SELECT id FROM files WHERE path = ?`, path)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		} else if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM file_blocks WHERE file_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	return deleted, nil
}

// Count returns the number of stored files
func (s *SqliteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM files`); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

func (s *SqliteStore) handle(row *fileRow) *sqliteHandle {
	return &sqliteHandle{
		store: s,
		id:    row.ID,
		path:  row.Path,
		name:  row.Name,
	}
}

func (s *SqliteStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
