package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/dossier/internal/digest"
)

type sqliteHandle struct {
	store *SqliteStore
	id    int64
	path  string
	name  string
}

var _ FileHandle = (*sqliteHandle)(nil)

func (h *sqliteHandle) Path() string { return h.path }
func (h *sqliteHandle) Name() string { return h.name }

func (h *sqliteHandle) Append(ctx context.Context, data []byte) error {
	return h.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := h.sizeTx(ctx, tx); err != nil {
			return err
		}

		var next int64
		if err := tx.GetContext(ctx, &next,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM file_blocks WHERE file_id = ?`, h.id,
		); err != nil {
			return fmt.Errorf("append %s: %w", h.path, err)
		}

		for off := 0; off < len(data); off += maxBlockSize {
			end := min(off+maxBlockSize, len(data))
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO file_blocks (file_id, seq, data) VALUES (?, ?, ?)`,
				h.id, next, data[off:end],
			); err != nil {
				return fmt.Errorf("append %s: %w", h.path, err)
			}
			next++
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE files SET size = size + ?, digest = NULL, updated_at = ? WHERE id = ?`,
			len(data), timestamp(), h.id,
		)
		if err != nil {
			return fmt.Errorf("append %s: %w", h.path, err)
		}
		return nil
	})
}

func (h *sqliteHandle) Truncate(ctx context.Context, length int64, mode TruncateMode) error {
	if length < 0 {
		return fmt.Errorf("truncate %s: negative length %d", h.path, length)
	}

	return h.store.withTx(ctx, func(tx *sqlx.Tx) error {
		size, err := h.sizeTx(ctx, tx)
		if err != nil {
			return err
		}
		if length >= size {
			return nil
		}

		var blocks []struct {
			Seq int64 `db:"seq"`
			Len int64 `db:"len"`
		}
		if err := tx.SelectContext(ctx, &blocks,
			`SELECT seq, length(data) AS len FROM file_blocks WHERE file_id = ? ORDER BY seq`, h.id,
		); err != nil {
			return fmt.Errorf("truncate %s: %w", h.path, err)
		}

		var offset int64
		for _, b := range blocks {
			start, end := offset, offset+b.Len
			offset = end

			var query string
			var args []any
			switch mode {
			case TruncateRemoveEnd:
				switch {
				case start >= length:
					query, args = `DELETE FROM file_blocks WHERE file_id = ? AND seq = ?`, []any{h.id, b.Seq}
				case end > length:
					query, args = `UPDATE file_blocks SET data = substr(data, 1, ?) WHERE file_id = ? AND seq = ?`, []any{length - start, h.id, b.Seq}
				}
			case TruncateRemoveStart:
				drop := size - length
				switch {
				case end <= drop:
					query, args = `DELETE FROM file_blocks WHERE file_id = ? AND seq = ?`, []any{h.id, b.Seq}
				case start < drop:
					query, args = `UPDATE file_blocks SET data = substr(data, ?) WHERE file_id = ? AND seq = ?`, []any{drop - start + 1, h.id, b.Seq}
				}
			default:
				return fmt.Errorf("truncate %s: unknown mode %d", h.path, mode)
			}

			if query == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("truncate %s: %w", h.path, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE files SET size = ?, digest = NULL, updated_at = ? WHERE id = ?`,
			length, timestamp(), h.id,
		)
		if err != nil {
			return fmt.Errorf("truncate %s: %w", h.path, err)
		}
		return nil
	})
}

func (h *sqliteHandle) UpdateMetadata(ctx context.Context, md Metadata) error {
	res, err := h.store.db.ExecContext(ctx,
		`UPDATE files SET digest = ?, updated_at = ? WHERE id = ?`,
		md.Digest[:], timestamp(), h.id,
	)
	if err != nil {
		return fmt.Errorf("update metadata %s: %w", h.path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrDeleted, h.path)
	}
	return nil
}

func (h *sqliteHandle) Metadata(ctx context.Context) (*Metadata, error) {
	var raw []byte
	err := h.store.db.GetContext(ctx, &raw, `SELECT digest FROM files WHERE id = ?`, h.id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDeleted, h.path)
	} else if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", h.path, err)
	}

	if raw == nil {
		return nil, nil
	}
	d, err := digest.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", h.path, err)
	}
	return &Metadata{Digest: d}, nil
}

func (h *sqliteHandle) Size(ctx context.Context) (int64, error) {
	var size int64
	err := h.store.db.GetContext(ctx, &size, `SELECT size FROM files WHERE id = ?`, h.id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrDeleted, h.path)
	} else if err != nil {
		return 0, fmt.Errorf("size %s: %w", h.path, err)
	}
	return size, nil
}

func (h *sqliteHandle) Contents(ctx context.Context) (io.ReadCloser, error) {
	if _, err := h.Size(ctx); err != nil {
		return nil, err
	}
	return &blockReader{ctx: ctx, db: h.store.db, fileID: h.id, lastSeq: -1}, nil
}

func (h *sqliteHandle) sizeTx(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	var size int64
	err := tx.GetContext(ctx, &size, `SELECT size FROM files WHERE id = ?`, h.id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrDeleted, h.path)
	} else if err != nil {
		return 0, fmt.Errorf("%s: %w", h.path, err)
	}
	return size, nil
}

// ===================================================================================================

// blockReader fetches one block per query so no cursor stays open between reads
type blockReader struct {
	ctx     context.Context
	db      *sqlx.DB
	fileID  int64
	lastSeq int64
	buf     []byte
	done    bool
}

func (r *blockReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.next(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *blockReader) next() error {
	var block struct {
		Seq  int64  `db:"seq"`
		Data []byte `db:"data"`
	}
	err := r.db.GetContext(r.ctx, &block,
		`SELECT seq, data FROM file_blocks WHERE file_id = ? AND seq > ? ORDER BY seq LIMIT 1`,
		r.fileID, r.lastSeq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		r.done = true
		return nil
	} else if err != nil {
		return fmt.Errorf("read block: %w", err)
	}

	r.lastSeq = block.Seq
	r.buf = block.Data
	return nil
}

func (r *blockReader) Close() error {
	r.done = true
	r.buf = nil
	return nil
}
