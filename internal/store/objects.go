package store

import (
	"bytes"
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"filedrop/internal/objectstore"
)

const timeLayout = time.RFC3339Nano

var _ objectstore.Store = (*Store)(nil)
var _ objectstore.StatsReader = (*Store)(nil)

// SetClock overrides the timestamp source for new objects.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Put inserts or replaces the object at key together with its metadata.
func (s *Store) Put(ctx context.Context, key string, data []byte, opts objectstore.PutOptions) (objectstore.ObjectInfo, error) {
	var zero objectstore.ObjectInfo
	if err := objectstore.ValidateKey(key); err != nil {
		return zero, err
	}

	sum := md5.Sum(data)
	info := objectstore.ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: opts.ContentType,
		Uploaded:    s.now().UTC(),
	}
	if len(opts.Metadata) > 0 {
		info.Metadata = make(objectstore.Metadata, len(opts.Metadata))
		for k, v := range opts.Metadata {
			info.Metadata[k] = v
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO objects (key, body, size, etag, content_type, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, size = excluded.size, etag = excluded.etag,
		   content_type = excluded.content_type, created_at = excluded.created_at`,
		key, data, info.Size, info.ETag, nullIfEmpty(info.ContentType), formatTime(info.Uploaded),
	)
	if err != nil {
		return zero, fmt.Errorf("put %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM object_metadata WHERE object_key = ?`, key); err != nil {
		return zero, fmt.Errorf("clear metadata %q: %w", key, err)
	}
	for name, value := range info.Metadata {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO object_metadata (object_key, name, value) VALUES (?, ?, ?)`,
			key, name, value,
		); err != nil {
			return zero, fmt.Errorf("put metadata %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return info, nil
}

// Get loads the object payload and attributes.
func (s *Store) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, body, size, etag, content_type, created_at FROM objects WHERE key = ?`, key)

	var body []byte
	info, err := scanObjectInfo(row, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %q: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if info.Metadata, err = s.loadMetadata(ctx, key); err != nil {
		return nil, err
	}
	return &objectstore.Object{ObjectInfo: info, Body: io.NopCloser(bytes.NewReader(body))}, nil
}

// Head loads attributes without the payload.
func (s *Store) Head(ctx context.Context, key string) (*objectstore.ObjectInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, size, etag, content_type, created_at FROM objects WHERE key = ?`, key)

	info, err := scanObjectInfo(row, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("head %q: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("head %q: %w", key, err)
	}
	if info.Metadata, err = s.loadMetadata(ctx, key); err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns every object ordered by key, including metadata.
func (s *Store) List(ctx context.Context) ([]objectstore.ObjectInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, size, etag, content_type, created_at FROM objects ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []objectstore.ObjectInfo{}
	index := map[string]int{}
	for rows.Next() {
		info, err := scanObjectInfo(rows, nil)
		if err != nil {
			return nil, err
		}
		index[info.Key] = len(out)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	metaRows, err := s.db.QueryContext(ctx, `SELECT object_key, name, value FROM object_metadata`)
	if err != nil {
		return nil, err
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var key, name, value string
		if err := metaRows.Scan(&key, &name, &value); err != nil {
			return nil, err
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		if out[i].Metadata == nil {
			out[i].Metadata = objectstore.Metadata{}
		}
		out[i].Metadata[name] = value
	}
	return out, metaRows.Err()
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit so a recycled connection without foreign_keys still cleans up.
	if _, err := tx.ExecContext(ctx, `DELETE FROM object_metadata WHERE object_key = ?`, key); err != nil {
		return fmt.Errorf("delete metadata %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return tx.Commit()
}

// Stats totals objects with a single aggregate query.
func (s *Store) Stats(ctx context.Context) (objectstore.Stats, error) {
	var out objectstore.Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM objects`).Scan(&out.Objects, &out.Bytes)
	return out, err
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	return currentVersion(s.db)
}

func (s *Store) loadMetadata(ctx context.Context, key string) (objectstore.Metadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM object_metadata WHERE object_key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meta objectstore.Metadata
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		if meta == nil {
			meta = objectstore.Metadata{}
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanObjectInfo scans key, [body,] size, etag, content_type, created_at.
func scanObjectInfo(row rowScanner, body *[]byte) (objectstore.ObjectInfo, error) {
	var (
		info        objectstore.ObjectInfo
		contentType sql.NullString
		createdAt   string
	)
	dest := []any{&info.Key}
	if body != nil {
		dest = append(dest, body)
	}
	dest = append(dest, &info.Size, &info.ETag, &contentType, &createdAt)
	if err := row.Scan(dest...); err != nil {
		return info, err
	}
	if contentType.Valid {
		info.ContentType = contentType.String
	}
	uploaded, err := parseTime(createdAt)
	if err != nil {
		return info, err
	}
	info.Uploaded = uploaded
	return info, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, value)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
