package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mindmorass/spiegel/internal/clipboard"
	"github.com/mindmorass/spiegel/internal/events"
)

// NewRecord is everything the caller supplies for an insert
type NewRecord struct {
	Capture  clipboard.Capture
	Category string
	Summary  *string
	Tags     []string
}

// Record is a stored capture. Tags is nil when none were stored, which is
// distinct from an empty list.
type Record struct {
	ID        int64
	Capture   clipboard.Capture
	Category  string
	Summary   *string
	Tags      []string
	CreatedAt time.Time
}

// Create inserts a record; id and created_at are assigned here
func (s *Store) Create(ctx context.Context, r NewRecord) (Record, error) {
	clip, err := EncodeCapture(r.Capture)
	if err != nil {
		return Record{}, err
	}

	tags, err := tagsColumn(r.Tags)
	if err != nil {
		return Record{}, err
	}

	created := s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clips (clip, category, summary, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(clip), r.Category, toNullString(r.Summary), tags, created.UnixMilli(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert clip: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("insert clip: %w", err)
	}

	return Record{
		ID:        id,
		Capture:   r.Capture,
		Category:  r.Category,
		Summary:   r.Summary,
		Tags:      r.Tags,
		CreatedAt: created,
	}, nil
}

// List returns every record, newest first
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, clip, category, summary, tags, created_at FROM clips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	return out, nil
}

// Get returns one record
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, clip, category, summary, tags, created_at FROM clips WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return r, err
}

// Delete removes a record and announces it
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	s.emitter.Emit(events.Event{Kind: events.KindDeleted, RecordID: id})
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r       Record
		clip    string
		summary sql.NullString
		tags    sql.NullString
		created int64
	)

	if err := row.Scan(&r.ID, &clip, &r.Category, &summary, &tags, &created); err != nil {
		return Record{}, err
	}

	c, err := DecodeCapture([]byte(clip))
	if err != nil {
		return Record{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	r.Capture = c
	r.Summary = fromNullString(summary)
	r.CreatedAt = time.UnixMilli(created).UTC()

	if tags.Valid {
		r.Tags = []string{}
		if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
			return Record{}, fmt.Errorf("record %d tags: %w", r.ID, err)
		}
	}

	return r, nil
}

// tagsColumn keeps nil as NULL and an empty list as "[]"
func tagsColumn(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
