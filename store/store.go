// Package store keeps an index of captured waveforms on disk, so a
// long-running server can answer "what did we capture and where is
// the file" without rescanning the data directory.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    INTEGER NOT NULL,
	points     INTEGER NOT NULL,
	dt         REAL    NOT NULL,
	path       TEXT    NOT NULL,
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS captures_channel ON captures(channel);
`

// Capture is one indexed waveform file.
type Capture struct {
	ID      int64
	Channel int

	// Points is the record length
	Points int

	// DT is the sample spacing in seconds
	DT float64

	// Path is where the CSV lives on disk
	Path string

	CreatedAt time.Time
}

// Index is a sqlite-backed capture index.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index at path.  Use ":memory:" for an
// ephemeral index.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Record inserts a capture and returns its assigned ID.
func (idx *Index) Record(c Capture) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := idx.db.Exec(
		`INSERT INTO captures (channel, points, dt, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Channel, c.Points, c.DT, c.Path, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Get returns the capture with the given ID.
func (idx *Index) Get(id int64) (Capture, error) {
	row := idx.db.QueryRow(
		`SELECT id, channel, points, dt, path, created_at FROM captures WHERE id = ?`, id)
	return scanCapture(row)
}

// Recent returns up to limit captures, newest first.
func (idx *Index) Recent(limit int) ([]Capture, error) {
	rows, err := idx.db.Query(
		`SELECT id, channel, points, dt, path, created_at FROM captures ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ByChannel returns up to limit captures from one channel, newest first.
func (idx *Index) ByChannel(ch, limit int) ([]Capture, error) {
	rows, err := idx.db.Query(
		`SELECT id, channel, points, dt, path, created_at FROM captures WHERE channel = ? ORDER BY id DESC LIMIT ?`,
		ch, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Delete removes a capture record.  The file on disk is untouched.
func (idx *Index) Delete(id int64) error {
	res, err := idx.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: no capture with id %d", id)
	}
	return nil
}

type scanner interface {
	Scan(dst ...interface{}) error
}

func scanCapture(s scanner) (Capture, error) {
	var c Capture
	var created string
	err := s.Scan(&c.ID, &c.Channel, &c.Points, &c.DT, &c.Path, &created)
	if err != nil {
		return c, err
	}
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	return c, err
}

func collect(rows *sql.Rows) ([]Capture, error) {
	var out []Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
