package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry kinds.
const (
	KindBlog      = "blog"
	KindPortfolio = "portfolio"
)

// BlogKey and PortfolioKey build mirror keys from the JSON index keys.
func BlogKey(slug string) string     { return KindBlog + ":" + slug }
func PortfolioKey(url string) string { return KindPortfolio + ":" + url }

// EntryRow is one mirrored blog post or portfolio item. Ref is the slug or
// URL the entry is keyed by in its JSON index.
type EntryRow struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Ref       string    `json:"ref"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Date      string    `json:"date,omitempty"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Ref     string `json:"ref"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// TagCount is a tag with the number of entries carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// UpsertEntry inserts or replaces an entry, its tags and its FTS row in a
// transaction. keywords are extra search terms that are not tag links.
func (db *DB) UpsertEntry(e EntryRow, body string, keywords []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if e.Tags == nil {
		e.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(e.Tags)

	_, err = tx.Exec(`
		INSERT INTO entries (key, kind, ref, title, summary, date, tags, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind       = excluded.kind,
			ref        = excluded.ref,
			title      = excluded.title,
			summary    = excluded.summary,
			date       = excluded.date,
			tags       = excluded.tags,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, e.Key, e.Kind, e.Ref, e.Title, e.Summary, e.Date, string(tagsJSON), body, e.Checksum, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	if err := ftsUpsert(tx, e.Key, e.Title, body, append(append([]string{}, e.Tags...), keywords...)); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM entry_tags WHERE key = ?`, e.Key)
	if len(e.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO entry_tags (key, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range e.Tags {
			if _, err := stmt.Exec(e.Key, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteEntry removes an entry, its tags and its FTS row.
func (db *DB) DeleteEntry(key string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, key)
	_, _ = tx.Exec(`DELETE FROM entry_tags WHERE key = ?`, key)
	_, _ = tx.Exec(`DELETE FROM entries WHERE key = ?`, key)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for an entry, or "" if absent.
func (db *DB) GetChecksum(key string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE key = ?`, key).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetEntry returns one entry, or nil if it is not indexed.
func (db *DB) GetEntry(key string) (*EntryRow, error) {
	row := db.conn.QueryRow(`
		SELECT key, kind, ref, title, summary, date, tags, checksum, updated_at
		FROM entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entry: %w", err)
	}
	return e, nil
}

// AllChecksums returns key → checksum for every indexed entry.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT key, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, cs string
		if err := rows.Scan(&k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

// Tags returns every tag with its entry count across blog and portfolio,
// most used first.
func (db *DB) Tags() ([]TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT tag, count(*) AS n
		FROM entry_tags
		GROUP BY tag
		ORDER BY n DESC, tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	out := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ByTag returns the entries carrying tag, newest date first.
func (db *DB) ByTag(tag string) ([]EntryRow, error) {
	rows, err := db.conn.Query(`
		SELECT e.key, e.kind, e.ref, e.title, e.summary, e.date, e.tags, e.checksum, e.updated_at
		FROM entries e
		JOIN entry_tags t ON t.key = e.key
		WHERE t.tag = ?
		ORDER BY e.date DESC, e.key ASC`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: by tag: %w", err)
	}
	defer rows.Close()

	out := []EntryRow{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*EntryRow, error) {
	var e EntryRow
	var tagsJSON string
	if err := s.Scan(&e.Key, &e.Kind, &e.Ref, &e.Title, &e.Summary, &e.Date, &tagsJSON, &e.Checksum, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil || e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}
