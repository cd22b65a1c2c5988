//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			key UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, key, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM entries_fts WHERE key = ?`, key)
	_, err := tx.Exec(`INSERT INTO entries_fts (key, title, body, tags) VALUES (?, ?, ?, ?)`,
		key, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, key string) {
	_, _ = tx.Exec(`DELETE FROM entries_fts WHERE key = ?`, key)
}

// Search performs an FTS5 full-text search and returns matching entries
// with highlighted snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.key,
		       e.kind,
		       e.ref,
		       e.title,
		       snippet(entries_fts, 2, '<b>', '</b>', '...', 64)
		FROM entries_fts f
		JOIN entries e ON e.key = f.key
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Kind, &r.Ref, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
