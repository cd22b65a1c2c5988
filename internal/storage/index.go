package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// IndexStore is a JSON-array-backed record store for one index file.
// Every operation re-reads the file, mutates in memory and rewrites the
// whole file; nothing is cached between calls.
type IndexStore[T any] struct {
	store Provider
	path  string
	key   func(T) string
}

// NewIndexStore creates an IndexStore for the index at path keyed by key.
func NewIndexStore[T any](store Provider, path string, key func(T) string) *IndexStore[T] {
	return &IndexStore[T]{store: store, path: path, key: key}
}

// Path returns the root-relative path of the index file.
func (s *IndexStore[T]) Path() string {
	return s.path
}

// Load returns every record of the index. A missing or unparsable file
// yields an empty slice; callers cannot tell the two apart.
func (s *IndexStore[T]) Load() []T {
	recs, err := s.read()
	if err != nil {
		return []T{}
	}
	return recs
}

// Upsert replaces the first record whose key equals key with rec, or
// appends rec when there is none.
func (s *IndexStore[T]) Upsert(key string, rec T) error {
	recs := s.Load()
	if i := s.find(recs, key); i >= 0 {
		recs[i] = rec
	} else {
		recs = append(recs, rec)
	}
	return s.write(recs)
}

// Merge copies the JSON fields named in fields from rec onto the first
// record whose key equals key. Stored fields not named are left untouched,
// and named fields overwrite even when empty. With no match rec is
// appended whole.
func (s *IndexStore[T]) Merge(key string, rec T, fields []string) error {
	recs := s.Load()
	i := s.find(recs, key)
	if i < 0 {
		return s.write(append(recs, rec))
	}
	merged, err := mergeRecord(recs[i], rec, fields)
	if err != nil {
		return fmt.Errorf("storage: merge %s: %w", s.path, err)
	}
	recs[i] = merged
	return s.write(recs)
}

func (s *IndexStore[T]) find(recs []T, key string) int {
	for i, r := range recs {
		if s.key(r) == key {
			return i
		}
	}
	return -1
}

// Remove drops every record whose key equals key and reports whether
// anything was removed. The file is only rewritten when it changed.
// A missing index reports false; an unparsable one is an error.
func (s *IndexStore[T]) Remove(key string) (bool, error) {
	recs, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	kept := make([]T, 0, len(recs))
	for _, r := range recs {
		if s.key(r) != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recs) {
		return false, nil
	}
	if err := s.write(kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *IndexStore[T]) read() ([]T, error) {
	data, err := s.store.Read(s.path)
	if err != nil {
		return nil, err
	}
	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", s.path, err)
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

func (s *IndexStore[T]) write(recs []T) error {
	data, err := encodeIndex(recs)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", s.path, err)
	}
	return s.store.Write(s.path, data)
}

// encodeIndex renders recs as a 2-space indented JSON array without HTML
// escaping or a trailing newline.
func encodeIndex[T any](recs []T) ([]byte, error) {
	if recs == nil {
		recs = []T{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// mergeRecord overlays the named JSON fields of next onto base.
func mergeRecord[T any](base, next T, names []string) (T, error) {
	var out T
	baseFields, err := fields(base)
	if err != nil {
		return out, err
	}
	nextFields, err := fields(next)
	if err != nil {
		return out, err
	}
	for _, k := range names {
		if v, ok := nextFields[k]; ok {
			baseFields[k] = v
		} else {
			delete(baseFields, k)
		}
	}
	data, err := json.Marshal(baseFields)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func fields(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
