package index

// ContentIndex is the query and mutation surface of the mirror.
type ContentIndex interface {
	UpsertEntry(e EntryRow, body string, keywords []string) error
	DeleteEntry(key string) error
	GetChecksum(key string) (string, error)
	GetEntry(key string) (*EntryRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Tags() ([]TagCount, error)
	ByTag(tag string) ([]EntryRow, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ ContentIndex = (*DB)(nil)
