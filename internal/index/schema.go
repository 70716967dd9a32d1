// Package index implements the faceted event index each source directory
// holds: a SQLite file with snappy-compressed stored fields, a typed term
// table for range, term and selection filters, and a murmur3 bloom filter
// over Hash values.
package index

import "path/filepath"

// FileName is the index file inside a source directory.
const FileName = "events.index"

// formatVersion is written to the meta table and checked on open.
const formatVersion = "1"

// Meta keys.
const (
	metaFormat    = "format"
	metaHashBloom = "hash_bloom"
)

// indexDDL creates the index tables. Terms carry a numeric copy of the value
// for Int and Float fields so ranges compare numerically.
const indexDDL = `
CREATE TABLE IF NOT EXISTS documents (
    doc_id INTEGER PRIMARY KEY,
    stored BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS terms (
    field  TEXT NOT NULL,
    value  TEXT NOT NULL,
    num    NUMERIC,
    doc_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_terms_value ON terms(field, value, doc_id);
CREATE INDEX IF NOT EXISTS idx_terms_num ON terms(field, num, doc_id);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value BLOB
) WITHOUT ROWID;
`

// Path returns the index file path for a source directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}
