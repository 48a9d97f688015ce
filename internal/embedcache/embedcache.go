// Package embedcache is a content-addressed cache for embedding vectors,
// backed by a local modernc.org/sqlite database. It sits in front of the
// LLM gateway's Embed call so repeated runs over the same text/model pair
// never re-pay for an embedding call; it is not part of the on-disk
// resume-boundary contract and is invisible to the planner's RUN/SKIP
// decisions.
package embedcache

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"
)

// Cache wraps a single sqlite database file.
type Cache struct {
	db *sql.DB
}

// Open creates (if needed) and opens the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("embedcache: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		key TEXT PRIMARY KEY,
		vector BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("embedcache: migrate %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the content-addressed cache key for text embedded with model.
func Key(text, model string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for key, or ok=false on a miss.
func (c *Cache) Get(key string) (vector []float64, ok bool, err error) {
	var blob []byte
	err = c.db.QueryRow("SELECT vector FROM embeddings WHERE key = ?", key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("embedcache: get %s: %w", key, err)
	}
	return decodeVector(blob), true, nil
}

// Put stores vector under key, overwriting any prior value.
func (c *Cache) Put(key string, vector []float64) error {
	_, err := c.db.Exec("INSERT OR REPLACE INTO embeddings (key, vector) VALUES (?, ?)", key, encodeVector(vector))
	if err != nil {
		return fmt.Errorf("embedcache: put %s: %w", key, err)
	}
	return nil
}

func encodeVector(v []float64) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func decodeVector(blob []byte) []float64 {
	v := make([]float64, len(blob)/8)
	_ = binary.Read(bytes.NewReader(blob), binary.LittleEndian, &v)
	return v
}
