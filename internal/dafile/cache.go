package dafile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// cachedEntry is the JSON-serializable subset of Container/DAEntry worth
// remembering across invocations: entry metadata, not the region bytes
// (those still come from the DA file itself on every run).
type cachedEntry struct {
	Dialect   Dialect `json:"dialect"`
	HWCode    uint16  `json:"hw_code"`
	HWSubCode uint16  `json:"hw_sub_code"`
}

type cachedContainer struct {
	Dialect Dialect       `json:"dialect"`
	Entries []cachedEntry `json:"entries"`
}

// Cache is an on-disk bbolt store keyed by DA-file content hash, grounded
// on the teacher's checkpoint.Checkpointer (pipeline/1_DATA_MINER/internal/checkpoint),
// recording each known vendor DA file's dialect and entry metadata. A hit
// does not skip parsing: ParseCached still parses the whole container.
type Cache struct {
	db *bbolt.DB
}

var cacheBucket = []byte("DAContainers")

// OpenCache opens (creating if absent) a bbolt-backed cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open DA container cache: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create DA container cache bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// ContentKey hashes a DA file's raw bytes into a cache key.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached dialect/entry metadata for a content key, if
// present. The caller still holds the raw file and re-parses region
// bytes directly from it; classification is not skipped either, since
// hydrateFromCache runs the full Parse before applying the cached dialects.
func (c *Cache) Lookup(key string) (*cachedContainer, bool) {
	var cc cachedContainer
	found := false
	c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &cc); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return nil, false
	}
	return &cc, true
}

// Store records a parsed container's classification under its content key.
func (c *Cache) Store(key string, container *Container) error {
	cc := cachedContainer{Dialect: container.Dialect}
	for _, e := range container.Entries {
		cc.Entries = append(cc.Entries, cachedEntry{
			Dialect:   e.Dialect,
			HWCode:    e.HWCode,
			HWSubCode: e.HWSubCode,
		})
	}
	data, err := json.Marshal(cc)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		return b.Put([]byte(key), data)
	})
}

// ParseCached parses data and records its classification in cache; on a
// cache hit the container is still parsed in full and the cached dialects
// replace the parsed ones. Either way it returns a fully-populated
// Container backed by data's region bytes.
func ParseCached(cache *Cache, data []byte) (*Container, error) {
	key := ContentKey(data)
	if cache != nil {
		if cc, ok := cache.Lookup(key); ok {
			return hydrateFromCache(data, cc)
		}
	}
	container, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		_ = cache.Store(key, container)
	}
	return container, nil
}

// hydrateFromCache runs the full Parse on the raw file, then overwrites
// the container and per-entry dialects with the cached ones.
func hydrateFromCache(data []byte, cc *cachedContainer) (*Container, error) {
	full, err := Parse(data)
	if err != nil {
		return nil, err
	}
	full.Dialect = cc.Dialect
	for i := range full.Entries {
		if i < len(cc.Entries) {
			full.Entries[i].Dialect = cc.Entries[i].Dialect
		}
	}
	return full, nil
}
