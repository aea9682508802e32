package stratum

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jward/stratum/internal/metadata"
	"github.com/jward/stratum/internal/store"
)

const defaultCacheSize = 4096

type entryKey struct {
	fqName string
	kind   metadata.EntryKind
}

// entryCache serves metadata entries from the store. Entries are shared
// by every session of an Engine; concurrent misses for the same entry
// read the store once. Absent entries are cached too.
type entryCache struct {
	store *store.Store
	cache *lru.Cache[entryKey, *metadata.Entry]
	group singleflight.Group
}

func newEntryCache(s *store.Store, size int) (*entryCache, error) {
	if size < 1 {
		size = defaultCacheSize
	}
	cache, err := lru.New[entryKey, *metadata.Entry](size)
	if err != nil {
		return nil, fmt.Errorf("entry cache: %w", err)
	}
	return &entryCache{store: s, cache: cache}, nil
}

// Entry implements deserialize.EntrySource.
func (c *entryCache) Entry(fqName string, kind metadata.EntryKind) (*metadata.Entry, error) {
	key := entryKey{fqName: fqName, kind: kind}
	if e, ok := c.cache.Get(key); ok {
		return e, nil
	}
	v, err, _ := c.group.Do(kind.String()+":"+fqName, func() (any, error) {
		e, err := c.store.Entry(fqName, kind)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata.Entry), nil
}

func (c *entryCache) purge() {
	c.cache.Purge()
}

func (c *entryCache) len() int {
	return c.cache.Len()
}
