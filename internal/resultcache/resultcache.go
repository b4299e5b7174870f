// Package resultcache memoizes serialized clip responses. Repeat uploads of
// the same AOI for the same dataset and format are common from UI retries,
// and the overlay is by far the most expensive step.
package resultcache

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/geoglim/clipserver/internal/observability"
)

// Entry is one cached response, ready to stream.
type Entry struct {
	Body         []byte
	Filename     string
	MediaType    string
	FeatureCount int
}

// Cache is a bounded LRU over serialized responses. Bodies larger than
// maxBytes are never admitted so a handful of continent-sized clips cannot
// pin the whole budget.
type Cache struct {
	lru      *lru.Cache[uint64, Entry]
	maxBytes int64
}

func New(size int, maxBytes int64) (*Cache, error) {
	l, err := lru.New[uint64, Entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, maxBytes: maxBytes}, nil
}

// Key digests the request identity: dataset, output format and the exact
// upload bytes.
func Key(dataset, format string, payload []byte) uint64 {
	h := xxhash.New()
	h.WriteString(dataset)
	h.WriteString("|")
	h.WriteString(format)
	h.WriteString("|")
	h.Write(payload)
	return h.Sum64()
}

func (c *Cache) Get(key uint64) (Entry, bool) {
	e, ok := c.lru.Get(key)
	if ok {
		observability.ResultCache("hit")
	} else {
		observability.ResultCache("miss")
	}
	return e, ok
}

func (c *Cache) Put(key uint64, e Entry) {
	if int64(len(e.Body)) > c.maxBytes {
		observability.ResultCache("too_large")
		return
	}
	c.lru.Add(key, e)
	observability.ResultCache("store")
}

// Len reports resident entries, for the health payload and tests.
func (c *Cache) Len() int { return c.lru.Len() }
