package dataset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/observability"
	"github.com/geoglim/clipserver/internal/registry"
)

// LoadFunc loads one dataset from its registry spec. Injectable for tests.
type LoadFunc func(ctx context.Context, spec registry.Spec) (*Dataset, error)

// Cache holds loaded datasets for the process lifetime. The first Get per
// name performs the load; concurrent first callers share a single load via
// singleflight. A failed load is returned but never cached, so a later
// request retries it. There is no eviction and no refresh.
type Cache struct {
	reg  *registry.Registry
	load LoadFunc
	log  *slog.Logger

	mu   sync.RWMutex
	data map[model.DatasetName]*Dataset
	sf   singleflight.Group
}

// NewCache builds the cache; a nil load falls back to the format-dispatching
// default loader.
func NewCache(reg *registry.Registry, load LoadFunc, log *slog.Logger) *Cache {
	if load == nil {
		load = Load
	}
	return &Cache{
		reg:  reg,
		load: load,
		log:  log,
		data: make(map[model.DatasetName]*Dataset),
	}
}

// Get returns the loaded dataset, loading it on first use.
func (c *Cache) Get(ctx context.Context, name model.DatasetName) (*Dataset, error) {
	c.mu.RLock()
	d := c.data[name]
	c.mu.RUnlock()
	if d != nil {
		return d, nil
	}

	v, err, _ := c.sf.Do(string(name), func() (any, error) {
		// A waiter may arrive after the load that satisfied its flight
		// completed; the map is authoritative.
		c.mu.RLock()
		cached := c.data[name]
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		spec, ok := c.reg.Lookup(name)
		if !ok {
			return nil, model.E(model.KindDatasetUnavailable, "dataset %s is not registered", name)
		}

		start := time.Now()
		loaded, err := c.load(ctx, spec)
		if err != nil {
			return nil, err
		}
		observability.ObserveDatasetLoad(string(name), time.Since(start).Seconds())
		c.log.Info("dataset loaded",
			"dataset", string(name),
			"features", loaded.FeatureCount(),
			"crs", loaded.CRS.String(),
			"elapsed", time.Since(start).String())

		c.mu.Lock()
		c.data[name] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// Peek returns a resident dataset without triggering a load.
func (c *Cache) Peek(name model.DatasetName) (*Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := c.data[name]
	return d, d != nil
}

// Loaded reports whether a dataset is already resident, without loading.
func (c *Cache) Loaded(name model.DatasetName) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[name] != nil
}
