// Package catalog loads node schemas from the backend, caches them and
// searches them the way the editor's node picker does.
package catalog

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/schema"
)

// DefaultTTL is how long a loaded catalog is reused.
const DefaultTTL = 5 * time.Minute

const schemasKey = "object_info"

// Loader fetches the raw node descriptions.
type Loader interface {
	ObjectInfo(ctx context.Context) (schema.RawObjectInfoMap, error)
}

// Catalog is a read-through cache in front of a Loader.
type Catalog struct {
	loader Loader
	cache  *gocache.Cache
	ttl    time.Duration
}

// New creates a catalog. A non-positive ttl selects DefaultTTL.
func New(loader Loader, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Catalog{
		loader: loader,
		cache:  gocache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// Schemas returns the normalized schemas, loading them when the cached copy
// is missing or expired.
func (c *Catalog) Schemas(ctx context.Context) (schema.Map, error) {
	logger := ctxlog.FromContext(ctx)
	if cached, found := c.cache.Get(schemasKey); found {
		if m, ok := cached.(schema.Map); ok {
			logger.Debug("cache hit", "key", schemasKey)
			return m, nil
		}
		logger.Error("wrong type assertion when getting value", "key", schemasKey)
	}

	raw, err := c.loader.ObjectInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading node catalog: %w", err)
	}
	m := schema.Normalize(raw)
	c.cache.Set(schemasKey, m, c.ttl)
	logger.Info("Loaded node catalog", "node_types", len(m))
	return m, nil
}

// Entries returns the catalog sorted for display.
func (c *Catalog) Entries(ctx context.Context) ([]schema.CatalogEntry, error) {
	m, err := c.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	return schema.BuildCatalog(m), nil
}

// Invalidate drops the cached schemas so the next call reloads them.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
