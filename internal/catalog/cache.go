package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/domain"
)

const snapshotKey = "catalog/latest"

type Loader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// Snapshots persists the last good catalog. kv.Store satisfies it.
type Snapshots interface {
	Put(key string, v any) error
	Get(key string, v any) (bool, error)
}

// Cache holds the catalog loaded once per session.
type Cache struct {
	loader    Loader
	snapshots Snapshots // optional
	lg        *logger.Logger

	mu       sync.RWMutex
	loaded   bool
	catalog  domain.Catalog
	products map[string]domain.Product
}

func NewCache(loader Loader, snapshots Snapshots, lg *logger.Logger) *Cache {
	return &Cache{loader: loader, snapshots: snapshots, lg: lg}
}

// Load fetches the catalog on the first call only.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload(ctx)
}

// Reload always asks the loader. On failure it falls back to the last
// snapshot, and keeps whatever is already cached if there is none.
func (c *Cache) Reload(ctx context.Context) error {
	cat, err := c.loader.LoadCatalog(ctx)
	if err != nil {
		var snap domain.Catalog
		found := false
		if c.snapshots != nil {
			var serr error
			found, serr = c.snapshots.Get(snapshotKey, &snap)
			if serr != nil {
				c.lg.Error("catalog_snapshot_read_failed", serr, nil)
			}
		}
		if !found {
			return domain.Wrap(domain.CodeRemoteUnavailable, "load catalog", err)
		}
		c.lg.Warn("catalog_snapshot_fallback", err, map[string]any{"loaded_at": snap.LoadedAt})
		c.set(snap)
		return nil
	}
	if c.snapshots != nil {
		if err := c.snapshots.Put(snapshotKey, cat); err != nil {
			c.lg.Error("catalog_snapshot_write_failed", err, nil)
		}
	}
	c.lg.Info("catalog_loaded", map[string]any{"products": len(cat.Products), "categories": len(cat.Categories)})
	c.set(cat)
	return nil
}

func (c *Cache) set(cat domain.Catalog) {
	idx := make(map[string]domain.Product, len(cat.Products))
	for _, p := range cat.Products {
		idx[p.ID] = p
	}
	c.mu.Lock()
	c.catalog = cat
	c.products = idx
	c.loaded = true
	c.mu.Unlock()
}

func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) Product(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

func (c *Cache) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Product(nil), c.catalog.Products...)
}

func (c *Cache) Categories() []domain.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Category(nil), c.catalog.Categories...)
}

func (c *Cache) OrderTypes() []domain.OrderType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.OrderType(nil), c.catalog.OrderTypes...)
}

// HasOrderType reports whether t is offered; an empty list offers every known type.
func (c *Cache) HasOrderType(t domain.OrderType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.catalog.OrderTypes) == 0 {
		return t.Valid()
	}
	for _, ot := range c.catalog.OrderTypes {
		if ot == t {
			return true
		}
	}
	return false
}

func (c *Cache) TaxRatePercent() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog.TaxRatePercent
}
