package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/common/kv"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/domain"
)

type fakeLoader struct {
	cat   domain.Catalog
	err   error
	calls int
}

func (f *fakeLoader) LoadCatalog(context.Context) (domain.Catalog, error) {
	f.calls++
	return f.cat, f.err
}

func sampleCatalog() domain.Catalog {
	return domain.Catalog{
		Products: []domain.Product{
			{ID: "p1", Name: "Latte", CategoryID: "c1", Price: decimal.NewFromInt(25000)},
			{ID: "p2", Name: "Croissant", CategoryID: "c2", Price: decimal.NewFromInt(18000)},
		},
		Categories:     []domain.Category{{ID: "c1", Name: "Drinks"}, {ID: "c2", Name: "Bakery"}},
		OrderTypes:     []domain.OrderType{domain.OrderTypeDineIn, domain.OrderTypeTakeaway},
		TaxRatePercent: decimal.NewFromInt(10),
		LoadedAt:       time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
	}
}

func TestCacheLoadsOnce(t *testing.T) {
	l := &fakeLoader{cat: sampleCatalog()}
	c := NewCache(l, nil, logger.NewNop())

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 1, l.calls)

	p, ok := c.Product("p2")
	require.True(t, ok)
	assert.Equal(t, "Croissant", p.Name)
	_, ok = c.Product("nope")
	assert.False(t, ok)

	assert.Len(t, c.Products(), 2)
	assert.Len(t, c.Categories(), 2)
	assert.True(t, c.TaxRatePercent().Equal(decimal.NewFromInt(10)))
	assert.True(t, c.HasOrderType(domain.OrderTypeDineIn))
	assert.False(t, c.HasOrderType(domain.OrderTypePickup))

	require.NoError(t, c.Reload(context.Background()))
	assert.Equal(t, 2, l.calls)
}

func TestCacheLoadFailsWithoutSnapshot(t *testing.T) {
	c := NewCache(&fakeLoader{err: errors.New("connection refused")}, nil, logger.NewNop())
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.CodeRemoteUnavailable, domain.CodeOf(err))
	assert.False(t, c.Loaded())
}

func TestCacheFallsBackToSnapshot(t *testing.T) {
	store, err := kv.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	l := &fakeLoader{cat: sampleCatalog()}
	warm := NewCache(l, store, logger.NewNop())
	require.NoError(t, warm.Load(context.Background()))

	cold := NewCache(&fakeLoader{err: errors.New("down")}, store, logger.NewNop())
	require.NoError(t, cold.Load(context.Background()))
	p, ok := cold.Product("p1")
	require.True(t, ok)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(25000)))
	assert.True(t, cold.TaxRatePercent().Equal(decimal.NewFromInt(10)))
}

func TestHasOrderTypeEmptyListAllowsKnownTypes(t *testing.T) {
	cat := sampleCatalog()
	cat.OrderTypes = nil
	c := NewCache(&fakeLoader{cat: cat}, nil, logger.NewNop())
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.HasOrderType(domain.OrderTypePickup))
	assert.False(t, c.HasOrderType(domain.OrderType("delivery")))
}
