package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/model"
	"github.com/sells-group/silver-economy/internal/region"
)

// Provider hands out the normalized snapshot views are computed from.
type Provider interface {
	// Snapshot returns the current snapshot, loading it on first use.
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	// Reload reads the source again and replaces the snapshot.
	Reload(ctx context.Context) (*model.Snapshot, error)
}

// NewSnapshot normalizes a loaded dataset into an immutable snapshot.
func NewSnapshot(ds *model.Dataset, loadedAt time.Time) *model.Snapshot {
	records, stats := region.Normalize(ds.Records)
	return &model.Snapshot{
		ID:       uuid.NewString(),
		Source:   ds.Source,
		LoadedAt: loadedAt,
		HasGeo:   ds.HasGeo,
		Stats: model.LoadStats{
			RowsRead:          len(ds.Records),
			DroppedNonNumeric: stats.NonNumeric,
			DroppedUnmapped:   stats.Unmapped,
		},
		Records: records,
	}
}

// Cache loads one source once and shares the snapshot until Reload.
// It is safe for concurrent use.
type Cache struct {
	loader *Loader
	source string

	loadMu sync.Mutex
	snap   atomic.Pointer[model.Snapshot]
}

// NewCache creates a Cache for source.
func NewCache(loader *Loader, source string) *Cache {
	return &Cache{loader: loader, source: source}
}

// Source returns the identity of the cached source.
func (c *Cache) Source() string { return c.source }

// Snapshot returns the cached snapshot, loading it if needed.
func (c *Cache) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	if s := c.snap.Load(); s != nil {
		return s, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if s := c.snap.Load(); s != nil {
		return s, nil
	}
	return c.load(ctx)
}

// Reload replaces the snapshot. On failure the previous snapshot stays in
// place and the error is returned.
func (c *Cache) Reload(ctx context.Context) (*model.Snapshot, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.load(ctx)
}

func (c *Cache) load(ctx context.Context) (*model.Snapshot, error) {
	ds, err := c.loader.Load(ctx, c.source)
	if err != nil {
		return nil, err
	}

	s := NewSnapshot(ds, time.Now().UTC())
	c.snap.Store(s)

	zap.L().Info("dataset: snapshot ready",
		zap.String("snapshot_id", s.ID),
		zap.String("source", s.Source),
		zap.Int("rows_read", s.Stats.RowsRead),
		zap.Int("kept", s.Stats.Kept()),
		zap.Int("dropped_non_numeric", s.Stats.DroppedNonNumeric),
		zap.Int("dropped_unmapped", s.Stats.DroppedUnmapped),
	)
	return s, nil
}

// Static is a Provider over a fixed snapshot.
type Static struct {
	snap *model.Snapshot
}

// NewStatic wraps an already built snapshot.
func NewStatic(s *model.Snapshot) *Static { return &Static{snap: s} }

// Snapshot returns the wrapped snapshot.
func (p *Static) Snapshot(context.Context) (*model.Snapshot, error) { return p.snap, nil }

// Reload returns the wrapped snapshot unchanged.
func (p *Static) Reload(context.Context) (*model.Snapshot, error) { return p.snap, nil }
