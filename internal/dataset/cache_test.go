package dataset

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/silver-economy/internal/model"
)

func TestCache_LoadsOnce(t *testing.T) {
	path := writeFile(t, "dados.csv", censoCSV)
	c := NewCache(NewLoader(nil), path)

	s1, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	s2, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	// São Paulo kept, Salvador kept (missing indicator), code 99 dropped.
	assert.Equal(t, 3, s1.Stats.RowsRead)
	assert.Equal(t, 1, s1.Stats.DroppedUnmapped)
	assert.Equal(t, 2, s1.Stats.Kept())
	require.Len(t, s1.Records, 2)
	assert.Equal(t, "são paulo", s1.Records[0].Name)
	assert.Equal(t, "SP", s1.Records[0].RegionLabel)
	assert.NotEmpty(t, s1.ID)
	assert.Equal(t, path, c.Source())
}

func TestCache_ConcurrentFirstLoad(t *testing.T) {
	c := NewCache(NewLoader(nil), writeFile(t, "dados.csv", censoCSV))

	var wg sync.WaitGroup
	snaps := make([]*model.Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Snapshot(context.Background())
			assert.NoError(t, err)
			snaps[i] = s
		}()
	}
	wg.Wait()

	for _, s := range snaps[1:] {
		assert.Same(t, snaps[0], s)
	}
}

func TestCache_Reload(t *testing.T) {
	path := writeFile(t, "dados.csv", censoCSV)
	c := NewCache(NewLoader(nil), path)

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(
		"Município,UF,Índice de envelhecimento,Renda média 60+,Proporção de casais sem filhos\nPalmas,17,40,2600,0.2\n"), 0o644))

	second, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	require.Len(t, second.Records, 1)

	current, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, current)
}

func TestCache_FailedReloadKeepsSnapshot(t *testing.T) {
	path := writeFile(t, "dados.csv", censoCSV)
	c := NewCache(NewLoader(nil), path)

	first, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("foo,bar\n1,2\n"), 0o644))
	_, err = c.Reload(context.Background())
	require.Error(t, err)

	current, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestCache_InitialLoadError(t *testing.T) {
	c := NewCache(NewLoader(nil), "/nonexistent/dados.csv")
	_, err := c.Snapshot(context.Background())
	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestNewSnapshot_DoesNotMutateDataset(t *testing.T) {
	ds := &model.Dataset{
		Source: "mem",
		Records: []model.MunicipalRecord{
			{Name: " Belém ", RegionCodeRaw: "15"},
			{Name: "x", RegionCodeRaw: "abc"},
		},
	}
	s := NewSnapshot(ds, time.Unix(0, 0))
	assert.Equal(t, " Belém ", ds.Records[0].Name)
	assert.Empty(t, ds.Records[0].RegionLabel)
	assert.Equal(t, 1, s.Stats.DroppedNonNumeric)
	assert.Equal(t, "belém", s.Records[0].Name)

	p := NewStatic(s)
	got, err := p.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, got)
}
