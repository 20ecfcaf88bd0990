package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/storage/memory"
)

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

// countingStore records every batch it receives.
type countingStore struct {
	*memory.Catalog
	mu      sync.Mutex
	batches int
}

func (s *countingStore) Upsert(ctx context.Context, items []catalog.Item) error {
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()
	return s.Catalog.Upsert(ctx, items)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	c, err := memory.NewCatalog()
	require.NoError(t, err)
	return &countingStore{Catalog: c}
}

func TestImporter_LastFileWins(t *testing.T) {
	dir := t.TempDir()
	first := writeFeed(t, dir, "a.jsonl.gz",
		`{"id":"1","name":"Rice (1kg)","price":80,"quantity":50,"threshold":10,"category":"Groceries","code":"R001"}`,
		`{"id":"2","name":"Cooking Oil (1L)","price":"150.00","quantity":25,"threshold":5,"category":"Groceries","code":"O001"}`,
		`{"id":"3","name":"Sugar (1kg)","price":45,"quantity":30,"threshold":8,"category":"Groceries","code":"S001"}`,
	)
	second := writeFeed(t, dir, "b.jsonl.gz",
		`{"id":"2","name":"Cooking Oil (1L)","price":"155.50","quantity":40,"threshold":5,"category":"Groceries","code":"O001"}`,
		``,
		`{"id":"4","name":"Tea Powder (250g)","price":120,"quantity":3,"threshold":5,"category":"Beverages","code":"T001"}`,
	)

	store := newStore(t)
	imp := &importer{dst: store, files: []string{first, second}, batchSize: 2, capacity: 1000}
	stats, err := imp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Written)
	assert.Equal(t, 1, stats.Shadowed)

	items, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 4)

	oil, err := store.GetByID(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "155.5", oil.Price.String())
	assert.Equal(t, 40, oil.Quantity)
}

func TestImporter_NoDuplicates(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		lines = append(lines, `{"id":"`+id+`","name":"Item `+id+`","price":1,"quantity":1,"category":"Misc","code":"`+id+`"}`)
	}
	path := writeFeed(t, dir, "only.jsonl.gz", lines...)

	store := newStore(t)
	imp := &importer{dst: store, files: []string{path}, batchSize: 2, capacity: 100}
	stats, err := imp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, importStats{Written: 5}, stats)
	assert.Equal(t, 3, store.batches)
}

func TestImporter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{name: "malformed json", line: `{"id":`, wantErr: "bad.jsonl.gz:1"},
		{name: "missing id", line: `{"name":"Nameless","price":1}`, wantErr: "item id is required"},
		{name: "negative price", line: `{"id":"x","name":"Refund","price":-1}`, wantErr: "price must not be negative"},
		{name: "sub-paise price", line: `{"id":"x","name":"Dust","price":"0.005"}`, wantErr: "price must have at most 2 decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFeed(t, t.TempDir(), "bad.jsonl.gz", tt.line)
			imp := &importer{dst: newStore(t), files: []string{path}, capacity: 10}
			_, err := imp.Run(context.Background())
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestImporter_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1"}`), 0o600))

	imp := &importer{dst: newStore(t), files: []string{path}, capacity: 10}
	_, err := imp.Run(context.Background())
	require.ErrorContains(t, err, "create gzip reader")
}

func TestImporter_Canceled(t *testing.T) {
	path := writeFeed(t, t.TempDir(), "a.jsonl.gz", `{"id":"1","name":"Rice","price":1}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp := &importer{dst: newStore(t), files: []string{path}, capacity: 10}
	_, err := imp.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
