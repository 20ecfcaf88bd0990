package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/inventrak/internal/domain/catalog"
)

const (
	defaultCapacity = 2_000_000
	bloomFPR        = 0.001
	progressEvery   = 100_000
	maxLineSize     = 1 << 20
)

// upserter is the write side of a catalog store.
type upserter interface {
	Upsert(ctx context.Context, items []catalog.Item) error
}

// supplierItem is one line of a supplier feed.
type supplierItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Threshold   int             `json:"threshold"`
	Category    string          `json:"category"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
}

func (s supplierItem) item(now time.Time) catalog.Item {
	return catalog.Item{
		ID:          s.ID,
		Name:        s.Name,
		Price:       s.Price,
		Quantity:    s.Quantity,
		Threshold:   s.Threshold,
		Category:    s.Category,
		Code:        s.Code,
		Description: s.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// importStats reports what an import wrote.
type importStats struct {
	Written  int
	Shadowed int
}

// importer writes supplier files into dst in three passes:
//
//  1. build a bloom filter of item IDs per file;
//  2. stream every file, writing items no later file may contain and
//     holding back the rest as candidates;
//  3. rescan for the candidate IDs only and write the candidates no later
//     file actually contains.
//
// Memory stays proportional to the filters and the candidates, not the feeds.
type importer struct {
	dst       upserter
	files     []string
	batchSize int
	// capacity is the expected item count per file.
	capacity uint
	now      func() time.Time
}

func (imp *importer) Run(ctx context.Context) (importStats, error) {
	if imp.batchSize <= 0 {
		imp.batchSize = 500
	}
	if imp.capacity == 0 {
		imp.capacity = defaultCapacity
	}
	if imp.now == nil {
		imp.now = time.Now
	}

	slog.Info("pass 1: building id filters", slog.Int("files", len(imp.files)))
	filters, err := imp.buildFilters(ctx)
	if err != nil {
		return importStats{}, errors.Wrap(err, "build filters")
	}

	slog.Info("pass 2: writing unique items")
	candidates, written, err := imp.writeUnique(ctx, filters)
	if err != nil {
		return importStats{}, errors.Wrap(err, "write unique items")
	}

	held := 0
	for _, c := range candidates {
		held += len(c)
	}
	slog.Info("pass 3: resolving duplicates", slog.Int("candidates", held))
	resolved, shadowed, err := imp.resolve(ctx, candidates)
	if err != nil {
		return importStats{}, errors.Wrap(err, "resolve duplicates")
	}

	return importStats{Written: written + resolved, Shadowed: shadowed}, nil
}

func (imp *importer) buildFilters(ctx context.Context) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(imp.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range imp.files {
		g.Go(func() error {
			f := bloom.NewWithEstimates(imp.capacity, bloomFPR)
			n := 0
			if err := streamItems(ctx, path, func(it supplierItem) error {
				f.AddString(it.ID)
				n++
				return nil
			}); err != nil {
				return errors.Wrapf(err, "filter file %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Int("items", n))
			filters[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// laterMayContain reports whether any file after idx may hold id.
func laterMayContain(filters []*bloom.BloomFilter, idx int, id string) bool {
	for _, f := range filters[idx+1:] {
		if f.TestString(id) {
			return true
		}
	}
	return false
}

func (imp *importer) writeUnique(ctx context.Context, filters []*bloom.BloomFilter) ([]map[string]catalog.Item, int, error) {
	candidates := make([]map[string]catalog.Item, len(imp.files))
	written := make([]int, len(imp.files))
	now := imp.now()

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range imp.files {
		g.Go(func() error {
			held := make(map[string]catalog.Item)
			b := imp.newBatch(ctx)
			if err := streamItems(ctx, path, func(it supplierItem) error {
				if laterMayContain(filters, i, it.ID) {
					held[it.ID] = it.item(now)
					return nil
				}
				return b.add(it.item(now))
			}); err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}
			if err := b.flush(); err != nil {
				return errors.Wrapf(err, "write file %d", i+1)
			}
			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Int("written", b.written),
				slog.Int("candidates", len(held)),
			)
			candidates[i] = held
			written[i] = b.written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for _, n := range written {
		total += n
	}
	return candidates, total, nil
}

func (imp *importer) resolve(ctx context.Context, candidates []map[string]catalog.Item) (written, shadowed int, _ error) {
	wanted := make(map[string]struct{})
	for _, c := range candidates {
		for id := range c {
			wanted[id] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return 0, 0, nil
	}

	present := make([]map[string]struct{}, len(imp.files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range imp.files {
		g.Go(func() error {
			seen := make(map[string]struct{})
			if err := streamItems(gctx, path, func(it supplierItem) error {
				if _, ok := wanted[it.ID]; ok {
					seen[it.ID] = struct{}{}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "rescan file %d", i+1)
			}
			present[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	b := imp.newBatch(ctx)
	for i, c := range candidates {
		for id, it := range c {
			if shadowedAfter(present, i, id) {
				shadowed++
				continue
			}
			if err := b.add(it); err != nil {
				return 0, 0, err
			}
		}
	}
	if err := b.flush(); err != nil {
		return 0, 0, err
	}
	return b.written, shadowed, nil
}

func shadowedAfter(present []map[string]struct{}, idx int, id string) bool {
	for _, seen := range present[idx+1:] {
		if _, ok := seen[id]; ok {
			return true
		}
	}
	return false
}

type batch struct {
	ctx     context.Context
	dst     upserter
	size    int
	items   []catalog.Item
	written int
}

func (imp *importer) newBatch(ctx context.Context) *batch {
	return &batch{ctx: ctx, dst: imp.dst, size: imp.batchSize}
}

func (b *batch) add(it catalog.Item) error {
	b.items = append(b.items, it)
	if len(b.items) < b.size {
		return nil
	}
	return b.flush()
}

func (b *batch) flush() error {
	if len(b.items) == 0 {
		return nil
	}
	if err := b.dst.Upsert(b.ctx, b.items); err != nil {
		return err
	}
	b.written += len(b.items)
	if b.written%progressEvery < len(b.items) {
		slog.Info("write progress", slog.Int("written", b.written))
	}
	b.items = b.items[:0]
	return nil
}

// streamItems decodes a gzip-compressed JSON-lines file, calling fn for every
// item. Blank lines are skipped.
func streamItems(ctx context.Context, path string, fn func(it supplierItem) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var it supplierItem
		if err := json.Unmarshal(raw, &it); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		if it.ID == "" {
			return errors.Errorf("%s:%d: item id is required", path, line)
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
