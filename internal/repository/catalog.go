package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/inventrak/internal/domain/catalog"
)

const (
	listItemsSQL = `SELECT id, name, price, quantity, threshold, category, code, description, created_at, updated_at
		FROM products ORDER BY id`

	getItemByIDSQL = `SELECT id, name, price, quantity, threshold, category, code, description, created_at, updated_at
		FROM products WHERE id = $1`

	upsertItemSQL = `INSERT INTO products (id, name, price, quantity, threshold, category, code, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			threshold = EXCLUDED.threshold,
			category = EXCLUDED.category,
			code = EXCLUDED.code,
			description = EXCLUDED.description,
			updated_at = now()`

	decrementStockSQL = `UPDATE products SET quantity = GREATEST(quantity - $2, 0), updated_at = now()
		WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns all catalog items ordered by ID.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

// GetByID returns a single item by its identifier.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}
	return &it, nil
}

// Upsert validates and writes items in a single batch. Nothing is written
// when any item is invalid.
func (r *CatalogRepository) Upsert(ctx context.Context, items []catalog.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		batch.Queue(upsertItemSQL,
			it.ID, it.Name, it.Price, it.Quantity, it.Threshold, it.Category, it.Code, it.Description,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, it := range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting item %q: %w", it.ID, err)
		}
	}
	return br.Close()
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		it                  catalog.Item
		quantity, threshold int32
	)
	err := row.Scan(
		&it.ID, &it.Name, &it.Price, &quantity, &threshold,
		&it.Category, &it.Code, &it.Description, &it.CreatedAt, &it.UpdatedAt,
	)
	it.Quantity = int(quantity)
	it.Threshold = int(threshold)
	return it, err
}
