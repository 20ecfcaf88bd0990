package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/inventrak/internal/domain/sale"
)

const (
	createSaleSQL = `INSERT INTO sales (id, lines, total, cashier_name, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	listSalesSQL = `SELECT id::text, lines, total, cashier_name, payment_method, created_at
		FROM sales ORDER BY created_at DESC`
)

var _ sale.Log = (*SaleRepository)(nil)

// SaleRepository implements sale.Log backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Record stores the transaction and takes the sold units off the shelf in a
// single database transaction. The lines are serialized to JSON for storage
// in the JSONB column. Recording the same transaction twice is a no-op.
func (r *SaleRepository) Record(ctx context.Context, tx *sale.Transaction) error {
	linesJSON, err := json.Marshal(tx.Lines)
	if err != nil {
		return fmt.Errorf("marshaling sale lines: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
		tag, err := dbtx.Exec(ctx, createSaleSQL,
			tx.ID, linesJSON, tx.Total, tx.CashierName, string(tx.PaymentMethod), tx.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("creating sale %q: %w", tx.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for _, l := range tx.Lines {
			if _, err := dbtx.Exec(ctx, decrementStockSQL, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("decrementing stock of %q: %w", l.ProductID, err)
			}
		}
		return nil
	})
}

// List returns all recorded sales, newest first.
func (r *SaleRepository) List(ctx context.Context) ([]sale.Transaction, error) {
	rows, err := r.pool.Query(ctx, listSalesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return pgx.CollectRows(rows, scanSale)
}

func scanSale(row pgx.CollectableRow) (sale.Transaction, error) {
	var (
		tx        sale.Transaction
		linesJSON []byte
		method    string
	)
	if err := row.Scan(&tx.ID, &linesJSON, &tx.Total, &tx.CashierName, &method, &tx.Timestamp); err != nil {
		return tx, err
	}
	tx.PaymentMethod = sale.PaymentMethod(method)
	if err := json.Unmarshal(linesJSON, &tx.Lines); err != nil {
		return tx, fmt.Errorf("unmarshaling lines of sale %q: %w", tx.ID, err)
	}
	return tx, nil
}
