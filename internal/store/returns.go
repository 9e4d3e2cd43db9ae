package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sales-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateReturn stores a return, puts its units back in stock and records the
// credit it grants, if any. The sale row stays locked while the quantities
// left to return are checked, so concurrent returns of one sale serialize.
func (s *Store) CreateReturn(ctx context.Context, ret *models.Return, items []models.ReturnItem, grant *models.CustomerCredit) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, "SELECT status FROM sales WHERE id = $1 FOR UPDATE", ret.SaleID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sale %s: %w", ret.SaleID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock sale: %w", err)
		}
		if status != models.SaleStatusCompleted {
			return fmt.Errorf("sale %s is %s: %w", ret.SaleID, status, ErrConflict)
		}

		left, err := returnableQuantities(ctx, tx, ret.SaleID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Quantity > left[item.ProductID] {
				return fmt.Errorf("product %s has %d units left: %w", item.ProductID, max(left[item.ProductID], 0), ErrReturnExceedsSale)
			}
			left[item.ProductID] -= item.Quantity
		}

		err = tx.GetContext(ctx, &ret.CreatedAt, `
			INSERT INTO returns (id, sale_id, customer_id, reason, resolution, status, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			ret.ID, ret.SaleID, ret.CustomerID, ret.Reason, ret.Resolution, ret.Status, ret.Total)
		if err != nil {
			return fmt.Errorf("failed to insert return: %w", err)
		}

		for _, item := range items {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO return_items (id, return_id, product_id, product_name, quantity, unit_price)
				VALUES (:id, :return_id, :product_id, :product_name, :quantity, :unit_price)`, item)
			if err != nil {
				return fmt.Errorf("failed to insert return item: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				"UPDATE inventory SET available = available + $1, updated_at = NOW() WHERE product_id = $2",
				item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to restock product %s: %w", item.ProductID, err)
			}
		}

		if grant == nil {
			return nil
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO customer_credits (id, customer_id, return_id, amount, balance)
			VALUES (:id, :customer_id, :return_id, :amount, :balance)`, grant)
		if err != nil {
			return fmt.Errorf("failed to insert credit: %w", err)
		}
		return nil
	})
}

// returnableQuantities is sold minus already returned units per product
func returnableQuantities(ctx context.Context, tx *sqlx.Tx, saleID string) (map[string]int, error) {
	var rows []struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	err := tx.SelectContext(ctx, &rows, `
		SELECT product_id, SUM(quantity) AS quantity FROM (
			SELECT product_id, quantity FROM sale_items WHERE sale_id = $1
			UNION ALL
			SELECT ri.product_id, -ri.quantity
			FROM return_items ri JOIN returns r ON r.id = ri.return_id
			WHERE r.sale_id = $1 AND r.status <> 'CANCELADA'
		) q
		GROUP BY product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count returnable units: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ProductID] = r.Quantity
	}
	return out, nil
}

// GetReturnsByCustomer retrieves a customer's returns, newest first
func (s *Store) GetReturnsByCustomer(ctx context.Context, customerID string) ([]models.Return, error) {
	var returns []models.Return
	err := s.db.SelectContext(ctx, &returns,
		"SELECT * FROM returns WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return returns, err
}

// GetReturnedQuantities sums units already returned per product of a sale
func (s *Store) GetReturnedQuantities(ctx context.Context, saleID string) (map[string]int, error) {
	var rows []struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ri.product_id, SUM(ri.quantity) AS quantity
		FROM return_items ri JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1 AND r.status <> 'CANCELADA'
		GROUP BY ri.product_id`, saleID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ProductID] = r.Quantity
	}
	return out, nil
}
