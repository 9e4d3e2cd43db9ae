package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sales-service/internal/credit"
	"sales-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateSale inserts a sale with its lines, payments and the credit it
// consumed in one transaction
func (s *Store) CreateSale(ctx context.Context, sale *models.Sale, items []models.SaleItem, payments []models.SalePayment, usages []credit.Usage) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO sales (id, customer_id, customer_name, status, subtotal, discount_type, discount_value,
				discount_amount, freight, total, payment_method, installments, credit_applied, idempotency_key)
			VALUES (:id, :customer_id, :customer_name, :status, :subtotal, :discount_type, :discount_value,
				:discount_amount, :freight, :total, :payment_method, :installments, :credit_applied, :idempotency_key)
			RETURNING created_at, updated_at`

		rows, err := sqlx.NamedQueryContext(ctx, tx, query, sale)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
		if rows.Next() {
			if err := rows.Scan(&sale.CreatedAt, &sale.UpdatedAt); err != nil {
				rows.Close()
				return err
			}
		}
		rows.Close()

		if err := insertItems(ctx, tx, items); err != nil {
			return err
		}
		if err := insertPayments(ctx, tx, payments); err != nil {
			return err
		}
		return consumeCredit(ctx, tx, usages)
	})
}

// GetSaleByID retrieves a sale by ID
func (s *Store) GetSaleByID(ctx context.Context, id string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByIdempotencyKey returns nil when no sale used the key
func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSalesByCustomer lists a customer's sales, newest first
func (s *Store) GetSalesByCustomer(ctx context.Context, customerID string) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return sales, err
}

// ListSales lists sales newest first, optionally only those in status
func (s *Store) ListSales(ctx context.Context, status string, limit int) ([]models.Sale, error) {
	query := "SELECT * FROM sales"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales, query, args...)
	return sales, err
}

// DeleteQuote removes a sale still in QUOTE together with its lines
func (s *Store) DeleteQuote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sales WHERE id = $1 AND status = 'QUOTE'", id)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}

	// nothing deleted: either unknown or no longer a quote
	if _, err := s.GetSaleByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("sale %s: %w", id, ErrConflict)
}

// GetSaleItems retrieves all lines of a sale
func (s *Store) GetSaleItems(ctx context.Context, saleID string) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, err
}

// UpdateQuote replaces the lines and totals of a sale still in QUOTE
func (s *Store) UpdateQuote(ctx context.Context, sale *models.Sale, items []models.SaleItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE sales SET customer_id = :customer_id, customer_name = :customer_name, subtotal = :subtotal,
				discount_type = :discount_type, discount_value = :discount_value, discount_amount = :discount_amount,
				freight = :freight, total = :total, updated_at = NOW()
			WHERE id = :id AND status = 'QUOTE'`, sale)
		if err != nil {
			return fmt.Errorf("failed to update quote: %w", err)
		}
		if err := expectOne(res, "sale "+sale.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM sale_items WHERE sale_id = $1", sale.ID); err != nil {
			return fmt.Errorf("failed to clear quote items: %w", err)
		}
		return insertItems(ctx, tx, items)
	})
}

// CompleteQuote moves a QUOTE to COMPLETED with its payments
func (s *Store) CompleteQuote(ctx context.Context, sale *models.Sale, payments []models.SalePayment, usages []credit.Usage) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE sales SET status = 'COMPLETED', payment_method = :payment_method, installments = :installments,
				credit_applied = :credit_applied, updated_at = NOW()
			WHERE id = :id AND status = 'QUOTE'`, sale)
		if err != nil {
			return fmt.Errorf("failed to complete quote: %w", err)
		}
		if err := expectOne(res, "sale "+sale.ID); err != nil {
			return err
		}

		if err := insertPayments(ctx, tx, payments); err != nil {
			return err
		}
		return consumeCredit(ctx, tx, usages)
	})
}

// UpdateSaleStatus moves a sale from one status to another
func (s *Store) UpdateSaleStatus(ctx context.Context, saleID, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sales SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, saleID, from)
	if err != nil {
		return err
	}
	return expectOne(res, "sale "+saleID)
}

func insertItems(ctx context.Context, tx *sqlx.Tx, items []models.SaleItem) error {
	for _, item := range items {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price)
			VALUES (:id, :sale_id, :product_id, :product_name, :quantity, :unit_price)`, item)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}
	return nil
}

func insertPayments(ctx context.Context, tx *sqlx.Tx, payments []models.SalePayment) error {
	for _, p := range payments {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sale_payments (id, sale_id, number, amount, due_date, status, payment_method, paid_at)
			VALUES (:id, :sale_id, :number, :amount, :due_date, :status, :payment_method, :paid_at)`, p)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}
	return nil
}

func consumeCredit(ctx context.Context, tx *sqlx.Tx, usages []credit.Usage) error {
	for _, u := range usages {
		res, err := tx.ExecContext(ctx,
			"UPDATE customer_credits SET balance = balance - $1 WHERE id = $2 AND balance >= $1",
			u.Amount, u.EntryID)
		if err != nil {
			return fmt.Errorf("failed to consume credit: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("credit %s: %w", u.EntryID, credit.ErrInsufficientCredit)
		}
	}
	return nil
}

// expectOne maps a zero-row update to ErrConflict
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return nil
}
