package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sales-service/internal/models"
)

// GetSalePayments retrieves a sale's installments in order
func (s *Store) GetSalePayments(ctx context.Context, saleID string) ([]models.SalePayment, error) {
	var payments []models.SalePayment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM sale_payments WHERE sale_id = $1 ORDER BY number", saleID)
	return payments, err
}

// GetPaymentByID retrieves a single installment
func (s *Store) GetPaymentByID(ctx context.Context, id string) (*models.SalePayment, error) {
	var payment models.SalePayment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM sale_payments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaymentPaid flips an OPEN installment to PAID. It never reverts.
func (s *Store) MarkPaymentPaid(ctx context.Context, id string, paidAt time.Time) (*models.SalePayment, error) {
	var payment models.SalePayment
	err := s.db.GetContext(ctx, &payment, `
		UPDATE sale_payments SET status = 'PAID', paid_at = $1
		WHERE id = $2 AND status = 'OPEN'
		RETURNING *`, paidAt, id)
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := s.GetPaymentByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("payment %s: %w", id, ErrAlreadyPaid)
}
