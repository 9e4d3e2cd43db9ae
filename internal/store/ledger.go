package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sales-service/internal/models"
)

// FinancialFilter narrows a ledger listing. Empty fields match everything.
type FinancialFilter struct {
	Type   string
	Status string
	Limit  int
}

// CreateFinancialEntry records a receivable or payable. Entries are unique
// per payment and per return, so replays are no-ops.
func (s *Store) CreateFinancialEntry(ctx context.Context, entry *models.FinancialEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO financial_entries (id, type, description, amount, due_date, payment_method, status, payment_id, return_id)
		VALUES (:id, :type, :description, :amount, :due_date, :payment_method, :status, :payment_id, :return_id)
		ON CONFLICT DO NOTHING`, entry)
	return err
}

// SettleFinancialEntry marks the receivable of a payment as paid
func (s *Store) SettleFinancialEntry(ctx context.Context, paymentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE financial_entries SET status = 'PAID' WHERE payment_id = $1", paymentID)
	return err
}

// CancelFinancialEntries voids the open receivables of a sale
func (s *Store) CancelFinancialEntries(ctx context.Context, saleID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE financial_entries SET status = 'CANCELLED'
		WHERE status = 'OPEN' AND payment_id IN (SELECT id FROM sale_payments WHERE sale_id = $1)`, saleID)
	return err
}

// ListFinancialEntries lists ledger entries by due date, oldest first
func (s *Store) ListFinancialEntries(ctx context.Context, filter FinancialFilter) ([]models.FinancialEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT * FROM financial_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY due_date, created_at LIMIT $%d", len(args))

	var entries []models.FinancialEntry
	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

// PayFinancialEntry settles an open entry by its own id
func (s *Store) PayFinancialEntry(ctx context.Context, id string) (*models.FinancialEntry, error) {
	var entry models.FinancialEntry
	err := s.db.GetContext(ctx, &entry, `
		UPDATE financial_entries SET status = 'PAID'
		WHERE id = $1 AND status = 'OPEN'
		RETURNING *`, id)
	if err == nil {
		return &entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var status string
	err = s.db.GetContext(ctx, &status, "SELECT status FROM financial_entries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("financial entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if status == "PAID" {
		return nil, fmt.Errorf("financial entry %s: %w", id, ErrAlreadyPaid)
	}
	return nil, fmt.Errorf("financial entry %s is %s: %w", id, status, ErrConflict)
}

// GetFinancialEntry retrieves one ledger entry
func (s *Store) GetFinancialEntry(ctx context.Context, id string) (*models.FinancialEntry, error) {
	var entry models.FinancialEntry
	err := s.db.GetContext(ctx, &entry, "SELECT * FROM financial_entries WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("financial entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		eventID, eventType)
	return err
}
