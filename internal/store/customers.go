package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sales-service/internal/models"
)

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetInteractionsByCustomer retrieves logged contacts, newest first
func (s *Store) GetInteractionsByCustomer(ctx context.Context, customerID string) ([]models.Interaction, error) {
	var interactions []models.Interaction
	err := s.db.SelectContext(ctx, &interactions,
		"SELECT * FROM customer_interactions WHERE customer_id = $1 ORDER BY date DESC", customerID)
	return interactions, err
}

// CreateInteraction logs a contact with a customer
func (s *Store) CreateInteraction(ctx context.Context, interaction *models.Interaction) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customer_interactions (id, customer_id, type, notes, date)
		VALUES (:id, :customer_id, :type, :notes, :date)`, interaction)
	return err
}

// GetCreditsByCustomer retrieves credit grants, oldest first
func (s *Store) GetCreditsByCustomer(ctx context.Context, customerID string) ([]models.CustomerCredit, error) {
	var credits []models.CustomerCredit
	err := s.db.SelectContext(ctx, &credits,
		"SELECT * FROM customer_credits WHERE customer_id = $1 ORDER BY created_at", customerID)
	return credits, err
}
