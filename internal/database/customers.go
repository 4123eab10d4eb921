package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/models"

	"github.com/google/uuid"
)

// FindOrCreateCustomer returns the customer with exactly this name and phone,
// creating it when none exists. An empty phone only matches customers stored
// without one.
func (db *DB) FindOrCreateCustomer(ctx context.Context, name, phone string) (*models.Customer, error) {
	return findOrCreateCustomer(ctx, db, name, phone, time.Now().UTC())
}

func findOrCreateCustomer(ctx context.Context, q querier, name, phone string, now time.Time) (*models.Customer, error) {
	c, err := findCustomer(ctx, q, name, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// A concurrent writer may insert the same pair first; the conflict is
	// ignored and the row re-read.
	query := `INSERT INTO customers (id, name, phone, created_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(name, phone) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, uuid.NewString(), name, phone, now); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return findCustomer(ctx, q, name, phone)
}

func findCustomer(ctx context.Context, q querier, name, phone string) (*models.Customer, error) {
	query := `SELECT id, name, phone, created_at FROM customers WHERE name = ? AND phone = ?`
	c, err := scanCustomer(q.QueryRowContext(ctx, query, name, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return c, nil
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
