package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/models"

	"github.com/google/uuid"
)

const appointmentColumns = `a.id, a.customer_id, a.name, COALESCE(c.phone, ''), a.service, a.date, a.time, a.created_at`

// CreateAppointmentWithLock books one seat of the (date, time) slot. Inside a
// single immediate transaction it re-counts the slot, resolves the customer by
// (name, phone) and inserts the appointment at the lowest free slot ordinal.
// It returns ErrSlotFull when the slot already holds capacity appointments.
func (db *DB) CreateAppointmentWithLock(ctx context.Context, appt *models.Appointment, capacity int) error {
	if capacity < 1 {
		return ErrSlotFull
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Find a free seat inside the transaction
	ordinal, err := freeOrdinal(ctx, tx, appt.Date, appt.Time, capacity)
	if err != nil {
		return err
	}

	// 2. Resolve the customer
	now := time.Now().UTC()
	customer, err := findOrCreateCustomer(ctx, tx, appt.Name, appt.Phone, now)
	if err != nil {
		return err
	}

	// 3. Insert
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	queryInsert := `INSERT INTO appointments (id, customer_id, name, service, date, time, slot_ordinal, created_at)
                    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		appt.ID, customer.ID, appt.Name, appt.Service, appt.Date, appt.Time, ordinal, now)
	if err != nil {
		if isSlotConflict(err) {
			return ErrSlotFull
		}
		return fmt.Errorf("failed to insert appointment in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isSlotConflict(err) {
			return ErrSlotFull
		}
		return fmt.Errorf("failed to commit appointment: %w", err)
	}

	appt.CustomerID = &customer.ID
	appt.CreatedAt = now
	return nil
}

func freeOrdinal(ctx context.Context, q querier, date, at string, capacity int) (int, error) {
	rows, err := q.QueryContext(ctx, `SELECT slot_ordinal FROM appointments WHERE date = ? AND time = ?`, date, at)
	if err != nil {
		return 0, fmt.Errorf("failed to check slot in tx: %w", err)
	}
	defer rows.Close()

	taken := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan slot ordinal: %w", err)
		}
		taken[n] = true
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read slot ordinals: %w", err)
	}
	if len(taken) >= capacity {
		return 0, ErrSlotFull
	}
	for i := 0; i < capacity; i++ {
		if !taken[i] {
			return i, nil
		}
	}
	return 0, ErrSlotFull
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
              FROM appointments a LEFT JOIN customers c ON c.id = a.customer_id
              WHERE a.id = ?`
	appt, err := scanAppointment(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns appointments ordered by date then time. Name
// matches case-insensitively anywhere in the stored name.
func (db *DB) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.Date != "" {
		where = append(where, "a.date = ?")
		args = append(args, filter.Date)
	}
	if filter.DateFrom != "" {
		where = append(where, "a.date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "a.date <= ?")
		args = append(args, filter.DateTo)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		where = append(where, "LOWER(a.name) LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(name))+"%")
	}

	query := `SELECT ` + appointmentColumns + `
              FROM appointments a LEFT JOIN customers c ON c.id = a.customer_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.date ASC, a.time ASC, a.created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appts := []models.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CountAtSlot returns how many appointments start at date and time.
func (db *DB) CountAtSlot(ctx context.Context, date, at string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments WHERE date = ? AND time = ?`, date, at).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments at slot: %w", err)
	}
	return count, nil
}

// OccupancyForDate returns the appointment count per start time for one date.
func (db *DB) OccupancyForDate(ctx context.Context, date string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT time, COUNT(*) FROM appointments WHERE date = ? GROUP BY time`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupancy: %w", err)
	}
	defer rows.Close()

	occ := make(map[string]int)
	for rows.Next() {
		var (
			at    string
			count int
		)
		if err := rows.Scan(&at, &count); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy: %w", err)
		}
		occ[at] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate occupancy: %w", err)
	}
	return occ, nil
}

// DeleteAppointment removes an appointment and returns ErrNotFound when the id is unknown.
func (db *DB) DeleteAppointment(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAppointments removes every appointment and returns how many were deleted.
func (db *DB) ClearAppointments(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM appointments`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear appointments: %w", err)
	}
	return result.RowsAffected()
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		a          models.Appointment
		customerID sql.NullString
	)
	if err := row.Scan(&a.ID, &customerID, &a.Name, &a.Phone, &a.Service, &a.Date, &a.Time, &a.CreatedAt); err != nil {
		return nil, err
	}
	if customerID.Valid {
		id := customerID.String
		a.CustomerID = &id
	}
	return &a, nil
}
