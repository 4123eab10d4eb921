package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salonbook/internal/models"
)

// GetWorkingHours returns the hours row for a weekday, or nil when the
// weekday has none.
func (db *DB) GetWorkingHours(ctx context.Context, dayOfWeek int) (*models.WorkingHours, error) {
	var h models.WorkingHours
	err := db.QueryRowContext(ctx, `SELECT dow, open, close FROM hours WHERE dow = ?`, dayOfWeek).
		Scan(&h.DayOfWeek, &h.Open, &h.Close)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get working hours: %w", err)
	}
	return &h, nil
}

func (db *DB) ListWorkingHours(ctx context.Context) ([]models.WorkingHours, error) {
	rows, err := db.QueryContext(ctx, `SELECT dow, open, close FROM hours ORDER BY dow`)
	if err != nil {
		return nil, fmt.Errorf("failed to list working hours: %w", err)
	}
	defer rows.Close()

	hours := []models.WorkingHours{}
	for rows.Next() {
		var h models.WorkingHours
		if err := rows.Scan(&h.DayOfWeek, &h.Open, &h.Close); err != nil {
			return nil, fmt.Errorf("failed to scan working hours: %w", err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (db *DB) UpsertWorkingHours(ctx context.Context, h models.WorkingHours) error {
	return upsertWorkingHours(ctx, db, h)
}

func upsertWorkingHours(ctx context.Context, q querier, h models.WorkingHours) error {
	query := `INSERT INTO hours (dow, open, close) VALUES (?, ?, ?)
              ON CONFLICT(dow) DO UPDATE SET open = excluded.open, close = excluded.close`
	if _, err := q.ExecContext(ctx, query, h.DayOfWeek, h.Open, h.Close); err != nil {
		return fmt.Errorf("failed to upsert working hours: %w", err)
	}
	return nil
}

func (db *DB) DeleteWorkingHours(ctx context.Context, dayOfWeek int) error {
	return deleteOne(ctx, db, `DELETE FROM hours WHERE dow = ?`, dayOfWeek)
}

// GetBlackout returns the blackout for date, or nil when the date is not blacked out.
func (db *DB) GetBlackout(ctx context.Context, date string) (*models.Blackout, error) {
	var b models.Blackout
	err := db.QueryRowContext(ctx, `SELECT date, note FROM blackouts WHERE date = ?`, date).Scan(&b.Date, &b.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blackout: %w", err)
	}
	return &b, nil
}

func (db *DB) ListBlackouts(ctx context.Context) ([]models.Blackout, error) {
	rows, err := db.QueryContext(ctx, `SELECT date, note FROM blackouts ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blackouts: %w", err)
	}
	defer rows.Close()

	blackouts := []models.Blackout{}
	for rows.Next() {
		var b models.Blackout
		if err := rows.Scan(&b.Date, &b.Note); err != nil {
			return nil, fmt.Errorf("failed to scan blackout: %w", err)
		}
		blackouts = append(blackouts, b)
	}
	return blackouts, rows.Err()
}

func (db *DB) UpsertBlackout(ctx context.Context, b models.Blackout) error {
	return upsertBlackout(ctx, db, b)
}

func upsertBlackout(ctx context.Context, q querier, b models.Blackout) error {
	query := `INSERT INTO blackouts (date, note) VALUES (?, ?)
              ON CONFLICT(date) DO UPDATE SET note = excluded.note`
	if _, err := q.ExecContext(ctx, query, b.Date, b.Note); err != nil {
		return fmt.Errorf("failed to upsert blackout: %w", err)
	}
	return nil
}

func (db *DB) DeleteBlackout(ctx context.Context, date string) error {
	return deleteOne(ctx, db, `DELETE FROM blackouts WHERE date = ?`, date)
}

// ReplaceCalendar swaps the stored hours and blackouts for the given rows in
// one transaction.
func (db *DB) ReplaceCalendar(ctx context.Context, hours []models.WorkingHours, blackouts []models.Blackout) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, q := range []string{`DELETE FROM hours`, `DELETE FROM blackouts`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear calendar: %w", err)
		}
	}
	for _, h := range hours {
		if err := upsertWorkingHours(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, b := range blackouts {
		if err := upsertBlackout(ctx, tx, b); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit calendar: %w", err)
	}
	db.logger.Info().Int("hours", len(hours)).Int("blackouts", len(blackouts)).Msg("Calendar replaced")
	return nil
}

func deleteOne(ctx context.Context, q querier, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
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
