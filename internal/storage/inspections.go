package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/roofcheck/internal/wizard"
)

// --- Inspections ---

func (s *Store) CreateInspection(ctx context.Context, in Inspection) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	if in.Status == "" {
		in.Status = StatusInProgress
	}
	created := formatTime(in.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inspections (id, address, inspector, status, cursor_section, cursor_step, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Address, in.Inspector, in.Status, in.Cursor.Section, in.Cursor.Step, created, created,
	)
	return err
}

const inspectionColumns = `id, address, inspector, status, cursor_section, cursor_step, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (Inspection, error) {
	var in Inspection
	var createdAt, updatedAt string
	var completedAt sql.NullString
	if err := row.Scan(&in.ID, &in.Address, &in.Inspector, &in.Status, &in.Cursor.Section, &in.Cursor.Step,
		&createdAt, &updatedAt, &completedAt); err != nil {
		return Inspection{}, err
	}
	var err error
	if in.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Inspection{}, err
	}
	if in.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Inspection{}, err
	}
	if in.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return Inspection{}, err
	}
	return in, nil
}

func (s *Store) GetInspection(ctx context.Context, id string) (Inspection, error) {
	in, err := scanInspection(s.db.QueryRowContext(ctx,
		`SELECT `+inspectionColumns+` FROM inspections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Inspection{}, ErrNotFound
	}
	if err != nil {
		return Inspection{}, fmt.Errorf("loading inspection %s: %w", id, err)
	}
	return in, nil
}

// ListInspections returns inspections newest first.
func (s *Store) ListInspections(ctx context.Context, limit, offset int) ([]Inspection, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+inspectionColumns+` FROM inspections
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Inspection
	for rows.Next() {
		in, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, in)
	}
	return results, rows.Err()
}

// MarkCompleted sets the inspection status to completed.
func (s *Store) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE inspections SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, formatTime(at), formatTime(at), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Wizard state ---

// LoadWizardState returns the cursor, accessories and hail hits of an
// inspection.
func (s *Store) LoadWizardState(ctx context.Context, id string) (WizardState, error) {
	in, err := s.GetInspection(ctx, id)
	if err != nil {
		return WizardState{}, err
	}
	st := WizardState{Cursor: in.Cursor}

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, position FROM accessories WHERE inspection_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return WizardState{}, fmt.Errorf("loading accessories: %w", err)
	}
	for rows.Next() {
		var a wizard.Accessory
		if err := rows.Scan(&a.ID, &a.Type, &a.Position); err != nil {
			rows.Close()
			return WizardState{}, err
		}
		st.Accessories = append(st.Accessories, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return WizardState{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT number, status, closeup_slot FROM hail_hits WHERE inspection_id = ? ORDER BY number ASC`, id)
	if err != nil {
		return WizardState{}, fmt.Errorf("loading hail hits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h wizard.HailHit
		if err := rows.Scan(&h.Number, &h.Status, &h.CloseupSlot); err != nil {
			return WizardState{}, err
		}
		st.HailHits = append(st.HailHits, h)
	}
	return st, rows.Err()
}

// SaveWizardState replaces the cursor, accessories and hail hits of an
// inspection in one transaction.
func (s *Store) SaveWizardState(ctx context.Context, id string, st WizardState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning state transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE inspections SET cursor_section = ?, cursor_step = ?, updated_at = ? WHERE id = ?`,
		st.Cursor.Section, st.Cursor.Step, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating cursor: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accessories WHERE inspection_id = ?`, id); err != nil {
		return fmt.Errorf("clearing accessories: %w", err)
	}
	for i, a := range st.Accessories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO accessories (id, inspection_id, type, position) VALUES (?, ?, ?, ?)`,
			a.ID, id, a.Type, i); err != nil {
			return fmt.Errorf("saving accessory %s: %w", a.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hail_hits WHERE inspection_id = ?`, id); err != nil {
		return fmt.Errorf("clearing hail hits: %w", err)
	}
	for _, h := range st.HailHits {
		if _, err := tx.ExecContext(ctx, `INSERT INTO hail_hits (inspection_id, number, status, closeup_slot) VALUES (?, ?, ?, ?)`,
			id, h.Number, h.Status, h.CloseupSlot); err != nil {
			return fmt.Errorf("saving hail hit %d: %w", h.Number, err)
		}
	}

	return tx.Commit()
}
