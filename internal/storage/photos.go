package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/roofcheck/internal/analysis"
)

// --- Photos ---

// SavePhoto stores p, first removing any photo and analysis already stored
// for the same step. An empty ID is replaced with a new one.
func (s *Store) SavePhoto(ctx context.Context, p Photo) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encoding photo metadata: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning photo transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteStep(ctx, tx, p.InspectionID, p.Section, p.Step); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO photos (inspection_id, section, step, id, jpeg, width, height, original_bytes, format, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.InspectionID, p.Section, p.Step, p.ID, p.JPEG, p.Width, p.Height, p.OriginalBytes, p.Format, string(meta), formatTime(p.CreatedAt),
	); err != nil {
		return fmt.Errorf("saving photo %s/%s: %w", p.Section, p.Step, err)
	}
	return tx.Commit()
}

func deleteStep(ctx context.Context, tx *sql.Tx, id, section, step string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE inspection_id = ? AND section = ? AND step = ?`, id, section, step); err != nil {
		return fmt.Errorf("clearing analysis %s/%s: %w", section, step, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE inspection_id = ? AND section = ? AND step = ?`, id, section, step); err != nil {
		return fmt.Errorf("clearing photo %s/%s: %w", section, step, err)
	}
	return nil
}

// DeletePhoto removes the photo and analysis of a step. Deleting a step with
// no photo is not an error.
func (s *Store) DeletePhoto(ctx context.Context, id, section, step string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteStep(ctx, tx, id, section, step); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPhoto loads a photo including its JPEG bytes.
func (s *Store) GetPhoto(ctx context.Context, id, section, step string) (Photo, error) {
	p := Photo{InspectionID: id, Section: section, Step: step}
	var meta, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, jpeg, width, height, original_bytes, format, metadata_json, created_at
		FROM photos WHERE inspection_id = ? AND section = ? AND step = ?`, id, section, step,
	).Scan(&p.ID, &p.JPEG, &p.Width, &p.Height, &p.OriginalBytes, &p.Format, &meta, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Photo{}, ErrNotFound
	}
	if err != nil {
		return Photo{}, fmt.Errorf("loading photo %s/%s: %w", section, step, err)
	}
	if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
		return Photo{}, fmt.Errorf("decoding photo metadata: %w", err)
	}
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Photo{}, err
	}
	return p, nil
}

// ListPhotos returns the photos of an inspection without their JPEG bytes.
func (s *Store) ListPhotos(ctx context.Context, id string) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, section, step, width, height, original_bytes, format, metadata_json, created_at
		FROM photos WHERE inspection_id = ? ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Photo
	for rows.Next() {
		p := Photo{InspectionID: id}
		var meta, createdAt string
		if err := rows.Scan(&p.ID, &p.Section, &p.Step, &p.Width, &p.Height, &p.OriginalBytes, &p.Format, &meta, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding photo metadata: %w", err)
		}
		if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Analyses ---

// SaveAnalysis stores the result for a step, replacing any earlier one. The
// write only happens while a.PhotoID is still the stored photo of the step;
// otherwise ErrPhotoReplaced is returned.
func (s *Store) SaveAnalysis(ctx context.Context, a Analysis) error {
	if a.Result == nil {
		return fmt.Errorf("saving analysis %s/%s: nil result", a.Section, a.Step)
	}
	body, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (inspection_id, section, step, photo_id, kind, result_json, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (
			SELECT 1 FROM photos WHERE inspection_id = ? AND section = ? AND step = ? AND id = ?
		)
		ON CONFLICT(inspection_id, section, step) DO UPDATE SET
			photo_id = excluded.photo_id, kind = excluded.kind,
			result_json = excluded.result_json, created_at = excluded.created_at`,
		a.InspectionID, a.Section, a.Step, a.PhotoID, string(a.Kind), string(body), formatTime(a.CreatedAt),
		a.InspectionID, a.Section, a.Step, a.PhotoID,
	)
	if err != nil {
		return fmt.Errorf("saving analysis %s/%s: %w", a.Section, a.Step, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving analysis %s/%s: %w", a.Section, a.Step, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrPhotoReplaced, a.Section, a.Step)
	}
	return nil
}

func scanAnalysis(row rowScanner, a *Analysis) error {
	var kind, body, createdAt string
	if err := row.Scan(&a.Section, &a.Step, &a.PhotoID, &kind, &body, &createdAt); err != nil {
		return err
	}
	a.Kind = analysis.Kind(kind)
	a.Result = &analysis.Result{}
	if err := json.Unmarshal([]byte(body), a.Result); err != nil {
		return fmt.Errorf("decoding analysis %s/%s: %w", a.Section, a.Step, err)
	}
	var err error
	a.CreatedAt, err = parseTime("created_at", createdAt)
	return err
}

func (s *Store) GetAnalysis(ctx context.Context, id, section, step string) (Analysis, error) {
	a := Analysis{InspectionID: id}
	err := scanAnalysis(s.db.QueryRowContext(ctx, `
		SELECT section, step, photo_id, kind, result_json, created_at
		FROM analyses WHERE inspection_id = ? AND section = ? AND step = ?`, id, section, step), &a)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	return a, nil
}

func (s *Store) ListAnalyses(ctx context.Context, id string) ([]Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT section, step, photo_id, kind, result_json, created_at
		FROM analyses WHERE inspection_id = ? ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Analysis
	for rows.Next() {
		a := Analysis{InspectionID: id}
		if err := scanAnalysis(rows, &a); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}
