package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/roofcheck/internal/wizard"
)

// --- Interviews ---

// GetInterview returns the stored interview. An inspection without one
// yields an empty interview. HasSatelliteDish is derived by the caller.
func (s *Store) GetInterview(ctx context.Context, id string) (wizard.Interview, error) {
	var iv wizard.Interview
	var completedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT damage_notes, satellite_in_use, satellite_notes, has_zelle, zelle_phone, zelle_notes, claim_notes, completed_at, total_photos
		FROM interviews WHERE inspection_id = ?`, id,
	).Scan(&iv.DamageNotes, &iv.SatelliteInUse, &iv.SatelliteNotes, &iv.HasZelle, &iv.ZellePhone, &iv.ZelleNotes,
		&iv.ClaimNotes, &completedAt, &iv.TotalPhotos)
	if errors.Is(err, sql.ErrNoRows) {
		return wizard.Interview{}, nil
	}
	if err != nil {
		return wizard.Interview{}, fmt.Errorf("loading interview: %w", err)
	}
	if iv.CompletedAt, err = parseNullTime("completed_at", completedAt); err != nil {
		return wizard.Interview{}, err
	}
	return iv, nil
}

func (s *Store) SaveInterview(ctx context.Context, id string, iv wizard.Interview) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interviews (inspection_id, damage_notes, satellite_in_use, satellite_notes, has_zelle, zelle_phone, zelle_notes, claim_notes, completed_at, total_photos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(inspection_id) DO UPDATE SET
			damage_notes = excluded.damage_notes,
			satellite_in_use = excluded.satellite_in_use,
			satellite_notes = excluded.satellite_notes,
			has_zelle = excluded.has_zelle,
			zelle_phone = excluded.zelle_phone,
			zelle_notes = excluded.zelle_notes,
			claim_notes = excluded.claim_notes,
			completed_at = excluded.completed_at,
			total_photos = excluded.total_photos`,
		id, iv.DamageNotes, iv.SatelliteInUse, iv.SatelliteNotes, iv.HasZelle, iv.ZellePhone, iv.ZelleNotes,
		iv.ClaimNotes, nullTime(iv.CompletedAt), iv.TotalPhotos,
	)
	if err != nil {
		return fmt.Errorf("saving interview: %w", err)
	}
	return nil
}

// --- Reports ---

func (s *Store) SaveReport(ctx context.Context, r Report) error {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (inspection_id, body, generator, generated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(inspection_id) DO UPDATE SET
			body = excluded.body, generator = excluded.generator, generated_at = excluded.generated_at`,
		r.InspectionID, r.Body, r.Generator, formatTime(r.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id string) (Report, error) {
	r := Report{InspectionID: id}
	var generatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT body, generator, generated_at FROM reports WHERE inspection_id = ?`, id).
		Scan(&r.Body, &r.Generator, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("loading report: %w", err)
	}
	if r.GeneratedAt, err = parseTime("generated_at", generatedAt); err != nil {
		return Report{}, err
	}
	return r, nil
}
