package storage

import (
	"errors"
	"time"

	"github.com/kalambet/roofcheck/internal/analysis"
	"github.com/kalambet/roofcheck/internal/imaging"
	"github.com/kalambet/roofcheck/internal/wizard"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrPhotoReplaced is returned when an analysis is saved for a photo that
// was retaken or removed in the meantime.
var ErrPhotoReplaced = errors.New("photo replaced")

// Inspection statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Inspection struct {
	ID          string
	Address     string
	Inspector   string
	Status      string
	Cursor      wizard.Cursor
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Photo is a stored capture. JPEG is only populated by GetPhoto. ID changes
// with every capture of the step.
type Photo struct {
	ID            string
	InspectionID  string
	Section       string
	Step          string
	JPEG          []byte
	Width         int
	Height        int
	OriginalBytes int
	Format        string
	Metadata      imaging.Metadata
	CreatedAt     time.Time
}

type Analysis struct {
	InspectionID string
	Section      string
	Step         string
	PhotoID      string
	Kind         analysis.Kind
	Result       *analysis.Result
	CreatedAt    time.Time
}

// WizardState is the navigation state persisted per inspection.
type WizardState struct {
	Cursor      wizard.Cursor
	Accessories []wizard.Accessory
	HailHits    []wizard.HailHit
}

type Report struct {
	InspectionID string
	Body         string
	Generator    string // "ai" or "fallback"
	GeneratedAt  time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
