// Package inspection ties the wizard state machine to storage, photo
// processing, analysis and report generation.
package inspection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/roofcheck/internal/analysis"
	"github.com/kalambet/roofcheck/internal/imaging"
	"github.com/kalambet/roofcheck/internal/report"
	"github.com/kalambet/roofcheck/internal/storage"
	"github.com/kalambet/roofcheck/internal/wizard"
)

// JobAnalyzePhoto is the queue job type for deferred photo analysis.
const JobAnalyzePhoto = "analyze_photo"

// reanalyzeLimit bounds concurrent vision calls during batch re-analysis.
const reanalyzeLimit = 4

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotPhotoStep = errors.New("step takes no photo")
)

// Analyzer assesses a photo. Analyze returns a non-nil Result unless ctx
// is done.
type Analyzer interface {
	Analyze(ctx context.Context, kind analysis.Kind, name, imageURL string) (*analysis.Result, error)
	SetupHint() string
}

// ReportGenerator produces the final report.
type ReportGenerator interface {
	Generate(ctx context.Context, in report.Input) report.Report
}

type Options struct {
	Store    *storage.Store
	Catalog  *wizard.Catalog
	Analyzer Analyzer
	Images   *imaging.Processor
	Reports  ReportGenerator
	MinHits  int
	// Async defers analysis to the job queue instead of running it inside
	// Capture.
	Async bool
}

// Service implements every inspection operation. It serializes state
// changes per inspection.
type Service struct {
	store    *storage.Store
	catalog  *wizard.Catalog
	analyzer Analyzer
	images   *imaging.Processor
	reports  ReportGenerator
	minHits  int
	async    bool
	now      func() time.Time
	logger   *slog.Logger

	locks sync.Map // inspection id -> *sync.Mutex
}

func New(opts Options) *Service {
	images := opts.Images
	if images == nil {
		images = imaging.NewProcessor(0, 0)
	}
	minHits := opts.MinHits
	if minHits <= 0 {
		minHits = wizard.DefaultMinHailHits
	}
	return &Service{
		store:    opts.Store,
		catalog:  opts.Catalog,
		analyzer: opts.Analyzer,
		images:   images,
		reports:  opts.Reports,
		minHits:  minHits,
		async:    opts.Async,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// Catalog returns the wizard definition.
func (s *Service) Catalog() *wizard.Catalog { return s.catalog }

func (s *Service) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// session rebuilds the wizard session of an inspection from storage.
func (s *Service) session(ctx context.Context, id string) (*wizard.Session, error) {
	st, err := s.store.LoadWizardState(ctx, id)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.ListPhotos(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}
	sess := wizard.NewSession(s.catalog, s.minHits)
	sess.Cursor = st.Cursor
	sess.Accessories = st.Accessories
	sess.HailHits = st.HailHits
	for _, p := range photos {
		sess.Photos[wizard.PhotoKey(p.Section, p.Step)] = true
	}
	sess.Normalize()
	return sess, nil
}

func (s *Service) saveSession(ctx context.Context, id string, sess *wizard.Session) error {
	return s.store.SaveWizardState(ctx, id, storage.WizardState{
		Cursor:      sess.Cursor,
		Accessories: sess.Accessories,
		HailHits:    sess.HailHits,
	})
}

// Create starts a new inspection at the first step.
func (s *Service) Create(ctx context.Context, address, inspector string) (storage.Inspection, error) {
	in := storage.Inspection{
		ID:        uuid.NewString(),
		Address:   address,
		Inspector: inspector,
		Status:    storage.StatusInProgress,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateInspection(ctx, in); err != nil {
		return storage.Inspection{}, fmt.Errorf("creating inspection: %w", err)
	}
	s.logger.Info("inspection created", "inspection_id", in.ID)
	return s.store.GetInspection(ctx, in.ID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]storage.Inspection, error) {
	return s.store.ListInspections(ctx, limit, offset)
}

// State is the wizard position and progress of an inspection.
type State struct {
	Inspection storage.Inspection   `json:"-"`
	Cursor     wizard.Cursor        `json:"cursor"`
	Section    string               `json:"section"`
	Step       *wizard.StepView     `json:"step,omitempty"`
	Sections   []wizard.SectionView `json:"sections"`
	Captured   int                  `json:"captured"`
	Total      int                  `json:"total"`
	Finished   bool                 `json:"finished,omitempty"`
}

func (s *Service) state(in storage.Inspection, sess *wizard.Session) *State {
	st := &State{Inspection: in, Cursor: sess.Cursor, Sections: sess.Overview()}
	st.Captured, st.Total = sess.Progress()
	sec, _, ok := sess.Current()
	st.Section = sec.Key
	if ok {
		view := st.Sections[sess.Cursor.Section].Steps[sess.Cursor.Step]
		st.Step = &view
	}
	return st
}

// State returns the current wizard state.
func (s *Service) State(ctx context.Context, id string) (*State, error) {
	in, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.state(in, sess), nil
}

// Advance moves to the next step. At the last step the returned state has
// Finished set and the cursor is unchanged.
func (s *Service) Advance(ctx context.Context, id string) (*State, error) {
	defer s.lock(id)()
	return s.move(ctx, id, func(sess *wizard.Session) (bool, error) {
		return sess.Advance()
	})
}

// Back moves to the previous step.
func (s *Service) Back(ctx context.Context, id string) (*State, error) {
	defer s.lock(id)()
	return s.move(ctx, id, func(sess *wizard.Session) (bool, error) {
		return false, sess.Back()
	})
}

func (s *Service) move(ctx context.Context, id string, fn func(*wizard.Session) (bool, error)) (*State, error) {
	in, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	finished, err := fn(sess)
	if err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, id, sess); err != nil {
		return nil, fmt.Errorf("saving cursor: %w", err)
	}
	st := s.state(in, sess)
	st.Finished = finished
	return st, nil
}

// CaptureResult reports a stored photo and its analysis. Outcome is nil
// while a deferred analysis is pending.
type CaptureResult struct {
	Section  string            `json:"section"`
	Step     string            `json:"step"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Metadata imaging.Metadata  `json:"metadata"`
	Outcome  *analysis.Outcome `json:"outcome,omitempty"`
	Pending  bool              `json:"pending,omitempty"`
	JobID    string            `json:"jobId,omitempty"`
}

type analyzeJob struct {
	InspectionID string `json:"inspection_id"`
	Section      string `json:"section"`
	Step         string `json:"step"`
}

// Capture stores a photo for a step, replacing any earlier photo and
// analysis, and analyzes it.
func (s *Service) Capture(ctx context.Context, id, section, step string, data []byte) (*CaptureResult, error) {
	unlock := s.lock(id)
	sess, err := s.session(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	_, st, err := sess.Locate(section, step)
	if err != nil {
		unlock()
		return nil, err
	}
	if !st.Photo {
		unlock()
		return nil, fmt.Errorf("%w: %s/%s", ErrNotPhotoStep, section, step)
	}

	img, err := s.images.Process(data)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	photoID := uuid.NewString()
	err = s.store.SavePhoto(ctx, storage.Photo{
		ID:            photoID,
		InspectionID:  id,
		Section:       section,
		Step:          step,
		JPEG:          img.JPEG,
		Width:         img.Width,
		Height:        img.Height,
		OriginalBytes: img.OriginalBytes,
		Format:        img.Format,
		Metadata:      img.Metadata,
		CreatedAt:     s.now(),
	})
	unlock()
	if err != nil {
		return nil, fmt.Errorf("saving photo: %w", err)
	}
	s.logger.Info("photo captured", "inspection_id", id, "section", section, "step", step,
		"width", img.Width, "height", img.Height, "original_bytes", img.OriginalBytes)

	res := &CaptureResult{Section: section, Step: step, Width: img.Width, Height: img.Height, Metadata: img.Metadata}
	if s.async {
		jobID, err := s.enqueueAnalysis(ctx, id, section, step)
		if err != nil {
			return nil, err
		}
		res.Pending = true
		res.JobID = jobID
		return res, nil
	}

	outcome, err := s.analyze(ctx, id, section, st, photoID, img.DataURL())
	if errors.Is(err, storage.ErrPhotoReplaced) {
		s.logger.Debug("photo replaced during analysis, result not stored", "inspection_id", id, "section", section, "step", step)
	} else if err != nil {
		return nil, err
	}
	res.Outcome = &outcome
	return res, nil
}

func (s *Service) enqueueAnalysis(ctx context.Context, id, section, step string) (string, error) {
	payload, err := json.Marshal(analyzeJob{InspectionID: id, Section: section, Step: step})
	if err != nil {
		return "", fmt.Errorf("encoding job payload: %w", err)
	}
	job := storage.Job{ID: uuid.NewString(), Type: JobAnalyzePhoto, PayloadJSON: string(payload)}
	if err := s.store.EnqueueJob(ctx, job); err != nil {
		return "", fmt.Errorf("enqueueing analysis: %w", err)
	}
	return job.ID, nil
}

// analyze runs the analyzer and stores the result against photoID. When the
// photo was retaken or removed meanwhile, the outcome is still returned
// together with an error wrapping storage.ErrPhotoReplaced.
func (s *Service) analyze(ctx context.Context, id, section string, st wizard.Step, photoID, imageURL string) (analysis.Outcome, error) {
	r, err := s.analyzer.Analyze(ctx, st.Kind, st.Name, imageURL)
	if err != nil {
		return analysis.Outcome{}, fmt.Errorf("analyzing %s/%s: %w", section, st.Key, err)
	}
	outcome := analysis.NewOutcome(r, s.analyzer.SetupHint())
	err = s.store.SaveAnalysis(ctx, storage.Analysis{
		InspectionID: id,
		Section:      section,
		Step:         st.Key,
		PhotoID:      photoID,
		Kind:         st.Kind,
		Result:       r,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, storage.ErrPhotoReplaced) {
		return outcome, err
	}
	if err != nil {
		return analysis.Outcome{}, fmt.Errorf("saving analysis: %w", err)
	}
	s.logger.Info("photo analyzed", "inspection_id", id, "section", section, "step", st.Key,
		"quality", r.OverallQuality, "source", r.Source)
	return outcome, nil
}

// AnalyzeStep analyzes the stored photo of a step and stores the result.
func (s *Service) AnalyzeStep(ctx context.Context, id, section, step string) (analysis.Outcome, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return analysis.Outcome{}, err
	}
	_, st, err := sess.Locate(section, step)
	if err != nil {
		return analysis.Outcome{}, err
	}
	p, err := s.store.GetPhoto(ctx, id, section, step)
	if err != nil {
		return analysis.Outcome{}, err
	}
	return s.analyze(ctx, id, section, st, p.ID, imaging.DataURL(p.JPEG))
}

// HandleJob runs a queued analyze_photo job. A photo that was retaken or
// deleted since the job was queued is skipped.
func (s *Service) HandleJob(ctx context.Context, job storage.Job) error {
	if job.Type != JobAnalyzePhoto {
		return fmt.Errorf("unknown job type %q", job.Type)
	}
	var p analyzeJob
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("decoding job payload: %w", err)
	}
	_, err := s.AnalyzeStep(ctx, p.InspectionID, p.Section, p.Step)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, wizard.ErrUnknownStep) || errors.Is(err, storage.ErrPhotoReplaced) {
		s.logger.Debug("skipping analysis of removed photo", "inspection_id", p.InspectionID, "section", p.Section, "step", p.Step)
		return nil
	}
	return err
}

// Reanalyze runs every stored photo of an inspection through the analyzer
// again and returns the outcomes keyed by section/step.
func (s *Service) Reanalyze(ctx context.Context, id string) (map[string]analysis.Outcome, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.ListPhotos(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing photos: %w", err)
	}

	var mu sync.Mutex
	outcomes := make(map[string]analysis.Outcome, len(photos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reanalyzeLimit)
	for _, p := range photos {
		_, st, err := sess.Locate(p.Section, p.Step)
		if err != nil {
			continue
		}
		g.Go(func() error {
			full, err := s.store.GetPhoto(gctx, id, p.Section, p.Step)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("loading photo %s/%s: %w", p.Section, p.Step, err)
			}
			o, err := s.analyze(gctx, id, p.Section, st, full.ID, imaging.DataURL(full.JPEG))
			if errors.Is(err, storage.ErrPhotoReplaced) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			outcomes[wizard.PhotoKey(p.Section, p.Step)] = o
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Info("inspection reanalyzed", "inspection_id", id, "photos", len(outcomes))
	return outcomes, nil
}

// Retake removes the photo and analysis of a step and places the cursor on
// it.
func (s *Service) Retake(ctx context.Context, id, section, step string) (*State, error) {
	defer s.lock(id)()
	in, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.MoveTo(section, step); err != nil {
		return nil, err
	}
	if err := s.store.DeletePhoto(ctx, id, section, step); err != nil {
		return nil, fmt.Errorf("deleting photo: %w", err)
	}
	delete(sess.Photos, wizard.PhotoKey(section, step))
	if err := s.saveSession(ctx, id, sess); err != nil {
		return nil, fmt.Errorf("saving cursor: %w", err)
	}
	return s.state(in, sess), nil
}

// Photo returns the stored photo of a step.
func (s *Service) Photo(ctx context.Context, id, section, step string) (storage.Photo, error) {
	return s.store.GetPhoto(ctx, id, section, step)
}

// Outcome returns the stored analysis of a step with its offered actions.
func (s *Service) Outcome(ctx context.Context, id, section, step string) (analysis.Outcome, error) {
	a, err := s.store.GetAnalysis(ctx, id, section, step)
	if err != nil {
		return analysis.Outcome{}, err
	}
	return analysis.NewOutcome(a.Result, s.analyzer.SetupHint()), nil
}
