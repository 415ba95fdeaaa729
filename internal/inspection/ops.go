package inspection

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/roofcheck/internal/claimdoc"
	"github.com/kalambet/roofcheck/internal/report"
	"github.com/kalambet/roofcheck/internal/storage"
	"github.com/kalambet/roofcheck/internal/wizard"
)

// mutate applies fn to the session of an inspection under its lock and
// persists the result.
func (s *Service) mutate(ctx context.Context, id string, fn func(*wizard.Session) error) (*wizard.Session, error) {
	defer s.lock(id)()
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.saveSession(ctx, id, sess); err != nil {
		return nil, fmt.Errorf("saving wizard state: %w", err)
	}
	return sess, nil
}

// --- Accessories ---

func (s *Service) Accessories(ctx context.Context, id string) ([]wizard.Accessory, error) {
	st, err := s.store.LoadWizardState(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Accessories == nil {
		return []wizard.Accessory{}, nil
	}
	return st.Accessories, nil
}

func (s *Service) AddAccessory(ctx context.Context, id, typ string) (wizard.Accessory, error) {
	var a wizard.Accessory
	_, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		var err error
		a, err = sess.AddAccessory(typ)
		return err
	})
	return a, err
}

func (s *Service) EditAccessory(ctx context.Context, id string, index int, typ string) (wizard.Accessory, error) {
	var a wizard.Accessory
	_, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		var err error
		a, err = sess.EditAccessory(index, typ)
		return err
	})
	return a, err
}

// DeleteAccessory removes an accessory together with its photo and analysis.
func (s *Service) DeleteAccessory(ctx context.Context, id string, index int) (wizard.Accessory, error) {
	var a wizard.Accessory
	_, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		var err error
		if a, err = sess.DeleteAccessory(index); err != nil {
			return err
		}
		if err := s.store.DeletePhoto(ctx, id, wizard.SectionAccessories, a.ID); err != nil {
			return fmt.Errorf("deleting accessory photo: %w", err)
		}
		return nil
	})
	return a, err
}

// --- Hail hits ---

// HailView is the test square state offered to the inspector.
type HailView struct {
	Hits    []wizard.HailHit       `json:"hits"`
	Count   int                    `json:"count"`
	MinHits int                    `json:"minHits"`
	Choices []wizard.CloseupChoice `json:"choices"`
	Message string                 `json:"message,omitempty"`
}

func hailView(sess *wizard.Session) HailView {
	v := HailView{Hits: sess.HailHits, Count: len(sess.HailHits), MinHits: sess.MinHits}
	if v.Hits == nil {
		v.Hits = []wizard.HailHit{}
	}
	v.Choices, v.Message = sess.CloseupChoices()
	return v
}

func (s *Service) HailHits(ctx context.Context, id string) (HailView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return HailView{}, err
	}
	return hailView(sess), nil
}

func (s *Service) AddHailHit(ctx context.Context, id string) (HailView, error) {
	sess, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		sess.AddHailHit()
		return nil
	})
	if err != nil {
		return HailView{}, err
	}
	return hailView(sess), nil
}

// RemoveHailHit pops the last hit. It is a no-op without hits.
func (s *Service) RemoveHailHit(ctx context.Context, id string) (HailView, error) {
	sess, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		sess.RemoveHailHit()
		return nil
	})
	if err != nil {
		return HailView{}, err
	}
	return hailView(sess), nil
}

func (s *Service) SelectCloseup(ctx context.Context, id string, slot, number int) (HailView, error) {
	sess, err := s.mutate(ctx, id, func(sess *wizard.Session) error {
		return sess.SelectCloseup(slot, number)
	})
	if err != nil {
		return HailView{}, err
	}
	return hailView(sess), nil
}

// --- Interview ---

// InterviewView is the interview with its derived checklist.
type InterviewView struct {
	wizard.Interview
	Checklist []wizard.ChecklistItem `json:"checklist"`
	Complete  bool                   `json:"complete"`
}

// InterviewUpdate holds the fields to change. Nil fields are left as is.
type InterviewUpdate struct {
	DamageNotes    *string `json:"damageNotes"`
	SatelliteInUse *string `json:"satelliteInUse"`
	SatelliteNotes *string `json:"satelliteNotes"`
	HasZelle       *string `json:"hasZelle"`
	ZellePhone     *string `json:"zellePhone"`
	ZelleNotes     *string `json:"zelleNotes"`
	ClaimNotes     *string `json:"claimNotes"`
}

func (u InterviewUpdate) apply(iv *wizard.Interview) error {
	for name, v := range map[string]*string{"satelliteInUse": u.SatelliteInUse, "hasZelle": u.HasZelle} {
		if v != nil && !wizard.ValidAnswer(*v) {
			return fmt.Errorf("%w: %s must be yes, no or empty", ErrInvalidInput, name)
		}
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&iv.DamageNotes, u.DamageNotes)
	set(&iv.SatelliteInUse, u.SatelliteInUse)
	set(&iv.SatelliteNotes, u.SatelliteNotes)
	set(&iv.HasZelle, u.HasZelle)
	set(&iv.ZelleNotes, u.ZelleNotes)
	set(&iv.ClaimNotes, u.ClaimNotes)
	if u.ZellePhone != nil {
		iv.ZellePhone = wizard.FormatPhone(*u.ZellePhone)
	}
	return nil
}

func newInterviewView(iv wizard.Interview) InterviewView {
	return InterviewView{Interview: iv, Checklist: iv.Checklist(), Complete: iv.Complete()}
}

// interview loads the stored interview with the satellite dish flag derived
// from the accessories.
func (s *Service) interview(ctx context.Context, id string, sess *wizard.Session) (wizard.Interview, error) {
	iv, err := s.store.GetInterview(ctx, id)
	if err != nil {
		return wizard.Interview{}, err
	}
	iv.HasSatelliteDish = sess.HasSatelliteDish()
	return iv, nil
}

func (s *Service) Interview(ctx context.Context, id string) (InterviewView, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return InterviewView{}, err
	}
	iv, err := s.interview(ctx, id, sess)
	if err != nil {
		return InterviewView{}, err
	}
	return newInterviewView(iv), nil
}

func (s *Service) UpdateInterview(ctx context.Context, id string, u InterviewUpdate) (InterviewView, error) {
	iv, err := s.mutateInterview(ctx, id, u.apply)
	if err != nil {
		return InterviewView{}, err
	}
	return newInterviewView(iv), nil
}

// AttachClaimDocument extracts the text of a claim PDF and appends it to the
// interview's claim notes.
func (s *Service) AttachClaimDocument(ctx context.Context, id string, data []byte) (InterviewView, error) {
	text, err := claimdoc.ExtractText(data)
	if err != nil {
		return InterviewView{}, err
	}
	_, err = s.mutateInterview(ctx, id, func(iv *wizard.Interview) error {
		if existing := strings.TrimSpace(iv.ClaimNotes); existing != "" {
			iv.ClaimNotes = existing + "\n\n" + text
		} else {
			iv.ClaimNotes = text
		}
		return nil
	})
	if err != nil {
		return InterviewView{}, err
	}
	s.logger.Info("claim document attached", "inspection_id", id, "chars", len(text))
	return s.Interview(ctx, id)
}

func (s *Service) mutateInterview(ctx context.Context, id string, fn func(*wizard.Interview) error) (wizard.Interview, error) {
	defer s.lock(id)()
	sess, err := s.session(ctx, id)
	if err != nil {
		return wizard.Interview{}, err
	}
	iv, err := s.interview(ctx, id, sess)
	if err != nil {
		return wizard.Interview{}, err
	}
	if err := fn(&iv); err != nil {
		return wizard.Interview{}, err
	}
	if err := s.store.SaveInterview(ctx, id, iv); err != nil {
		return wizard.Interview{}, err
	}
	return iv, nil
}

// --- Completion and report ---

// Complete finalizes the interview, generates the report and marks the
// inspection completed.
func (s *Service) Complete(ctx context.Context, id string) (storage.Report, error) {
	defer s.lock(id)()
	in, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return storage.Report{}, err
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return storage.Report{}, err
	}
	iv, err := s.interview(ctx, id, sess)
	if err != nil {
		return storage.Report{}, err
	}
	if !iv.Complete() {
		var missing []string
		for _, it := range iv.Checklist() {
			if !it.Done {
				missing = append(missing, it.Label)
			}
		}
		return storage.Report{}, &wizard.RuleError{
			Err:     wizard.ErrInterviewIncomplete,
			Message: "Please complete the interview checklist: " + strings.Join(missing, ", ") + ".",
		}
	}

	now := s.now()
	input, err := s.reportInput(ctx, in, sess, iv)
	if err != nil {
		return storage.Report{}, err
	}
	iv.CompletedAt = now
	iv.TotalPhotos = input.Counts.Total
	input.Interview = iv
	if err := s.store.SaveInterview(ctx, id, iv); err != nil {
		return storage.Report{}, err
	}

	rep := s.reports.Generate(ctx, input)
	stored := storage.Report{InspectionID: id, Body: rep.Body, Generator: rep.Generator, GeneratedAt: rep.GeneratedAt}
	if err := s.store.SaveReport(ctx, stored); err != nil {
		return storage.Report{}, err
	}
	if err := s.store.MarkCompleted(ctx, id, now); err != nil {
		return storage.Report{}, fmt.Errorf("marking inspection completed: %w", err)
	}
	s.logger.Info("inspection completed", "inspection_id", id, "photos", iv.TotalPhotos, "generator", rep.Generator)
	return stored, nil
}

func (s *Service) reportInput(ctx context.Context, in storage.Inspection, sess *wizard.Session, iv wizard.Interview) (report.Input, error) {
	photos, err := s.store.ListPhotos(ctx, in.ID)
	if err != nil {
		return report.Input{}, fmt.Errorf("listing photos: %w", err)
	}
	sections := make([]string, len(photos))
	for i, p := range photos {
		sections[i] = p.Section
	}

	analyses, err := s.store.ListAnalyses(ctx, in.ID)
	if err != nil {
		return report.Input{}, fmt.Errorf("listing analyses: %w", err)
	}
	byKey := make(map[string]storage.Analysis, len(analyses))
	for _, a := range analyses {
		byKey[wizard.PhotoKey(a.Section, a.Step)] = a
	}

	input := report.Input{
		InspectionID: in.ID,
		Address:      in.Address,
		Inspector:    in.Inspector,
		Date:         in.CreatedAt,
		Counts:       report.CountPhotos(sections),
		HailHits:     len(sess.HailHits),
		Interview:    iv,
	}
	for i, sec := range s.catalog.Sections {
		for _, st := range sess.Steps(i) {
			if a, ok := byKey[wizard.PhotoKey(sec.Key, st.Key)]; ok {
				input.Steps = append(input.Steps, report.StepResult{
					Section: sec.Key, SectionName: sec.Name, Step: st.Key, StepName: st.Name, Result: a.Result,
				})
			}
		}
	}
	for _, a := range sess.Accessories {
		name := a.Type
		if t, ok := s.catalog.AccessoryType(a.Type); ok {
			name = t.Name
		}
		input.Accessories = append(input.Accessories, name)
	}
	return input, nil
}

// Report returns the stored report of a completed inspection.
func (s *Service) Report(ctx context.Context, id string) (storage.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ReportInput rebuilds the data a report is generated from, for rendering.
func (s *Service) ReportInput(ctx context.Context, id string) (report.Input, error) {
	in, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return report.Input{}, err
	}
	sess, err := s.session(ctx, id)
	if err != nil {
		return report.Input{}, err
	}
	iv, err := s.interview(ctx, id, sess)
	if err != nil {
		return report.Input{}, err
	}
	return s.reportInput(ctx, in, sess, iv)
}
