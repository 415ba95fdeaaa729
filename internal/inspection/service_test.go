package inspection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kalambet/roofcheck/internal/analysis"
	"github.com/kalambet/roofcheck/internal/report"
	"github.com/kalambet/roofcheck/internal/storage"
	"github.com/kalambet/roofcheck/internal/vision"
	"github.com/kalambet/roofcheck/internal/wizard"
)

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, kind analysis.Kind, name, imageURL string) *analysis.Result
	calls     atomic.Int32
}

func (m *mockAnalyzer) Analyze(ctx context.Context, kind analysis.Kind, name, imageURL string) (*analysis.Result, error) {
	m.calls.Add(1)
	if m.analyzeFn != nil {
		r := m.analyzeFn(ctx, kind, name, imageURL)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return r, nil
	}
	return &analysis.Result{OverallQuality: analysis.QualityGood, Confidence: 90, Source: analysis.SourceAPI,
		Issues: []analysis.Issue{}, Recommendations: []string{}}, nil
}

// blockingAnalyzer makes the first analysis wait until release is closed.
// started is closed once that analysis is running.
func blockingAnalyzer(env *testEnv) (started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	var n atomic.Int32
	env.analyzer.analyzeFn = func(context.Context, analysis.Kind, string, string) *analysis.Result {
		k := n.Add(1)
		if k == 1 {
			close(started)
			<-release
		}
		return &analysis.Result{OverallQuality: analysis.QualityGood, Confidence: int(k), Source: analysis.SourceAPI}
	}
	return started, release
}

func (m *mockAnalyzer) SetupHint() string { return "set ROOFCHECK_VISION_API_KEY" }

type mockReports struct {
	got report.Input
}

func (m *mockReports) Generate(_ context.Context, in report.Input) report.Report {
	m.got = in
	return report.Report{Body: "REPORT", Generator: report.GeneratorFallback}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

type testEnv struct {
	svc      *Service
	store    *storage.Store
	analyzer *mockAnalyzer
	reports  *mockReports
}

func newTestEnv(t *testing.T, async bool) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cat, err := wizard.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	env := &testEnv{store: store, analyzer: &mockAnalyzer{}, reports: &mockReports{}}
	env.svc = New(Options{Store: store, Catalog: cat, Analyzer: env.analyzer, Reports: env.reports, Async: async})
	return env
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	in, err := e.svc.Create(context.Background(), "12 Elm St", "Dana")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return in.ID
}

func TestCreateAndState(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.create(t)

	st, err := env.svc.State(context.Background(), id)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.Section != wizard.SectionElevations || st.Step == nil || st.Step.Key != "front" {
		t.Errorf("state = %+v", st)
	}
	if st.Captured != 0 || st.Total != 20 {
		t.Errorf("progress = %d/%d, want 0/20", st.Captured, st.Total)
	}

	if _, err := env.svc.State(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("State(missing) err = %v, want ErrNotFound", err)
	}
}

func TestCaptureAnalyzesAndAdvances(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Advance(ctx, id); !errors.Is(err, wizard.ErrPhotoRequired) {
		t.Fatalf("Advance err = %v, want ErrPhotoRequired", err)
	}

	res, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 2048, 1024))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Width != 1024 || res.Height != 512 {
		t.Errorf("size = %dx%d, want 1024x512", res.Width, res.Height)
	}
	if res.Outcome == nil || res.Outcome.Status != analysis.StatusCompleted {
		t.Fatalf("outcome = %+v", res.Outcome)
	}

	st, err := env.svc.Advance(ctx, id)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if st.Step.Key != "right" || st.Captured != 1 {
		t.Errorf("state step = %s, captured = %d", st.Step.Key, st.Captured)
	}

	o, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front")
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if o.Result.Confidence != 90 {
		t.Errorf("confidence = %d, want 90", o.Result.Confidence)
	}
}

func TestCaptureRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", []byte("not an image")); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := env.svc.Capture(ctx, id, wizard.SectionHail, wizard.StepHailHits, pngBytes(t, 4, 4)); !errors.Is(err, ErrNotPhotoStep) {
		t.Errorf("err = %v, want ErrNotPhotoStep", err)
	}
	if _, err := env.svc.Capture(ctx, id, "attic", "front", pngBytes(t, 4, 4)); !errors.Is(err, wizard.ErrUnknownStep) {
		t.Errorf("err = %v, want ErrUnknownStep", err)
	}
	if env.analyzer.calls.Load() != 0 {
		t.Errorf("analyzer called %d times", env.analyzer.calls.Load())
	}
}

func TestRecaptureReplacesAnalysis(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	n := 0
	env.analyzer.analyzeFn = func(context.Context, analysis.Kind, string, string) *analysis.Result {
		n++
		return &analysis.Result{OverallQuality: analysis.QualityGood, Confidence: n}
	}
	for range 2 {
		if _, err := env.svc.Capture(ctx, id, wizard.SectionRidge, "ridge-closeup", pngBytes(t, 8, 8)); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	o, err := env.svc.Outcome(ctx, id, wizard.SectionRidge, "ridge-closeup")
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if o.Result.Confidence != 2 {
		t.Errorf("confidence = %d, want 2 (latest capture)", o.Result.Confidence)
	}
}

func TestRetake(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := env.svc.Advance(ctx, id); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	st, err := env.svc.Retake(ctx, id, wizard.SectionElevations, "front")
	if err != nil {
		t.Fatalf("Retake: %v", err)
	}
	if st.Step == nil || st.Step.Key != "front" {
		t.Fatalf("step = %+v, want front", st.Step)
	}
	if st.Step.Status != wizard.StatusPending {
		t.Errorf("status = %q, want pending", st.Step.Status)
	}
	if _, err := env.svc.Photo(ctx, id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Photo err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Outcome err = %v, want ErrNotFound", err)
	}
}

func TestRetakeDuringAnalysisDiscardsResult(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)
	started, release := blockingAnalyzer(env)

	data := pngBytes(t, 8, 8)
	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", data)
		done <- err
	}()
	<-started
	if _, err := env.svc.Retake(ctx, id, wizard.SectionElevations, "front"); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if _, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Outcome err = %v, want ErrNotFound", err)
	}
	in, err := env.svc.ReportInput(ctx, id)
	if err != nil {
		t.Fatalf("ReportInput: %v", err)
	}
	if len(in.Steps) != 0 || in.Counts.Total != 0 {
		t.Errorf("report has %d steps and %d photos, want none", len(in.Steps), in.Counts.Total)
	}
}

func TestSlowAnalysisDoesNotOverwriteNewerCapture(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)
	started, release := blockingAnalyzer(env)

	data := pngBytes(t, 8, 8)
	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Capture(ctx, id, wizard.SectionRidge, "ridge-closeup", data)
		done <- err
	}()
	<-started
	if _, err := env.svc.Capture(ctx, id, wizard.SectionRidge, "ridge-closeup", pngBytes(t, 12, 12)); err != nil {
		t.Fatalf("second Capture: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Capture: %v", err)
	}

	o, err := env.svc.Outcome(ctx, id, wizard.SectionRidge, "ridge-closeup")
	if err != nil {
		t.Fatalf("Outcome: %v", err)
	}
	if o.Result.Confidence != 2 {
		t.Errorf("confidence = %d, want 2 (second capture)", o.Result.Confidence)
	}
}

func TestReanalyzeSkipsRetakenPhoto(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)
	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	started, release := blockingAnalyzer(env)

	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Reanalyze(ctx, id)
		done <- err
	}()
	<-started
	if _, err := env.svc.Retake(ctx, id, wizard.SectionElevations, "front"); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	if _, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Outcome err = %v, want ErrNotFound", err)
	}
}

func TestAnalysisCancelledStoresNothing(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.create(t)
	ctx, cancel := context.WithCancel(context.Background())
	env.analyzer.analyzeFn = func(context.Context, analysis.Kind, string, string) *analysis.Result {
		cancel()
		return &analysis.Result{OverallQuality: analysis.QualityGood}
	}

	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8)); !errors.Is(err, context.Canceled) {
		t.Errorf("Capture err = %v, want context.Canceled", err)
	}
	if _, err := env.svc.Outcome(context.Background(), id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Outcome err = %v, want ErrNotFound", err)
	}
}

func TestCaptureWithoutCredentialMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	env := newTestEnv(t, false)
	client := vision.NewClientWithBaseURL("", srv.URL)
	env.svc.analyzer = analysis.NewAnalyzer(client, nil, "Run roofcheck config set-api-key")
	ctx := context.Background()
	id := env.create(t)

	res, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 16, 16))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	o := res.Outcome
	if !o.CredentialMissing || o.SetupHint == "" {
		t.Errorf("outcome = %+v, want credentialMissing with hint", o)
	}
	if !o.Result.Simulated || o.Result.Source != analysis.SourceSimulated {
		t.Errorf("result = %+v, want simulated", o.Result)
	}
	if q := o.Result.OverallQuality; q != analysis.QualityGood && q != analysis.QualityNeedsImprovement {
		t.Errorf("quality = %q", q)
	}
	hasContinue := false
	for _, a := range o.Actions {
		if a == analysis.ActionContinue || a == analysis.ActionContinueAnyway {
			hasContinue = true
		}
	}
	if !hasContinue {
		t.Errorf("actions = %v, want a continue action", o.Actions)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestCaptureAsyncEnqueuesJob(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	id := env.create(t)

	res, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if !res.Pending || res.JobID == "" || res.Outcome != nil {
		t.Fatalf("result = %+v, want pending job", res)
	}
	if env.analyzer.calls.Load() != 0 {
		t.Error("analyzer called synchronously")
	}

	job, err := env.store.ClaimNextJob(ctx, []string{JobAnalyzePhoto})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	if err := env.svc.HandleJob(ctx, *job); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if _, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front"); err != nil {
		t.Errorf("Outcome after job: %v", err)
	}
}

func TestHandleJobSkipsRemovedPhoto(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := env.svc.Retake(ctx, id, wizard.SectionElevations, "front"); err != nil {
		t.Fatalf("Retake: %v", err)
	}
	job, _ := env.store.ClaimNextJob(ctx, []string{JobAnalyzePhoto})
	if err := env.svc.HandleJob(ctx, *job); err != nil {
		t.Errorf("HandleJob: %v", err)
	}
	if err := env.svc.HandleJob(ctx, storage.Job{Type: "other"}); err == nil {
		t.Error("HandleJob accepted unknown type")
	}
}

func TestHandleJobSkipsPhotoReplacedDuringAnalysis(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	job, err := env.store.ClaimNextJob(ctx, []string{JobAnalyzePhoto})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob: %v, %v", job, err)
	}
	started, release := blockingAnalyzer(env)

	done := make(chan error, 1)
	go func() { done <- env.svc.HandleJob(ctx, *job) }()
	<-started
	if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, "front", pngBytes(t, 12, 12)); err != nil {
		t.Fatalf("second Capture: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("HandleJob: %v", err)
	}
	if _, err := env.svc.Outcome(ctx, id, wizard.SectionElevations, "front"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Outcome err = %v, want ErrNotFound until the second job runs", err)
	}
}

func TestReanalyze(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	steps := []string{"front", "right", "rear", "left"}
	for _, step := range steps {
		if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, step, pngBytes(t, 8, 8)); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	env.analyzer.calls.Store(0)

	outcomes, err := env.svc.Reanalyze(ctx, id)
	if err != nil {
		t.Fatalf("Reanalyze: %v", err)
	}
	if len(outcomes) != len(steps) {
		t.Errorf("outcomes = %d, want %d", len(outcomes), len(steps))
	}
	if env.analyzer.calls.Load() != int32(len(steps)) {
		t.Errorf("calls = %d, want %d", env.analyzer.calls.Load(), len(steps))
	}
	if _, ok := outcomes[wizard.PhotoKey(wizard.SectionElevations, "rear")]; !ok {
		t.Error("missing outcome for rear")
	}
}

func TestAccessoriesLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	a, err := env.svc.AddAccessory(ctx, id, wizard.SatelliteDish)
	if err != nil {
		t.Fatalf("AddAccessory: %v", err)
	}
	if _, err := env.svc.AddAccessory(ctx, id, "hot-tub"); !errors.Is(err, wizard.ErrUnknownAccessoryType) {
		t.Errorf("err = %v, want ErrUnknownAccessoryType", err)
	}
	if _, err := env.svc.Capture(ctx, id, wizard.SectionAccessories, a.ID, pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture accessory: %v", err)
	}

	iv, err := env.svc.Interview(ctx, id)
	if err != nil {
		t.Fatalf("Interview: %v", err)
	}
	if !iv.HasSatelliteDish {
		t.Error("HasSatelliteDish = false with a dish recorded")
	}

	if _, err := env.svc.EditAccessory(ctx, id, 3, "vent"); !errors.Is(err, wizard.ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := env.svc.DeleteAccessory(ctx, id, 0); err != nil {
		t.Fatalf("DeleteAccessory: %v", err)
	}
	if _, err := env.svc.Photo(ctx, id, wizard.SectionAccessories, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Photo err = %v, want ErrNotFound", err)
	}
	list, err := env.svc.Accessories(ctx, id)
	if err != nil || len(list) != 0 {
		t.Errorf("Accessories = %v, %v", list, err)
	}
}

func TestHailHits(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	var v HailView
	var err error
	for range 8 {
		if v, err = env.svc.AddHailHit(ctx, id); err != nil {
			t.Fatalf("AddHailHit: %v", err)
		}
	}
	if v.Count != 8 || len(v.Choices) != 8 || v.Message != "" {
		t.Errorf("view = %+v", v)
	}
	if v, err = env.svc.SelectCloseup(ctx, id, 1, 4); err != nil {
		t.Fatalf("SelectCloseup: %v", err)
	}
	if v.Choices[3].Status != "Selected for closeup 1" {
		t.Errorf("status = %q", v.Choices[3].Status)
	}
	if v, err = env.svc.RemoveHailHit(ctx, id); err != nil {
		t.Fatalf("RemoveHailHit: %v", err)
	}
	if v.Count != 7 || v.Message != "Please circle at least 8 hail hits first." {
		t.Errorf("view = %+v", v)
	}
	if _, err := env.svc.SelectCloseup(ctx, id, 1, 2); !errors.Is(err, wizard.ErrNotEnoughHailHits) {
		t.Errorf("err = %v, want ErrNotEnoughHailHits", err)
	}

	persisted, err := env.svc.HailHits(ctx, id)
	if err != nil || persisted.Count != 7 {
		t.Errorf("HailHits = %+v, %v", persisted, err)
	}
}

func TestUpdateInterview(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	notes, zelle, phone := "Dented vents", wizard.AnswerYes, "555.123.4567"
	v, err := env.svc.UpdateInterview(ctx, id, InterviewUpdate{DamageNotes: &notes, HasZelle: &zelle, ZellePhone: &phone})
	if err != nil {
		t.Fatalf("UpdateInterview: %v", err)
	}
	if v.ZellePhone != "(555) 123-4567" {
		t.Errorf("phone = %q", v.ZellePhone)
	}
	if !v.Complete {
		t.Errorf("Complete = false, checklist %+v", v.Checklist)
	}

	bad := "maybe"
	if _, err := env.svc.UpdateInterview(ctx, id, InterviewUpdate{HasZelle: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	got, _ := env.svc.Interview(ctx, id)
	if got.DamageNotes != notes {
		t.Errorf("DamageNotes = %q, want unchanged", got.DamageNotes)
	}
}

func TestCompleteRequiresInterview(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	if _, err := env.svc.Complete(ctx, id); !errors.Is(err, wizard.ErrInterviewIncomplete) {
		t.Errorf("err = %v, want ErrInterviewIncomplete", err)
	}
}

func TestComplete(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	id := env.create(t)

	for _, step := range []string{"front", "right"} {
		if _, err := env.svc.Capture(ctx, id, wizard.SectionElevations, step, pngBytes(t, 8, 8)); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	if _, err := env.svc.Capture(ctx, id, wizard.SectionHail, "test-square", pngBytes(t, 8, 8)); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := env.svc.AddAccessory(ctx, id, "vent"); err != nil {
		t.Fatalf("AddAccessory: %v", err)
	}
	if _, err := env.svc.AddHailHit(ctx, id); err != nil {
		t.Fatalf("AddHailHit: %v", err)
	}

	notes, no := "Discussed", wizard.AnswerNo
	if _, err := env.svc.UpdateInterview(ctx, id, InterviewUpdate{DamageNotes: &notes, HasZelle: &no}); err != nil {
		t.Fatalf("UpdateInterview: %v", err)
	}

	rep, err := env.svc.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rep.Body != "REPORT" {
		t.Errorf("Body = %q", rep.Body)
	}

	in := env.reports.got
	if in.Counts.Elevation != 2 || in.Counts.HailTest != 1 || in.Counts.Total != 3 {
		t.Errorf("counts = %+v", in.Counts)
	}
	if in.HailHits != 1 || len(in.Accessories) != 1 || in.Accessories[0] != "Vent" {
		t.Errorf("input = %+v", in)
	}
	if len(in.Steps) != 3 || in.Steps[0].StepName != "Front Elevation" {
		t.Errorf("steps = %+v", in.Steps)
	}

	insp, _ := env.store.GetInspection(ctx, id)
	if insp.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want completed", insp.Status)
	}
	iv, _ := env.svc.Interview(ctx, id)
	if iv.TotalPhotos != 3 || iv.CompletedAt.IsZero() {
		t.Errorf("interview = %+v", iv.Interview)
	}
	stored, err := env.svc.Report(ctx, id)
	if err != nil || stored.Body != "REPORT" {
		t.Errorf("Report = %+v, %v", stored, err)
	}
}
