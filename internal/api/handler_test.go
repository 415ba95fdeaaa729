package api

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalambet/roofcheck/internal/analysis"
	"github.com/kalambet/roofcheck/internal/imaging"
	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/report"
	"github.com/kalambet/roofcheck/internal/storage"
	"github.com/kalambet/roofcheck/internal/vision"
	"github.com/kalambet/roofcheck/internal/wizard"
)

const testToken = "test-token-12345"

type testServer struct {
	handler  http.Handler
	svc      *inspection.Service
	store    *storage.Store
	upstream *atomic.Int32
}

// newTestServer wires the real service with no vision credential, so every
// analysis is simulated and reports use the template.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unexpected call", http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	client := vision.NewClientWithBaseURL("", upstream.URL)
	cat, err := wizard.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	svc := inspection.New(inspection.Options{
		Store:    store,
		Catalog:  cat,
		Analyzer: analysis.NewAnalyzer(client, nil, "set an API key"),
		Images:   imaging.NewProcessor(0, 0),
		Reports:  report.NewGenerator(client, "", 0),
	})
	return &testServer{
		handler:  NewHandler(Deps{Service: svc, Token: testToken}),
		svc:      svc,
		store:    store,
		upstream: &hits,
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (s *testServer) do(t *testing.T, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func (s *testServer) create(t *testing.T) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/inspections", `{"address":"12 Elm St","inspector":"Dana"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var in inspectionJSON
	if err := json.NewDecoder(rr.Body).Decode(&in); err != nil {
		t.Fatalf("decoding inspection: %v", err)
	}
	return in.ID
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func multipartPhoto(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) (msg, typ string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Message, body.Error.Type
}

func TestHealthNoAuth(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	for _, token := range []string{"", "wrong-token"} {
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, authReq(http.MethodGet, "/inspections", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want %d", token, rr.Code, http.StatusUnauthorized)
		}
		if _, typ := decodeError(t, rr); typ != "authentication_error" {
			t.Errorf("token %q: type = %q, want authentication_error", token, typ)
		}
	}
}

func TestEmptyTokenRejectsEverything(t *testing.T) {
	s := newTestServer(t)
	h := NewHandler(Deps{Service: s.svc, Token: ""})

	for _, header := range []string{"", "Bearer ", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/inspections", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", header, rr.Code, http.StatusUnauthorized)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/catalog", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var cat wizard.Catalog
	if err := json.NewDecoder(rr.Body).Decode(&cat); err != nil {
		t.Fatalf("decoding catalog: %v", err)
	}
	if len(cat.Sections) != 7 {
		t.Errorf("sections = %d, want 7", len(cat.Sections))
	}
	if len(cat.AccessoryTypes) != 7 {
		t.Errorf("accessory types = %d, want 7", len(cat.AccessoryTypes))
	}
}

func TestCreateListAndState(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	rr := s.do(t, http.MethodGet, "/inspections?limit=5", "")
	var list []inspectionJSON
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != id || list[0].Address != "12 Elm St" {
		t.Errorf("list = %+v", list)
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("state status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var st struct {
		Inspection inspectionJSON `json:"inspection"`
		Section    string         `json:"section"`
		Step       struct {
			Key    string `json:"key"`
			Status string `json:"status"`
		} `json:"step"`
		Total int `json:"total"`
	}
	json.NewDecoder(rr.Body).Decode(&st)
	if st.Inspection.Status != storage.StatusInProgress {
		t.Errorf("status = %q, want %q", st.Inspection.Status, storage.StatusInProgress)
	}
	if st.Section != wizard.SectionElevations || st.Step.Key != "front" {
		t.Errorf("cursor = %s/%s, want elevations/front", st.Section, st.Step.Key)
	}
	if st.Total != 20 {
		t.Errorf("total = %d, want 20", st.Total)
	}

	if rr := s.do(t, http.MethodGet, "/inspections/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing inspection status = %d, want 404", rr.Code)
	}
}

func TestAdvanceRequiresPhoto(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	rr := s.do(t, http.MethodPost, "/inspections/"+id+"/advance", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	msg, _ := decodeError(t, rr)
	if !strings.Contains(msg, "Please capture a photo of Front Elevation") {
		t.Errorf("message = %q", msg)
	}

	rr = s.do(t, http.MethodPost, "/inspections/"+id+"/back", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("back at start status = %d, want 409", rr.Code)
	}
}

func TestCaptureMultipartWithoutCredential(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	body, ct := multipartPhoto(t, "photo", pngBytes(t, 2048, 1024))
	req := httptest.NewRequest(http.MethodPut, "/inspections/"+id+"/photos/elevations/front", body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var res inspection.CaptureResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decoding capture result: %v", err)
	}
	if res.Width != 1024 || res.Height != 512 {
		t.Errorf("size = %dx%d, want 1024x512", res.Width, res.Height)
	}
	if res.Outcome == nil || !res.Outcome.CredentialMissing {
		t.Fatalf("outcome = %+v, want credentialMissing", res.Outcome)
	}
	q := res.Outcome.Result.OverallQuality
	if q != analysis.QualityGood && q != analysis.QualityNeedsImprovement {
		t.Errorf("overallQuality = %q", q)
	}
	if res.Outcome.SetupHint != "set an API key" {
		t.Errorf("setupHint = %q", res.Outcome.SetupHint)
	}
	var canContinue bool
	for _, a := range res.Outcome.Actions {
		if a == analysis.ActionContinue || a == analysis.ActionContinueAnyway {
			canContinue = true
		}
	}
	if !canContinue {
		t.Errorf("actions = %v, want continue or continue_anyway", res.Outcome.Actions)
	}
	if n := s.upstream.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/photos/elevations/front", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("get photo: status = %d, content type = %q", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/analyses/elevations/front", "")
	if rr.Code != http.StatusOK {
		t.Errorf("get analysis status = %d", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/inspections/"+id+"/advance", "")
	if rr.Code != http.StatusOK {
		t.Errorf("advance after capture status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCaptureDataURL(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	body, _ := json.Marshal(captureRequest{DataURL: imaging.DataURL(pngBytes(t, 16, 16))})
	rr := s.do(t, http.MethodPut, "/inspections/"+id+"/photos/elevations/right", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCaptureErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	tests := []struct {
		name string
		url  string
		body string
		want int
	}{
		{"not an image", "/inspections/" + id + "/photos/elevations/front", `{"data_url":"data:image/png;base64,aGVsbG8="}`, http.StatusBadRequest},
		{"missing data url", "/inspections/" + id + "/photos/elevations/front", `{}`, http.StatusBadRequest},
		{"unknown step", "/inspections/" + id + "/photos/elevations/nowhere", `{"data_url":"x"}`, http.StatusNotFound},
		{"checklist step", "/inspections/" + id + "/photos/hail-test-square/hail-hits", `{"data_url":"data:image/png;base64,aGVsbG8="}`, http.StatusBadRequest},
		{"unknown inspection", "/inspections/missing/photos/elevations/front", `{"data_url":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPut, tt.url, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d; body = %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCaptureTooLarge(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	req := httptest.NewRequest(http.MethodPut, "/inspections/"+id+"/photos/elevations/front",
		bytes.NewReader(make([]byte, maxUploadSize+1)))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "image/jpeg")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestCaptureOversizedImage(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	huge := append([]byte(nil), buf.Bytes()[:33]...)
	binary.BigEndian.PutUint32(huge[16:20], 50000)
	binary.BigEndian.PutUint32(huge[20:24], 50000)
	binary.BigEndian.PutUint32(huge[29:33], crc32.ChecksumIEEE(huge[12:29]))

	body, _ := json.Marshal(captureRequest{DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(huge)})
	rr := s.do(t, http.MethodPut, "/inspections/"+id+"/photos/elevations/front", string(body))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413; body = %s", rr.Code, rr.Body.String())
	}
	if _, err := s.svc.Photo(t.Context(), id, wizard.SectionElevations, "front"); err == nil {
		t.Error("oversized photo was stored")
	}
}

func TestRetake(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	body, _ := json.Marshal(captureRequest{DataURL: imaging.DataURL(pngBytes(t, 16, 16))})
	if rr := s.do(t, http.MethodPut, "/inspections/"+id+"/photos/elevations/front", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("capture status = %d", rr.Code)
	}

	rr := s.do(t, http.MethodDelete, "/inspections/"+id+"/photos/elevations/front", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("retake status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr := s.do(t, http.MethodGet, "/inspections/"+id+"/photos/elevations/front", ""); rr.Code != http.StatusNotFound {
		t.Errorf("photo after retake status = %d, want 404", rr.Code)
	}
}

func TestAccessoryRoutes(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	rr := s.do(t, http.MethodPost, "/inspections/"+id+"/accessories", `{"type":"vent"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var a wizard.Accessory
	json.NewDecoder(rr.Body).Decode(&a)
	if a.Type != "vent" || a.ID == "" {
		t.Errorf("accessory = %+v", a)
	}

	if rr := s.do(t, http.MethodPost, "/inspections/"+id+"/accessories", `{"type":"chimney-pot"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rr.Code)
	}
	if rr := s.do(t, http.MethodPut, "/inspections/"+id+"/accessories/0", `{"type":"satellite-dish"}`); rr.Code != http.StatusOK {
		t.Errorf("edit status = %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPut, "/inspections/"+id+"/accessories/5", `{"type":"vent"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("edit out of range status = %d, want 400", rr.Code)
	}
	if rr := s.do(t, http.MethodDelete, "/inspections/"+id+"/accessories/x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric index status = %d, want 400", rr.Code)
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/accessories", "")
	var list []wizard.Accessory
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].Type != "satellite-dish" {
		t.Errorf("accessories = %+v", list)
	}

	if rr := s.do(t, http.MethodDelete, "/inspections/"+id+"/accessories/0", ""); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
}

func TestHailHitRoutes(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	var v inspection.HailView
	for range 7 {
		rr := s.do(t, http.MethodPost, "/inspections/"+id+"/hail-hits", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("add status = %d", rr.Code)
		}
		json.NewDecoder(rr.Body).Decode(&v)
		if v.Message != "Please circle at least 8 hail hits first." {
			t.Errorf("count %d: message = %q", v.Count, v.Message)
		}
	}

	rr := s.do(t, http.MethodPut, "/inspections/"+id+"/hail-hits/closeups/1", `{"number":1}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("select below minimum status = %d, want 409", rr.Code)
	}

	s.do(t, http.MethodPost, "/inspections/"+id+"/hail-hits", "")
	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/hail-hits", "")
	v = inspection.HailView{}
	json.NewDecoder(rr.Body).Decode(&v)
	if v.Count != 8 || len(v.Choices) != 8 || v.Message != "" {
		t.Errorf("at 8: count = %d, choices = %d, message = %q", v.Count, len(v.Choices), v.Message)
	}

	rr = s.do(t, http.MethodPut, "/inspections/"+id+"/hail-hits/closeups/2", `{"number":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("select status = %d, body = %s", rr.Code, rr.Body.String())
	}
	v = inspection.HailView{}
	json.NewDecoder(rr.Body).Decode(&v)
	if v.Hits[2].CloseupSlot != 2 {
		t.Errorf("hit 3 slot = %d, want 2", v.Hits[2].CloseupSlot)
	}

	rr = s.do(t, http.MethodDelete, "/inspections/"+id+"/hail-hits", "")
	v = inspection.HailView{}
	json.NewDecoder(rr.Body).Decode(&v)
	if v.Count != 7 {
		t.Errorf("after remove count = %d, want 7", v.Count)
	}
}

func TestInterviewAndComplete(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	body, _ := json.Marshal(captureRequest{DataURL: imaging.DataURL(pngBytes(t, 16, 16))})
	s.do(t, http.MethodPut, "/inspections/"+id+"/photos/elevations/front", string(body))

	rr := s.do(t, http.MethodPost, "/inspections/"+id+"/complete", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("complete before interview status = %d, want 409", rr.Code)
	}
	if msg, _ := decodeError(t, rr); !strings.Contains(msg, "Discuss damage findings") {
		t.Errorf("message = %q", msg)
	}

	if rr := s.do(t, http.MethodPut, "/inspections/"+id+"/interview", `{"hasZelle":"maybe"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid answer status = %d, want 400", rr.Code)
	}

	rr = s.do(t, http.MethodPut, "/inspections/"+id+"/interview",
		`{"damageNotes":"Walked the roof together","hasZelle":"yes","zellePhone":"5551234567"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update interview status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var iv inspection.InterviewView
	json.NewDecoder(rr.Body).Decode(&iv)
	if iv.ZellePhone != "(555) 123-4567" || !iv.Complete {
		t.Errorf("interview = %+v", iv)
	}

	if rr := s.do(t, http.MethodGet, "/inspections/"+id+"/report", ""); rr.Code != http.StatusNotFound {
		t.Errorf("report before completion status = %d, want 404", rr.Code)
	}

	rr = s.do(t, http.MethodPost, "/inspections/"+id+"/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var rep report.Report
	json.NewDecoder(rr.Body).Decode(&rep)
	if rep.Generator != report.GeneratorFallback || !strings.Contains(rep.Body, "ROOF INSPECTION REPORT") {
		t.Errorf("report = %+v", rep)
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/report?format=markdown", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# Roof Inspection Report") {
		t.Errorf("markdown report: status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = s.do(t, http.MethodGet, "/inspections/"+id+"/report?download=1", "")
	cd := rr.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="roof-inspection-report-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	if rr := s.do(t, http.MethodGet, "/inspections/"+id+"/report?format=pdf", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rr.Code)
	}
}

func TestClaimDocumentRejectsNonPDF(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t)

	req := httptest.NewRequest(http.MethodPost, "/inspections/"+id+"/interview/claim-document", strings.NewReader("plain text"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/pdf")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=500", 100},
		{"limit=-1", 20},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/inspections?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
