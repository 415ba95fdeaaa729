package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// maxUploadSize bounds photo and claim document uploads.
const maxUploadSize = 20 << 20 // 20MB

type Deps struct {
	Service *inspection.Service
	Token   string
	Logger  *slog.Logger
}

// NewHandler returns the HTTP API. Every route except /health requires the
// bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Token == "" {
		deps.Logger.Error("no API token configured, authenticated routes will reject every request")
	}

	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/catalog", handleCatalog(deps))
		r.Post("/inspections", handleCreateInspection(deps))
		r.Get("/inspections", handleListInspections(deps))
		r.Route("/inspections/{id}", func(r chi.Router) {
			r.Get("/", handleGetState(deps))
			r.Post("/advance", handleAdvance(deps))
			r.Post("/back", handleBack(deps))

			r.Put("/photos/{section}/{step}", handleCapture(deps))
			r.Get("/photos/{section}/{step}", handleGetPhoto(deps))
			r.Delete("/photos/{section}/{step}", handleRetake(deps))
			r.Get("/analyses/{section}/{step}", handleGetAnalysis(deps))
			r.Post("/reanalyze", handleReanalyze(deps))

			r.Get("/accessories", handleListAccessories(deps))
			r.Post("/accessories", handleAddAccessory(deps))
			r.Put("/accessories/{index}", handleEditAccessory(deps))
			r.Delete("/accessories/{index}", handleDeleteAccessory(deps))

			r.Get("/hail-hits", handleListHailHits(deps))
			r.Post("/hail-hits", handleAddHailHit(deps))
			r.Delete("/hail-hits", handleRemoveHailHit(deps))
			r.Put("/hail-hits/closeups/{slot}", handleSelectCloseup(deps))

			r.Get("/interview", handleGetInterview(deps))
			r.Put("/interview", handleUpdateInterview(deps))
			r.Post("/interview/claim-document", handleClaimDocument(deps))

			r.Post("/complete", handleComplete(deps))
			r.Get("/report", handleGetReport(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCatalog(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Service.Catalog())
	}
}

// inspectionJSON is the wire form of a stored inspection.
type inspectionJSON struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Inspector   string     `json:"inspector"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toInspectionJSON(in storage.Inspection) inspectionJSON {
	out := inspectionJSON{
		ID:        in.ID,
		Address:   in.Address,
		Inspector: in.Inspector,
		Status:    in.Status,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
	if !in.CompletedAt.IsZero() {
		t := in.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// stateJSON is an inspection together with its wizard state.
type stateJSON struct {
	Inspection inspectionJSON `json:"inspection"`
	*inspection.State
}

func writeState(w http.ResponseWriter, st *inspection.State) {
	writeJSON(w, http.StatusOK, stateJSON{Inspection: toInspectionJSON(st.Inspection), State: st})
}

type createInspectionRequest struct {
	Address   string `json:"address"`
	Inspector string `json:"inspector"`
}

func handleCreateInspection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createInspectionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}

		in, err := deps.Service.Create(r.Context(), req.Address, req.Inspector)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toInspectionJSON(in))
	}
}

func handleListInspections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		list, err := deps.Service.List(r.Context(), limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]inspectionJSON, len(list))
		for i, in := range list {
			out[i] = toInspectionJSON(in)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Service.State(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeState(w, st)
	}
}

func handleAdvance(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Service.Advance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeState(w, st)
	}
}

func handleBack(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Service.Back(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeState(w, st)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// pathInt parses a numeric URL parameter.
func pathInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s must be an integer", key)
		return 0, false
	}
	return v, true
}
