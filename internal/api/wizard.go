package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/roofcheck/internal/inspection"
	"github.com/kalambet/roofcheck/internal/report"
)

type accessoryRequest struct {
	Type string `json:"type"`
}

func decodeAccessory(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req accessoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return "", false
	}
	if req.Type == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "type is required")
		return "", false
	}
	return req.Type, true
}

func handleListAccessories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Service.Accessories(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleAddAccessory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ, ok := decodeAccessory(w, r)
		if !ok {
			return
		}
		a, err := deps.Service.AddAccessory(r.Context(), chi.URLParam(r, "id"), typ)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func handleEditAccessory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := pathInt(w, r, "index")
		if !ok {
			return
		}
		typ, ok := decodeAccessory(w, r)
		if !ok {
			return
		}
		a, err := deps.Service.EditAccessory(r.Context(), chi.URLParam(r, "id"), index, typ)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleDeleteAccessory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := pathInt(w, r, "index")
		if !ok {
			return
		}
		a, err := deps.Service.DeleteAccessory(r.Context(), chi.URLParam(r, "id"), index)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "accessory": a})
	}
}

// --- Hail hits ---

func handleListHailHits(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Service.HailHits(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleAddHailHit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Service.AddHailHit(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleRemoveHailHit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Service.RemoveHailHit(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

type closeupRequest struct {
	Number int `json:"number"`
}

func handleSelectCloseup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, ok := pathInt(w, r, "slot")
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req closeupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		v, err := deps.Service.SelectCloseup(r.Context(), chi.URLParam(r, "id"), slot, req.Number)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// --- Interview ---

func handleGetInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Service.Interview(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleUpdateInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var u inspection.InterviewUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		v, err := deps.Service.UpdateInterview(r.Context(), chi.URLParam(r, "id"), u)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// handleClaimDocument accepts a multipart "document" field or a raw PDF body.
func handleClaimDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		data, err := readDocument(r)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "document exceeds %d bytes", maxUploadSize)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading document: %v", err)
			return
		}
		v, err := deps.Service.AttachClaimDocument(r.Context(), chi.URLParam(r, "id"), data)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func readDocument(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile("document")
	if err != nil {
		return nil, errors.New("document is required")
	}
	defer f.Close()
	return io.ReadAll(f)
}

// --- Completion and report ---

func handleComplete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := deps.Service.Complete(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report.Report{Body: rep.Body, Generator: rep.Generator, GeneratedAt: rep.GeneratedAt})
	}
}

// handleGetReport serves the stored report. format=text (default) strips
// emphasis markers, format=markdown renders the full summary and
// download=1 serves it as an attachment.
func handleGetReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stored, err := deps.Service.Report(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		rep := report.Report{Body: stored.Body, Generator: stored.Generator, GeneratedAt: stored.GeneratedAt}
		download := r.URL.Query().Get("download") == "1"

		var body []byte
		var contentType, ext string
		switch format := r.URL.Query().Get("format"); format {
		case "", "text":
			contentType, ext = "text/plain; charset=utf-8", "txt"
			if download {
				body = []byte(rep.Body)
			} else {
				body = []byte(report.FormatText(rep.Body))
			}
		case "markdown":
			in, err := deps.Service.ReportInput(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			var buf bytes.Buffer
			if err := report.WriteMarkdown(&buf, in, rep); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "rendering report: %v", err)
				return
			}
			body = buf.Bytes()
			contentType, ext = "text/markdown; charset=utf-8", "md"
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown format %q", format)
			return
		}

		w.Header().Set("Content-Type", contentType)
		if download {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(rep.GeneratedAt, ext)))
		}
		w.Write(body)
	}
}
