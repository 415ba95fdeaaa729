package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type captureRequest struct {
	DataURL string `json:"data_url"`
}

// readPhoto accepts a multipart "photo" field, a JSON {"data_url"} body or
// raw image bytes.
func readPhoto(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile("photo")
		if err != nil {
			return nil, errMissingPhoto
		}
		defer f.Close()
		return io.ReadAll(f)
	case mediaType == "application/json":
		var req captureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		if req.DataURL == "" {
			return nil, errMissingPhoto
		}
		return []byte(req.DataURL), nil
	default:
		return io.ReadAll(r.Body)
	}
}

var errMissingPhoto = errors.New("photo is required")

func handleCapture(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		data, err := readPhoto(r)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "photo exceeds %d bytes", maxUploadSize)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading photo: %v", err)
			return
		}

		res, err := deps.Service.Capture(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"), chi.URLParam(r, "step"), data)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		code := http.StatusOK
		if res.Pending {
			code = http.StatusAccepted
		}
		writeJSON(w, code, res)
	}
}

func handleGetPhoto(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Service.Photo(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"), chi.URLParam(r, "step"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(p.JPEG)))
		w.Write(p.JPEG)
	}
}

func handleRetake(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Service.Retake(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"), chi.URLParam(r, "step"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeState(w, st)
	}
}

func handleGetAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := deps.Service.Outcome(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "section"), chi.URLParam(r, "step"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func handleReanalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcomes, err := deps.Service.Reanalyze(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomes)
	}
}
