package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"epistat/domain/core"
	"epistat/domain/dataset"
	apperrors "epistat/internal/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// writeError maps the error's code to a status and writes {"error": {...}}
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s -> %d: %v", r.Method, r.URL.Path, status, err)
	}
	writeJSON(w, status, map[string]errorBody{
		"error": {Code: apperrors.GetCode(err), Message: err.Error()},
	})
}

// loadDataset resolves the {id} path parameter
func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	id, err := core.ParseDatasetID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput(err.Error()))
		return nil, false
	}
	ds, err := s.datasets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return ds, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
