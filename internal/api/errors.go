package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// Error codes of the JSON error body.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_failed"
	CodeNotFound         = "not_found"
	CodeUnsupportedMedia = "unsupported_document"
	CodeUpstream         = "upstream_error"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal_error"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// writeErr maps err onto a status code and error body.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *screening.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: CodeValidation, Message: verr.Message, Field: verr.Field})
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "request body too large")
	case errors.Is(err, hr.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, llm.ErrUnsupportedDocument):
		writeError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMedia, err.Error())
	case errors.Is(err, screening.ErrMalformedResult), errors.Is(err, llm.ErrEmptyResponse):
		observe.Logger(r.Context()).Warn("upstream model returned unusable answer", "err", err)
		writeError(w, http.StatusBadGateway, CodeUpstream, "the analysis model returned an unusable answer")
	default:
		observe.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErr(w, r, err)
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
