package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// DefaultAnalysisTimeout bounds one screening request end to end.
const DefaultAnalysisTimeout = 90 * time.Second

// ── Employees ────────────────────────────────────────────────────────────────

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := s.store.List(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if dept := r.URL.Query().Get("department"); dept != "" {
		filtered := emps[:0]
		for _, e := range emps {
			if strings.EqualFold(e.Department, dept) {
				filtered = append(filtered, e)
			}
		}
		emps = filtered
	}
	writeJSON(w, http.StatusOK, emps)
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) addEmployee(w http.ResponseWriter, r *http.Request) {
	var e hr.Employee
	if !s.decodeBody(w, r, &e) {
		return
	}
	if err := hr.ValidateEmployee(e); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	stored, err := s.store.Add(r.Context(), e)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var e hr.Employee
	if !s.decodeBody(w, r, &e) {
		return
	}
	if e.ID != 0 && e.ID != id {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "body id does not match path id")
		return
	}
	e.ID = id
	if err := hr.ValidateEmployee(e); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if err := s.store.Update(r.Context(), e); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// ── Recruitment and directory ────────────────────────────────────────────────

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.Jobs(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if strings.EqualFold(string(j.Status), status) {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) listHires(w http.ResponseWriter, r *http.Request) {
	hires, err := s.store.HiredCandidates(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hires)
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	id := 0
	if v := r.URL.Query().Get("employeeId"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "employeeId must be a non-negative integer")
			return
		}
		id = n
	}
	reviews, err := s.store.Reviews(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	role, ok := queryRole(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, hr.ViewsFor(role))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := hr.DemoUsers(r.Context(), s.store)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func queryRole(w http.ResponseWriter, r *http.Request) (hr.Role, bool) {
	role := hr.Role(r.URL.Query().Get("role"))
	if !role.IsValid() {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "role must be one of Admin, Manager, HR, Employee")
		return "", false
	}
	return role, true
}

// ── Screening ────────────────────────────────────────────────────────────────

func (s *Server) screenResume(w http.ResponseWriter, r *http.Request) {
	if s.screener == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "resume screening is not configured")
		return
	}
	var req screening.ResumeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.analysisTimeout)
	defer cancel()

	res, err := s.screener.ScreenResume(ctx, req)
	if err != nil {
		s.writeAnalysisErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) analyzeInterview(w http.ResponseWriter, r *http.Request) {
	if s.screener == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "interview analysis is not configured")
		return
	}
	var req screening.InterviewRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.analysisTimeout)
	defer cancel()

	res, err := s.screener.AnalyzeInterview(ctx, req)
	if err != nil {
		s.writeAnalysisErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeAnalysisErr treats any unclassified screening failure as an upstream
// model error.
func (s *Server) writeAnalysisErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *screening.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, screening.ErrMalformedResult),
		errors.Is(err, llm.ErrUnsupportedDocument),
		errors.Is(err, llm.ErrEmptyResponse):
		s.writeErr(w, r, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, CodeUpstream, "the analysis model did not answer in time")
	default:
		s.log.Warn("analysis failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, CodeUpstream, "analysis failed, please try again")
	}
}
