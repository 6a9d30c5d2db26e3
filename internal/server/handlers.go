package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// submitRequest is the optional JSON body of a submit call.
type submitRequest struct {
	ReportType string `json:"report_type"`
}

// taskResponse is the wire shape of one ledger entry.
type taskResponse struct {
	TaskID      string `json:"task_id"`
	Code        string `json:"code"`
	Market      string `json:"market"`
	ReportType  string `json:"report_type"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

func toTaskResponse(t domain.Task) taskResponse {
	resp := taskResponse{
		TaskID:      t.ID,
		Code:        t.Symbol.Code,
		Market:      string(t.Symbol.Market),
		ReportType:  t.ReportType,
		Status:      string(t.Status),
		SubmittedAt: t.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"),
		Error:       t.Err,
	}
	if t.FinishedAt != nil {
		resp.FinishedAt = t.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// handleSubmit accepts an analysis request for one code and returns the
// assigned task immediately; the analysis itself runs on the task pool.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	var req submitRequest
	if r.Method == http.MethodPost && r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}
	if req.ReportType == "" {
		req.ReportType = r.URL.Query().Get("type")
	}
	if req.ReportType == "" {
		req.ReportType = "simple"
	}
	if req.ReportType != "simple" && req.ReportType != "full" {
		s.writeError(w, http.StatusBadRequest, "report_type must be simple or full")
		return
	}

	t := s.tasks.Submit(code, req.ReportType, "", "api")
	s.writeJSON(w, http.StatusAccepted, toTaskResponse(*t))
}

// handleTaskStatus returns the ledger entry for one task id.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := s.tasks.GetTaskStatus(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// handleListTasks returns recent ledger entries, newest first.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	tasks := s.tasks.ListTasks(limit)
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskResponse(t)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": out})
}

// handleHistory queries the durable analysis history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	decision := r.URL.Query().Get("decision")
	limit := queryInt(r, "limit", 20)

	results, err := s.tasks.GetAnalysisHistory(r.Context(), code, decision, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("history query failed")
		s.writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if results == nil {
		results = []domain.AnalysisResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
