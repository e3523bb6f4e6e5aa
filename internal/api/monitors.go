package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leakwatch/internal/model"
)

func (s *server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupName         string `json:"group_name"`
		StartDate         string `json:"start_date"`
		EndDate           string `json:"end_date"`
		PollIntervalHours int    `json:"poll_interval_hours"`
		AutoExpireDays    int    `json:"auto_expire_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.GroupName == "" {
		badRequest(w, "group_name is required")
		return
	}

	create := model.MonitorCreate{
		GroupName:         req.GroupName,
		PollIntervalHours: req.PollIntervalHours,
		AutoExpireDays:    req.AutoExpireDays,
	}
	if req.StartDate != "" {
		t, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
		if err != nil {
			badRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		create.StartDate = t
	} else {
		create.StartDate = time.Now().UTC()
	}
	if req.EndDate != "" {
		t, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
		if err != nil {
			badRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		create.EndDate = &t
	}

	m, err := s.Store.CreateMonitor(r.Context(), create)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "active_only must be a boolean")
			return
		}
		activeOnly = b
	}

	monitors, err := s.Store.ListMonitors(r.Context(), activeOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	if monitors == nil {
		monitors = []model.Monitor{}
	}
	respondJSON(w, http.StatusOK, monitors)
}

func (s *server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	m, err := s.Store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *server) handleDeactivateMonitor(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeactivateMonitor(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *server) handlePollMonitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m, err := s.Store.GetMonitor(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	res, err := s.Poller.PollMonitor(ctx, *m)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *server) handlePollDue(w http.ResponseWriter, r *http.Request) {
	results, err := s.Poller.PollDue(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	type pollOutcome struct {
		MonitorID string `json:"monitor_id"`
		GroupName string `json:"group_name"`
		Inserted  int    `json:"inserted"`
		Skipped   int    `json:"skipped"`
		Error     string `json:"error,omitempty"`
	}
	outcomes := make([]pollOutcome, len(results))
	for i, res := range results {
		outcomes[i] = pollOutcome{
			MonitorID: res.MonitorID,
			GroupName: res.GroupName,
			Inserted:  res.Inserted,
			Skipped:   res.Skipped,
		}
		if res.Err != nil {
			outcomes[i].Error = res.Err.Error()
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(outcomes),
		"results": outcomes,
	})
}
