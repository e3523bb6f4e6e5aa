package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leakwatch/internal/model"
)

// parseVictimFilter reads list/export filters from query parameters.
func parseVictimFilter(r *http.Request) (model.VictimFilter, error) {
	q := r.URL.Query()
	filter := model.VictimFilter{
		GroupName:    q.Get("group"),
		ReviewStatus: model.ReviewStatus(q.Get("review_status")),
		CompanyType:  model.CompanyType(q.Get("company_type")),
	}

	if v := q.Get("sec_regulated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.SECRegulated = &b
	}
	if v := q.Get("include_hidden"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, err
		}
		filter.IncludeHidden = b
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return filter, err
		}
		filter.StartDate = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return filter, err
		}
		filter.EndDate = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.Offset = n
	}
	return filter, nil
}

func (s *server) handleListVictims(w http.ResponseWriter, r *http.Request) {
	filter, err := parseVictimFilter(r)
	if err != nil {
		badRequest(w, "invalid filter: "+err.Error())
		return
	}

	victims, err := s.Store.ListVictims(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if victims == nil {
		victims = []model.Victim{}
	}
	respondJSON(w, http.StatusOK, victims)
}

func (s *server) handleGetVictim(w http.ResponseWriter, r *http.Request) {
	v, err := s.Store.GetVictim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *server) handleReviewVictim(w http.ResponseWriter, r *http.Request) {
	var review model.VictimReview
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if review.CompanyType != "" && !review.CompanyType.Valid() {
		badRequest(w, "invalid company_type")
		return
	}

	v, err := s.Store.ReviewVictim(r.Context(), chi.URLParam(r, "id"), review)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *server) handleDeleteVictim(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteVictim(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *server) handleFlagVictim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Reason == "" {
		badRequest(w, "reason is required")
		return
	}

	if err := s.Store.FlagVictim(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "flagged"})
}

func (s *server) handleRestoreVictim(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.RestoreVictim(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		badRequest(w, "ids is required")
		return
	}

	n, err := s.Store.BulkDeleteVictims(r.Context(), req.IDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Title    string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		badRequest(w, "invalid request body")
		return
	}

	filter, err := parseVictimFilter(r)
	if err != nil {
		badRequest(w, "invalid filter: "+err.Error())
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = 10000
	}

	victims, err := s.Store.ListVictims(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	path, err := s.Exporter.Export(victims, req.Filename, req.Title)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"path":  path,
		"count": len(victims),
	})
}
