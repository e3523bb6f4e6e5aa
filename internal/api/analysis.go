package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leakwatch/internal/disclosure"
	"github.com/sells-group/leakwatch/internal/store"
)

// correlationUpdate maps a correlation result onto the persisted shape.
func correlationUpdate(res disclosure.Result) store.CorrelationUpdate {
	update := store.CorrelationUpdate{
		Found:          res.Found,
		FilingURL:      res.FilingURL,
		Source:         res.Source,
		Item:           res.Item,
		DisclosureDays: res.DisclosureDays,
	}
	if !res.FilingDate.IsZero() {
		d := res.FilingDate
		update.FilingDate = &d
	}
	return update
}

func (s *server) handleCorrelateVictim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	v, err := s.Store.GetVictim(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	name := v.CompanyName
	if name == "" {
		name = v.VictimRaw
	}
	res := s.Correlator.Correlate(ctx, disclosure.Query{
		CompanyName: name,
		CIK:         v.SECCIK,
		PostDate:    v.PostDate,
	})

	if err := s.Store.Update8KCorrelation(ctx, id, correlationUpdate(res)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *server) handleClassifyVictim(w http.ResponseWriter, r *http.Request) {
	if s.Classifier == nil {
		respondJSON(w, http.StatusServiceUnavailable,
			map[string]string{"error": "classification is not configured"})
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	v, err := s.Store.GetVictim(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.Classifier.ClassifyVictim(ctx, *v)
	if err != nil {
		respondError(w, err)
		return
	}

	err = s.Store.UpdateClassification(ctx, id, store.ClassificationUpdate{
		Confidence:   result.Confidence,
		AINotes:      result.Notes,
		CompanyName:  result.CompanyName,
		CompanyType:  result.CompanyType,
		Region:       result.Region,
		Country:      result.Country,
		SECRegulated: result.SECRegulated,
		SECCIK:       result.SECCIK,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleNewsVictim(w http.ResponseWriter, r *http.Request) {
	if s.Classifier == nil {
		respondJSON(w, http.StatusServiceUnavailable,
			map[string]string{"error": "classification is not configured"})
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")

	v, err := s.Store.GetVictim(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.Classifier.SearchNews(ctx, *v)
	if err != nil {
		respondError(w, err)
		return
	}

	update := store.NewsUpdate{
		Found:                  result.Found,
		Summary:                result.Summary,
		Sources:                result.Sources,
		DisclosureAcknowledged: result.DisclosureAcknowledged,
	}
	if result.FirstNewsDate != "" {
		t, err := time.ParseInLocation("2006-01-02", result.FirstNewsDate, time.UTC)
		if err == nil {
			update.FirstNewsDate = &t
		}
	}

	if err := s.Store.UpdateNewsCorrelation(ctx, id, update); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type correlateRequest struct {
	CompanyName string `json:"company_name"`
	CIK         string `json:"cik"`
	PostDate    string `json:"post_date"`
}

func (cr correlateRequest) query() (disclosure.Query, error) {
	postDate, err := time.ParseInLocation("2006-01-02", cr.PostDate, time.UTC)
	if err != nil {
		return disclosure.Query{}, err
	}
	return disclosure.Query{
		CompanyName: cr.CompanyName,
		CIK:         cr.CIK,
		PostDate:    postDate,
	}, nil
}

func (s *server) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	var req correlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CompanyName == "" {
		badRequest(w, "company_name is required")
		return
	}
	q, err := req.query()
	if err != nil {
		badRequest(w, "post_date must be YYYY-MM-DD")
		return
	}

	respondJSON(w, http.StatusOK, s.Correlator.Correlate(r.Context(), q))
}

func (s *server) handleCorrelateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queries     []correlateRequest `json:"queries"`
		Concurrency int                `json:"concurrency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		badRequest(w, "queries is required")
		return
	}

	queries := make([]disclosure.Query, len(req.Queries))
	for i, cr := range req.Queries {
		q, err := cr.query()
		if err != nil {
			badRequest(w, "post_date must be YYYY-MM-DD")
			return
		}
		queries[i] = q
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.BatchConcurrency
	}

	results := s.Correlator.CorrelateBatch(r.Context(), queries, concurrency)
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}
