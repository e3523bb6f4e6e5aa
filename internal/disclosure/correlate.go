package disclosure

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// SourceEdgar and SourceTracker identify which source produced the
	// primary match.
	SourceEdgar   = "edgar"
	SourceTracker = "tracker"

	// ItemAmbiguous marks a tracker-only match for a registrant whose
	// EDGAR history held no 1.05 filing: the disclosure is likely one of
	// the softer item codes, but the tracker does not say which.
	ItemAmbiguous = "unknown"

	// searchWindow bounds how far before the leak posting a filing can
	// be and still correlate to that incident.
	searchWindow = 365 * 24 * time.Hour

	// DefaultBatchConcurrency bounds simultaneous correlations; each one
	// issues up to two outbound calls, so this sits below the EDGAR
	// client's own in-flight gate.
	DefaultBatchConcurrency = 3
)

// Query identifies one correlation request.
type Query struct {
	CompanyName string    `json:"company_name"`
	CIK         string    `json:"cik,omitempty"`
	PostDate    time.Time `json:"post_date"`
}

// SourceResult is the raw outcome from a single source, kept on the Result
// for audit: callers that need to tell "checked and clean" from "source was
// unavailable" inspect the Reason here.
type SourceResult struct {
	Found          bool      `json:"found"`
	FilingDate     time.Time `json:"filing_date,omitzero"`
	FilingURL      string    `json:"filing_url,omitempty"`
	DisclosureDays *int      `json:"disclosure_days,omitempty"`
	Item           string    `json:"item,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// Result is the merged correlation outcome for one query.
type Result struct {
	Found          bool         `json:"found"`
	FilingDate     time.Time    `json:"filing_date,omitzero"`
	FilingURL      string       `json:"filing_url,omitempty"`
	DisclosureDays *int         `json:"disclosure_days,omitempty"`
	Source         string       `json:"source,omitempty"`
	Item           string       `json:"item,omitempty"`
	Edgar          SourceResult `json:"edgar_result"`
	Tracker        SourceResult `json:"tracker_result"`
}

// Correlator reconciles EDGAR and the curated tracker into one disclosure
// verdict per victim. Both sources are always consulted: EDGAR's item filter
// is authoritative but narrow, the tracker is broad but fuzzy-matched, and
// each catches disclosures the other misses.
type Correlator struct {
	edgar   *EdgarClient
	tracker *Tracker
}

// NewCorrelator creates a Correlator over the given clients.
func NewCorrelator(edgar *EdgarClient, tracker *Tracker) *Correlator {
	return &Correlator{edgar: edgar, tracker: tracker}
}

// Correlate produces a best-effort Result for the query. It never returns an
// error: source failures degrade to not-found sub-results with the reason
// recorded.
func (c *Correlator) Correlate(ctx context.Context, q Query) Result {
	searchStart := q.PostDate.Add(-searchWindow)

	var edgarRes, trackerRes SourceResult

	// The two checks are independent; run them concurrently and merge
	// once both complete.
	var g errgroup.Group
	g.Go(func() error {
		edgarRes = c.checkEdgar(ctx, q, searchStart)
		return nil
	})
	g.Go(func() error {
		trackerRes = c.checkTracker(ctx, q)
		return nil
	})
	_ = g.Wait()

	res := Result{Edgar: edgarRes, Tracker: trackerRes}

	switch {
	case edgarRes.Found:
		res.Found = true
		res.Source = SourceEdgar
		res.FilingDate = edgarRes.FilingDate
		res.FilingURL = edgarRes.FilingURL
		res.DisclosureDays = edgarRes.DisclosureDays
		res.Item = edgarRes.Item
	case trackerRes.Found:
		res.Found = true
		res.Source = SourceTracker
		res.FilingDate = trackerRes.FilingDate
		res.FilingURL = trackerRes.FilingURL
		res.DisclosureDays = trackerRes.DisclosureDays
		res.Item = trackerRes.Item
		if q.CIK != "" {
			// EDGAR would have caught a 1.05 filing for this
			// registrant; the tracker hit is likely a softer item
			// code.
			res.Item = ItemAmbiguous
			res.Tracker.Item = ItemAmbiguous
		}
	}

	return res
}

func (c *Correlator) checkEdgar(ctx context.Context, q Query, searchStart time.Time) SourceResult {
	if q.CIK == "" {
		return SourceResult{Reason: "no registrant id provided"}
	}

	filings, err := c.edgar.Get8KFilings(ctx, q.CIK, searchStart, false)
	if err != nil {
		zap.L().Warn("EDGAR check failed",
			zap.String("company", q.CompanyName),
			zap.String("cik", q.CIK),
			zap.Error(err),
		)
		return SourceResult{Reason: "edgar fetch failed: " + err.Error()}
	}

	match := FindCybersecurity8K(filings, searchStart)
	if match == nil {
		return SourceResult{Reason: "no 1.05 filing in window"}
	}

	days := disclosureDays(match.FilingDate, q.PostDate)
	return SourceResult{
		Found:          true,
		FilingDate:     match.FilingDate,
		FilingURL:      match.URL(),
		DisclosureDays: &days,
		Item:           ItemMaterialIncident,
	}
}

func (c *Correlator) checkTracker(ctx context.Context, q Query) SourceResult {
	incidents := c.tracker.FetchIncidents(ctx, false)

	match := FindMatch(q.CompanyName, incidents)
	if match == nil {
		return SourceResult{Reason: "no tracker match"}
	}

	days := disclosureDays(match.DisclosureDate, q.PostDate)
	return SourceResult{
		Found:          true,
		FilingDate:     match.DisclosureDate,
		FilingURL:      match.DetailURL,
		DisclosureDays: &days,
	}
}

// disclosureDays is the signed day count from the leak posting to the
// filing: negative means the company disclosed before the leak appeared.
// Both sides are truncated to their UTC calendar date first; leak postings
// carry a time of day, filings do not, and the count is calendar days.
func disclosureDays(filingDate, postDate time.Time) int {
	return int(calendarDate(filingDate).Sub(calendarDate(postDate)).Hours() / 24)
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CorrelateBatch runs Correlate over each query with bounded concurrency and
// returns results in input order. Individual source failures never abort
// sibling queries.
func (c *Correlator) CorrelateBatch(ctx context.Context, queries []Query, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = c.Correlate(gctx, q)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
