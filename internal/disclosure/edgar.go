package disclosure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultEdgarBaseURL serves the structured submissions endpoint,
	// keyed by zero-padded CIK.
	DefaultEdgarBaseURL = "https://data.sec.gov"

	// ItemMaterialIncident is the 8-K item code for a material
	// cybersecurity incident disclosure.
	ItemMaterialIncident = "1.05"

	edgarCacheTTL = 24 * time.Hour

	// edgarMaxInFlight caps simultaneous submissions requests; the
	// spacing below additionally keeps request starts at least 200ms
	// apart, and at least 200ms after the previous completion, per the
	// published fair-access policy.
	edgarMaxInFlight = 5
	edgarMinInterval = 200 * time.Millisecond
)

// Filing is one 8-K filing from the EDGAR submissions feed.
type Filing struct {
	CIK             string    `json:"cik"`
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	FormType        string    `json:"form_type"`
	PrimaryDocument string    `json:"primary_document"`
	Items           []string  `json:"items"`
}

// URL builds the public document URL for the filing.
func (f Filing) URL() string {
	accession := strings.ReplaceAll(f.AccessionNumber, "-", "")
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		strings.TrimLeft(f.CIK, "0"), accession, f.PrimaryDocument)
}

// HasItem reports whether the filing's item set contains the given code.
// Comparison is exact against the canonical trimmed code, never substring,
// so "1.05" cannot match a hypothetical "11.05".
func (f Filing) HasItem(code string) bool {
	for _, item := range f.Items {
		if item == code {
			return true
		}
	}
	return false
}

// EdgarOptions configures an EdgarClient.
type EdgarOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// EdgarClient retrieves per-registrant 8-K filing history from the EDGAR
// submissions API. The concurrency gate and inter-request spacing are shared
// by all callers of one client: the remote rate limit applies per client
// identity, not per registrant.
type EdgarClient struct {
	client   *http.Client
	baseURL  string
	ua       string
	cacheTTL time.Duration

	gate    chan struct{}
	spacing *rate.Limiter

	mu    sync.RWMutex
	cache map[string]edgarCacheEntry
}

type edgarCacheEntry struct {
	filings   []Filing
	fetchedAt time.Time
}

// NewEdgarClient creates an EdgarClient. The user agent must name a reachable
// operator contact, as EDGAR usage policy requires.
func NewEdgarClient(opts EdgarOptions) *EdgarClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultEdgarBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leakwatch research ops@sellsadvisors.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = edgarCacheTTL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &EdgarClient{
		client:   client,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		ua:       opts.UserAgent,
		cacheTTL: opts.CacheTTL,
		gate:     make(chan struct{}, edgarMaxInFlight),
		spacing:  rate.NewLimiter(rate.Every(edgarMinInterval), 1),
	}
}

// NormalizeCIK strips leading zeros and left-pads the registrant identifier
// to the 10-digit lookup key.
func NormalizeCIK(cik string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		return ""
	}
	if len(trimmed) >= 10 {
		return trimmed
	}
	return strings.Repeat("0", 10-len(trimmed)) + trimmed
}

// Get8KFilings returns the registrant's 8-K filings, newest first as EDGAR
// serves them. The full unfiltered list is cached per registrant for the TTL;
// the after filter applies only to the returned view. A 404 (unknown
// registrant) returns nil with no error.
func (e *EdgarClient) Get8KFilings(ctx context.Context, cik string, after time.Time, forceRefresh bool) ([]Filing, error) {
	key := NormalizeCIK(cik)
	if key == "" {
		return nil, eris.New("edgar: empty registrant id")
	}

	e.mu.RLock()
	entry, ok := e.cache[key]
	e.mu.RUnlock()

	if ok && !forceRefresh && time.Since(entry.fetchedAt) < e.cacheTTL {
		return filterAfter(entry.filings, after), nil
	}

	filings, err := e.fetchSubmissions(ctx, key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = make(map[string]edgarCacheEntry)
	}
	e.cache[key] = edgarCacheEntry{filings: filings, fetchedAt: time.Now()}
	e.mu.Unlock()

	return filterAfter(filings, after), nil
}

func filterAfter(filings []Filing, after time.Time) []Filing {
	if after.IsZero() {
		return filings
	}
	var out []Filing
	for _, f := range filings {
		if !f.FilingDate.Before(after) {
			out = append(out, f)
		}
	}
	return out
}

// submissionsResponse mirrors the parallel-array layout of the submissions
// endpoint's "recent" object.
type submissionsResponse struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
			Items           []string `json:"items"`
		} `json:"recent"`
	} `json:"filings"`
}

func (e *EdgarClient) fetchSubmissions(ctx context.Context, paddedCIK string) ([]Filing, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", e.baseURL, paddedCIK)

	select {
	case e.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "edgar: concurrency gate")
	}
	defer func() { <-e.gate }()

	if err := e.spacing.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "edgar: rate limiter wait")
	}
	// Re-arm the interval on completion so the next start is spaced from
	// this request's end, not just its start.
	defer e.spacing.Reserve()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: create request")
	}
	req.Header.Set("User-Agent", e.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: fetch submissions for CIK %s", paddedCIK)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		zap.L().Info("no EDGAR submissions for registrant", zap.String("cik", paddedCIK))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("edgar: unexpected status %d for CIK %s", resp.StatusCode, paddedCIK)
	}

	var payload submissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrapf(err, "edgar: decode submissions for CIK %s", paddedCIK)
	}

	return parseRecent(paddedCIK, payload), nil
}

// parseRecent extracts 8-K entries from the parallel arrays, skipping any
// index with a short array or an unparseable date.
func parseRecent(paddedCIK string, payload submissionsResponse) []Filing {
	recent := payload.Filings.Recent

	var filings []Filing
	for i, form := range recent.Form {
		if form != "8-K" {
			continue
		}
		if i >= len(recent.FilingDate) || i >= len(recent.AccessionNumber) ||
			i >= len(recent.PrimaryDocument) || i >= len(recent.Items) {
			zap.L().Warn("short parallel array in EDGAR submissions",
				zap.String("cik", paddedCIK),
				zap.Int("index", i),
			)
			continue
		}

		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			zap.L().Warn("unparseable EDGAR filing date",
				zap.String("cik", paddedCIK),
				zap.String("date", recent.FilingDate[i]),
			)
			continue
		}

		var items []string
		for _, item := range strings.Split(recent.Items[i], ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}

		filings = append(filings, Filing{
			CIK:             paddedCIK,
			AccessionNumber: recent.AccessionNumber[i],
			FilingDate:      filingDate,
			FormType:        form,
			PrimaryDocument: recent.PrimaryDocument[i],
			Items:           items,
		})
	}

	return filings
}

// FindCybersecurity8K returns the first filing (newest first, as received)
// with the material-incident item code, restricted to filings on or after
// after when set. Filings carrying only the softer disclosure item codes are
// not matched here; the curated tracker covers those.
func FindCybersecurity8K(filings []Filing, after time.Time) *Filing {
	for i := range filings {
		if !after.IsZero() && filings[i].FilingDate.Before(after) {
			continue
		}
		if filings[i].HasItem(ItemMaterialIncident) {
			return &filings[i]
		}
	}
	return nil
}
