package disclosure

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTrackerURL is the curated cybersecurity-incident tracker listing.
const DefaultTrackerURL = "https://www.board-cybersecurity.com/incidents/tracker/"

// trackerCacheTTL bounds how long a fetched snapshot is served before a
// refresh is attempted.
const trackerCacheTTL = 24 * time.Hour

// Incident is one disclosed cybersecurity incident from the curated tracker.
type Incident struct {
	CompanyName    string    `json:"company_name"`
	DisclosureDate time.Time `json:"disclosure_date"`
	LastUpdate     time.Time `json:"last_update"`
	DetailURL      string    `json:"detail_url"`
	CIK            string    `json:"cik,omitempty"`
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Tracker fetches and caches the curated incident-disclosure listing and
// fuzzy-matches company names against it. Safe for concurrent use; the
// snapshot is replaced atomically on refresh.
type Tracker struct {
	client   *http.Client
	baseURL  string
	ua       string
	cacheTTL time.Duration

	mu        sync.RWMutex
	cache     []Incident
	cacheTime time.Time
}

// NewTracker creates a Tracker with the given options.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTrackerURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "leakwatch/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = trackerCacheTTL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Tracker{
		client:   client,
		baseURL:  opts.BaseURL,
		ua:       opts.UserAgent,
		cacheTTL: opts.CacheTTL,
	}
}

// FetchIncidents returns the tracker snapshot, refreshing it when older than
// the TTL or when forceRefresh is set. Fetch failures fall back to the stale
// snapshot (or an empty list); they are never surfaced as errors.
func (t *Tracker) FetchIncidents(ctx context.Context, forceRefresh bool) []Incident {
	t.mu.RLock()
	cached, cachedAt := t.cache, t.cacheTime
	t.mu.RUnlock()

	if !forceRefresh && len(cached) > 0 && time.Since(cachedAt) < t.cacheTTL {
		zap.L().Debug("using cached tracker snapshot", zap.Int("incidents", len(cached)))
		return cached
	}

	incidents, err := t.fetch(ctx)
	if err != nil {
		zap.L().Error("tracker fetch failed, serving stale snapshot",
			zap.String("url", t.baseURL),
			zap.Error(err),
		)
		return cached
	}

	t.mu.Lock()
	t.cache = incidents
	t.cacheTime = time.Now()
	t.mu.Unlock()

	zap.L().Info("loaded tracker snapshot",
		zap.String("url", t.baseURL),
		zap.Int("incidents", len(incidents)),
	)
	return incidents
}

func (t *Tracker) fetch(ctx context.Context) ([]Incident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.ua)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("tracker: unexpected status %d from %s", resp.StatusCode, t.baseURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	return t.parseTable(doc)
}

// parseTable extracts incidents from the first table on the page. The first
// row is the header; rows missing a disclosure date or company name are
// dropped. A page with no table at all is malformed, not empty: it must not
// replace a good snapshot.
func (t *Tracker) parseTable(doc *goquery.Document) ([]Incident, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, eris.Errorf("tracker: no incident table in page from %s", t.baseURL)
	}

	var incidents []Incident
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		lastUpdate, _ := parseTrackerDate(cells.Eq(0).Text())
		disclosureDate, ok := parseTrackerDate(cells.Eq(1).Text())

		var companyName, detailURL string
		if link := cells.Eq(2).Find("a").First(); link.Length() > 0 {
			companyName = strings.TrimSpace(link.Text())
			href := link.AttrOr("href", "")
			if href != "" && !strings.HasPrefix(href, "http") {
				detailURL = t.baseURL + href
			} else {
				detailURL = href
			}
		} else {
			companyName = strings.TrimSpace(cells.Eq(2).Text())
		}

		if !ok || companyName == "" {
			return
		}
		if lastUpdate.IsZero() {
			lastUpdate = disclosureDate
		}

		incidents = append(incidents, Incident{
			CompanyName:    companyName,
			DisclosureDate: disclosureDate,
			LastUpdate:     lastUpdate,
			DetailURL:      detailURL,
		})
	})

	return incidents, nil
}

func parseTrackerDate(s string) (time.Time, bool) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FindMatch returns the first incident whose name matches companyName, in
// listed order. Matching is deliberately first-found, not best-scored: an
// earlier substring match wins over a later exact match. Rules, in order per
// incident: exact normalized equality, substring containment either way,
// then token overlap (both sides keep >=2 significant tokens and share >=2).
func FindMatch(companyName string, incidents []Incident) *Incident {
	search := NormalizeName(companyName)
	if search == "" {
		return nil
	}
	searchTokens := significantTokens(search)

	for i := range incidents {
		candidate := NormalizeName(incidents[i].CompanyName)
		if candidate == "" {
			continue
		}

		if search == candidate ||
			strings.Contains(candidate, search) ||
			strings.Contains(search, candidate) {
			return &incidents[i]
		}

		candidateTokens := significantTokens(candidate)
		if len(searchTokens) >= 2 && len(candidateTokens) >= 2 {
			shared := 0
			for tok := range searchTokens {
				if _, ok := candidateTokens[tok]; ok {
					shared++
				}
			}
			if shared >= 2 {
				return &incidents[i]
			}
		}
	}

	return nil
}
