package disclosure

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const submissionsBody = `{
  "cik": "1234567",
  "filings": {
    "recent": {
      "accessionNumber": ["0001234567-25-000004", "0001234567-25-000003", "0001234567-25-000002", "0001234567-25-000001", "0001234567-24-000009"],
      "filingDate":      ["2025-03-01", "2025-02-10", "not-a-date", "2025-01-05", "2024-11-20"],
      "form":            ["10-Q", "8-K", "8-K", "8-K", "8-K"],
      "primaryDocument": ["q.htm", "mat.htm", "bad.htm", "soft.htm", "old.htm"],
      "items":           ["", "1.05,9.01", "1.05", "7.01,8.01", "1.05"]
    }
  }
}`

func newTestEdgar(t *testing.T, handler http.HandlerFunc) (*EdgarClient, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewEdgarClient(EdgarOptions{
		BaseURL:   srv.URL,
		UserAgent: "leakwatch tests ops@example.com",
	}), &calls
}

func TestNormalizeCIK(t *testing.T) {
	assert.Equal(t, "0000320193", NormalizeCIK("320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("0000320193"))
	assert.Equal(t, "0000320193", NormalizeCIK("00320193"))
	assert.Equal(t, "", NormalizeCIK("000"))
	assert.Equal(t, "", NormalizeCIK(""))
}

func TestFilingURL(t *testing.T) {
	f := Filing{
		CIK:             "0001234567",
		AccessionNumber: "0001234567-25-000003",
		PrimaryDocument: "mat.htm",
	}
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/1234567/000123456725000003/mat.htm",
		f.URL())
}

func TestFilingHasItem_ExactOnly(t *testing.T) {
	f := Filing{Items: []string{"11.05", "9.01"}}
	assert.False(t, f.HasItem("1.05"), "item match must be exact, not substring")
	assert.True(t, f.HasItem("11.05"))
}

func TestGet8KFilings_ParsesAndFilters(t *testing.T) {
	ec, _ := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "CIK0001234567.json")
		assert.Contains(t, r.Header.Get("User-Agent"), "@", "user agent must carry an operator contact")
		fmt.Fprint(w, submissionsBody)
	})

	filings, err := ec.Get8KFilings(context.Background(), "1234567", time.Time{}, false)
	require.NoError(t, err)

	// 10-Q excluded, unparseable date skipped, the rest kept.
	require.Len(t, filings, 3)
	assert.Equal(t, "8-K", filings[0].FormType)
	assert.Equal(t, []string{"1.05", "9.01"}, filings[0].Items)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), filings[0].FilingDate)
}

func TestGet8KFilings_AfterDateViewOnly(t *testing.T) {
	ec, calls := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsBody)
	})

	ctx := context.Background()
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	filtered, err := ec.Get8KFilings(ctx, "1234567", after, false)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	// The cache holds the unfiltered list: widening the window must not
	// refetch yet must return more filings.
	all, err := ec.Get8KFilings(ctx, "1234567", time.Time{}, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGet8KFilings_ForceRefresh(t *testing.T) {
	ec, calls := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, submissionsBody)
	})

	ctx := context.Background()
	_, err := ec.Get8KFilings(ctx, "1234567", time.Time{}, false)
	require.NoError(t, err)
	_, err = ec.Get8KFilings(ctx, "1234567", time.Time{}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGet8KFilings_NotFound(t *testing.T) {
	ec, _ := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	filings, err := ec.Get8KFilings(context.Background(), "99999", time.Time{}, false)
	require.NoError(t, err, "unknown registrant is not an error")
	assert.Nil(t, filings)
}

func TestGet8KFilings_ServerError(t *testing.T) {
	ec, _ := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := ec.Get8KFilings(context.Background(), "1234567", time.Time{}, false)
	assert.Error(t, err)
}

func TestGet8KFilings_EmptyCIK(t *testing.T) {
	ec := NewEdgarClient(EdgarOptions{})
	_, err := ec.Get8KFilings(context.Background(), "", time.Time{}, false)
	assert.Error(t, err)
}

func TestParseRecent_ShortParallelArrays(t *testing.T) {
	var payload submissionsResponse
	payload.Filings.Recent.Form = []string{"8-K", "8-K"}
	payload.Filings.Recent.FilingDate = []string{"2025-02-10", "2025-01-05"}
	payload.Filings.Recent.AccessionNumber = []string{"0001-25-01", "0001-25-02"}
	payload.Filings.Recent.PrimaryDocument = []string{"a.htm"} // short
	payload.Filings.Recent.Items = []string{"1.05", "7.01"}

	filings := parseRecent("0000000001", payload)
	require.Len(t, filings, 1, "entries past the shortest array are skipped")
	assert.Equal(t, "a.htm", filings[0].PrimaryDocument)
}

func TestFindCybersecurity8K(t *testing.T) {
	filings := []Filing{
		{FilingDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Items: []string{"7.01"}},
		{FilingDate: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), Items: []string{"1.05", "9.01"}},
		{FilingDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Items: []string{"1.05"}},
	}

	// Newest-first input: the first 1.05 filing wins.
	m := FindCybersecurity8K(filings, time.Time{})
	require.NotNil(t, m)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), m.FilingDate)

	// Window excludes the earlier match candidates.
	m = FindCybersecurity8K(filings, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC))
	assert.Nil(t, m)

	// Soft-item filings never match.
	soft := []Filing{{FilingDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Items: []string{"7.01", "8.01"}}}
	assert.Nil(t, FindCybersecurity8K(soft, time.Time{}))
}

func TestEdgarRateLimiter_SpacingAndConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive rate limiter test")
	}

	var (
		mu       sync.Mutex
		starts   []time.Time
		inFlight atomic.Int64
		peak     atomic.Int64
	)

	ec, _ := newTestEdgar(t, func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		mu.Lock()
		starts = append(starts, now)
		mu.Unlock()

		time.Sleep(700 * time.Millisecond)
		inFlight.Add(-1)
		fmt.Fprint(w, submissionsBody)
	})

	g, ctx := errgroup.WithContext(context.Background())
	for i := range 20 {
		cik := fmt.Sprintf("%d", 100+i) // distinct registrants, no cache hits
		g.Go(func() error {
			_, err := ec.Get8KFilings(ctx, cik, time.Time{}, false)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, peak.Load(), int64(edgarMaxInFlight),
		"concurrency gate exceeded")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 20)
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, 180*time.Millisecond,
			"requests %d and %d started %v apart", i-1, i, gap)
	}
}
