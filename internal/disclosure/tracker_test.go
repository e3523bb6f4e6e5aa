package disclosure

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackerPage = `<html><body>
<table>
<tr><th>Updated</th><th>Disclosed</th><th>Company</th></tr>
<tr><td>2025-02-01</td><td>2025-01-28</td><td><a href="acme-widgets/">Acme Widgets, Inc.</a></td></tr>
<tr><td>2025-01-20</td><td>2025-01-15</td><td><a href="globex/">Globex Corporation</a></td></tr>
<tr><td>2025-01-10</td><td></td><td><a href="no-date/">No Date Co</a></td></tr>
<tr><td></td><td>2025-01-05</td><td><a href="initech/">Initech Holdings</a></td></tr>
<tr><td>2025-01-02</td><td>2025-01-01</td><td></td></tr>
</table>
</body></html>`

func newTestTracker(t *testing.T, handler http.HandlerFunc) (*Tracker, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewTracker(TrackerOptions{BaseURL: srv.URL + "/"}), &calls
}

func TestTrackerFetchIncidents_ParsesTable(t *testing.T) {
	tr, _ := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, trackerPage)
	})

	incidents := tr.FetchIncidents(context.Background(), false)
	require.Len(t, incidents, 3)

	first := incidents[0]
	assert.Equal(t, "Acme Widgets, Inc.", first.CompanyName)
	assert.Equal(t, time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC), first.DisclosureDate)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), first.LastUpdate)
	assert.Contains(t, first.DetailURL, "acme-widgets/")

	// Missing last-update falls back to the disclosure date.
	third := incidents[2]
	assert.Equal(t, "Initech Holdings", third.CompanyName)
	assert.Equal(t, third.DisclosureDate, third.LastUpdate)
}

func TestTrackerFetchIncidents_CacheFreshness(t *testing.T) {
	tr, calls := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, trackerPage)
	})

	ctx := context.Background()
	tr.FetchIncidents(ctx, false)
	tr.FetchIncidents(ctx, false)
	assert.Equal(t, int64(1), calls.Load(), "second call within TTL must not refetch")

	tr.FetchIncidents(ctx, true)
	assert.Equal(t, int64(2), calls.Load(), "force refresh must always refetch")
}

func TestTrackerFetchIncidents_ExpiredCacheRefetches(t *testing.T) {
	tr, calls := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, trackerPage)
	})
	tr.cacheTTL = 10 * time.Millisecond

	ctx := context.Background()
	tr.FetchIncidents(ctx, false)
	time.Sleep(20 * time.Millisecond)
	tr.FetchIncidents(ctx, false)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTrackerFetchIncidents_StaleOnFailure(t *testing.T) {
	var fail atomic.Bool
	tr, _ := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, trackerPage)
	})

	ctx := context.Background()
	fresh := tr.FetchIncidents(ctx, false)
	require.NotEmpty(t, fresh)

	fail.Store(true)
	stale := tr.FetchIncidents(ctx, true)
	assert.Equal(t, fresh, stale, "fetch failure must serve the stale snapshot")
}

func TestTrackerFetchIncidents_EmptyOnFailureWithoutCache(t *testing.T) {
	tr, _ := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	incidents := tr.FetchIncidents(context.Background(), false)
	assert.Empty(t, incidents)
}

func TestTrackerFetchIncidents_NoTable(t *testing.T) {
	tr, _ := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>maintenance</p></body></html>")
	})

	incidents := tr.FetchIncidents(context.Background(), false)
	assert.Empty(t, incidents)
}

func TestTrackerFetchIncidents_NoTableKeepsSnapshot(t *testing.T) {
	var maintenance atomic.Bool
	tr, _ := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		if maintenance.Load() {
			fmt.Fprint(w, "<html><body><p>maintenance</p></body></html>")
			return
		}
		fmt.Fprint(w, trackerPage)
	})

	ctx := context.Background()
	fresh := tr.FetchIncidents(ctx, false)
	require.NotEmpty(t, fresh)

	// A table-less page is malformed, not an empty listing: the good
	// snapshot survives it.
	maintenance.Store(true)
	stale := tr.FetchIncidents(ctx, true)
	assert.Equal(t, fresh, stale)

	maintenance.Store(false)
	assert.Equal(t, fresh, tr.FetchIncidents(ctx, true))
}

func incidentList(names ...string) []Incident {
	out := make([]Incident, len(names))
	for i, n := range names {
		out[i] = Incident{
			CompanyName:    n,
			DisclosureDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func TestFindMatch_Exact(t *testing.T) {
	incidents := incidentList("Globex Corporation", "Acme Widgets, Inc.")
	m := FindMatch("ACME WIDGETS", incidents)
	require.NotNil(t, m)
	assert.Equal(t, "Acme Widgets, Inc.", m.CompanyName)
}

func TestFindMatch_SubstringBothDirections(t *testing.T) {
	incidents := incidentList("Acme Widgets North America")
	require.NotNil(t, FindMatch("Acme Widgets", incidents))

	incidents = incidentList("Acme Widgets")
	require.NotNil(t, FindMatch("Acme Widgets North America", incidents))
}

func TestFindMatch_TokenOverlap(t *testing.T) {
	incidents := incidentList("Consolidated Widget Partners LLC")
	m := FindMatch("Widget Partners of Ohio", incidents)
	require.NotNil(t, m, "two shared significant tokens must match")
}

func TestFindMatch_SingleSharedTokenNeverMatches(t *testing.T) {
	// Normalizes to "GLOBAL CORP" vs "GLOBAL WIDGETS": one shared
	// significant token never matches via the overlap rule.
	incidents := incidentList("Global Corp International")
	assert.Nil(t, FindMatch("Global Widgets", incidents))
}

func TestFindMatch_StopwordsDoNotCount(t *testing.T) {
	incidents := incidentList("The Bank of Springfield")
	assert.Nil(t, FindMatch("The Credit Union of Shelbyville", incidents))
}

func TestFindMatch_FirstMatchWins(t *testing.T) {
	// The earlier substring match beats the later exact match; matching
	// is order-dependent and first-found, not best-scored.
	incidents := incidentList("Acme Widgets North America", "Acme Widgets")
	m := FindMatch("Acme Widgets", incidents)
	require.NotNil(t, m)
	assert.Equal(t, "Acme Widgets North America", m.CompanyName)
}

func TestFindMatch_NoMatch(t *testing.T) {
	incidents := incidentList("Globex Corporation")
	assert.Nil(t, FindMatch("Initech", incidents))
	assert.Nil(t, FindMatch("", incidents))
}
