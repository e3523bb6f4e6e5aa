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

// correlatorFixture wires a Correlator against stub EDGAR and tracker
// servers.
type correlatorFixture struct {
	correlator   *Correlator
	edgarStatus  atomic.Int64
	edgarBody    atomic.Value
	trackerBody  atomic.Value
	edgarCalls   atomic.Int64
	trackerCalls atomic.Int64
}

func newCorrelatorFixture(t *testing.T) *correlatorFixture {
	t.Helper()
	f := &correlatorFixture{}
	f.edgarStatus.Store(http.StatusOK)
	f.edgarBody.Store(submissionsBody)
	f.trackerBody.Store(trackerPage)

	edgarSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.edgarCalls.Add(1)
		if s := f.edgarStatus.Load(); s != http.StatusOK {
			w.WriteHeader(int(s))
			return
		}
		fmt.Fprint(w, f.edgarBody.Load().(string))
	}))
	t.Cleanup(edgarSrv.Close)

	trackerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.trackerCalls.Add(1)
		fmt.Fprint(w, f.trackerBody.Load().(string))
	}))
	t.Cleanup(trackerSrv.Close)

	f.correlator = NewCorrelator(
		NewEdgarClient(EdgarOptions{BaseURL: edgarSrv.URL, UserAgent: "leakwatch tests ops@example.com"}),
		NewTracker(TrackerOptions{BaseURL: trackerSrv.URL + "/"}),
	)
	return f
}

func TestCorrelate_EdgarPrecedence(t *testing.T) {
	f := newCorrelatorFixture(t)

	// Both sources match Acme; EDGAR wins and its filing date is used
	// even though the tracker's differs.
	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Acme Widgets",
		CIK:         "1234567",
		PostDate:    time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	})

	require.True(t, res.Found)
	assert.Equal(t, SourceEdgar, res.Source)
	assert.Equal(t, ItemMaterialIncident, res.Item)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), res.FilingDate)
	assert.Contains(t, res.FilingURL, "sec.gov/Archives/edgar/data/1234567")
	require.NotNil(t, res.DisclosureDays)
	assert.Equal(t, 5, *res.DisclosureDays)

	// Both raw sub-results are carried for audit.
	assert.True(t, res.Edgar.Found)
	assert.True(t, res.Tracker.Found)
	assert.NotEqual(t, res.Tracker.FilingDate, res.FilingDate)
}

func TestCorrelate_BothSourcesAlwaysConsulted(t *testing.T) {
	f := newCorrelatorFixture(t)

	f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Acme Widgets",
		CIK:         "1234567",
		PostDate:    time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, int64(1), f.edgarCalls.Load())
	assert.Equal(t, int64(1), f.trackerCalls.Load(), "an EDGAR hit must not short-circuit the tracker")
}

func TestCorrelate_TrackerOnlyWithCIK_AmbiguousItem(t *testing.T) {
	f := newCorrelatorFixture(t)
	f.edgarStatus.Store(http.StatusNotFound) // registrant has no filings

	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Globex",
		CIK:         "7654321",
		PostDate:    time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
	})

	require.True(t, res.Found)
	assert.Equal(t, SourceTracker, res.Source)
	assert.Equal(t, ItemAmbiguous, res.Item, "CIK supplied but no 1.05 on EDGAR: item is ambiguous")
	require.NotNil(t, res.DisclosureDays)
	assert.Equal(t, -5, *res.DisclosureDays, "disclosed five days before the leak posting")
	assert.False(t, res.Edgar.Found)
}

func TestCorrelate_TrackerOnlyWithoutCIK(t *testing.T) {
	f := newCorrelatorFixture(t)

	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Globex",
		PostDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})

	require.True(t, res.Found)
	assert.Equal(t, SourceTracker, res.Source)
	assert.Empty(t, res.Item, "no CIK means no EDGAR signal to contradict the tracker")
	assert.Equal(t, "no registrant id provided", res.Edgar.Reason)
	assert.Equal(t, int64(0), f.edgarCalls.Load())
}

func TestCorrelate_NothingFound(t *testing.T) {
	f := newCorrelatorFixture(t)
	f.edgarStatus.Store(http.StatusNotFound)

	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Completely Unrelated",
		CIK:         "55555",
		PostDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	})

	assert.False(t, res.Found)
	assert.Empty(t, res.Source)
	assert.Nil(t, res.DisclosureDays)
	assert.NotEmpty(t, res.Edgar.Reason)
	assert.NotEmpty(t, res.Tracker.Reason)
}

func TestCorrelate_EdgarFailureDegrades(t *testing.T) {
	f := newCorrelatorFixture(t)
	f.edgarStatus.Store(http.StatusServiceUnavailable)

	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Globex",
		CIK:         "1234567",
		PostDate:    time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
	})

	// Source outage degrades to a tracker-only result; the audit trail
	// distinguishes "source down" from "checked and clean".
	require.True(t, res.Found)
	assert.Equal(t, SourceTracker, res.Source)
	assert.Contains(t, res.Edgar.Reason, "edgar fetch failed")
}

func TestCorrelate_SignedDisclosureDays(t *testing.T) {
	assert.Equal(t, 5, disclosureDays(
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -4, disclosureDays(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, disclosureDays(
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)))

	// Leak postings carry a time of day; the count is calendar days, so a
	// mid-afternoon posting must not shave a day off the difference.
	assert.Equal(t, 5, disclosureDays(
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, -4, disclosureDays(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 0, disclosureDays(
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 5, 18, 30, 0, 0, time.UTC)))
}

func TestCorrelate_SearchWindowExcludesOldFilings(t *testing.T) {
	f := newCorrelatorFixture(t)

	// The only 1.05 filings are more than a year before this post date.
	res := f.correlator.Correlate(context.Background(), Query{
		CompanyName: "Completely Unrelated",
		CIK:         "1234567",
		PostDate:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.False(t, res.Edgar.Found)
	assert.Equal(t, "no 1.05 filing in window", res.Edgar.Reason)
}

func TestCorrelateBatch_OrderAndIsolation(t *testing.T) {
	f := newCorrelatorFixture(t)
	f.edgarStatus.Store(http.StatusServiceUnavailable) // every EDGAR call fails

	queries := []Query{
		{CompanyName: "Acme Widgets", CIK: "111", PostDate: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)},
		{CompanyName: "No Such Company", PostDate: time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)},
		{CompanyName: "Globex", CIK: "222", PostDate: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)},
		{CompanyName: "Initech", PostDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	results := f.correlator.CorrelateBatch(context.Background(), queries, 2)
	require.Len(t, results, len(queries))

	// Input order preserved; failed EDGAR calls do not abort siblings.
	assert.True(t, results[0].Found)
	assert.Equal(t, SourceTracker, results[0].Source)
	assert.False(t, results[1].Found)
	assert.True(t, results[2].Found)
	assert.True(t, results[3].Found)
}
