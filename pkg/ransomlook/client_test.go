package ransomlook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupBody = `[
  {"name": "akira", "captcha": false},
  [
    {"post_title": "Acme Corp", "discovered": "2025-01-10 16:27:12.699047", "description": " 40GB exfiltrated ", "screen": "screenshots/akira/acme.png"},
    {"post_title": "Globex Inc", "discovered": "2025-02-01 08:00:00", "link": "http://leaks.example/globex"},
    {"post_title": "", "discovered": "2025-02-02 08:00:00"},
    {"post_title": "No Date Ltd", "discovered": ""},
    {"post_title": "Bad Date SA", "discovered": "yesterday-ish"}
  ]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL})
}

func TestListGroups_ObjectKeyed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/groups", r.URL.Path)
		fmt.Fprint(w, `{"lockbit": {}, "akira": {}, "play": {}}`)
	})

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"akira", "lockbit", "play"}, groups)
}

func TestListGroups_PlainArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `["play", "akira"]`)
	})

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"akira", "play"}, groups)
}

func TestGroupExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"akira": {}}`)
	})

	ok, err := c.GroupExists(context.Background(), "Akira")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.GroupExists(context.Background(), "medusa")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupPosts_ParsesAndDropsInvalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/group/akira", r.URL.Path)
		fmt.Fprint(w, groupBody)
	})

	victims, err := c.GroupPosts(context.Background(), "Akira", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, victims, 2, "posts missing title or date are dropped")

	assert.Equal(t, "akira", victims[0].GroupName)
	assert.Equal(t, "Acme Corp", victims[0].VictimRaw)
	assert.Equal(t, "40GB exfiltrated", victims[0].Description)
	assert.Equal(t, time.Date(2025, 1, 10, 16, 27, 12, 699047000, time.UTC), victims[0].PostDate)
	assert.Contains(t, victims[0].ScreenshotURL, "/screenshots/akira/acme.png")
	assert.Contains(t, victims[0].ScreenshotURL, "http", "relative screenshot paths are made absolute")

	assert.Equal(t, "http://leaks.example/globex", victims[1].DataLink)
}

func TestGroupPosts_NumericKeyedPosts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name": "akira"},
			{
				"0": {"post_title": "Acme Corp", "discovered": "2025-01-10 00:00:00"},
				"1": {"post_title": "Globex Inc", "discovered": "2025-01-11 00:00:00"}
			}
		]`)
	})

	victims, err := c.GroupPosts(context.Background(), "akira", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, victims, 2)
}

func TestGroupPosts_DateWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, groupBody)
	})

	start := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	victims, err := c.GroupPosts(context.Background(), "akira", start, time.Time{})
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "Globex Inc", victims[0].VictimRaw)

	end := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	victims, err = c.GroupPosts(context.Background(), "akira", time.Time{}, end)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "Acme Corp", victims[0].VictimRaw)
}

func TestGroupPosts_UnknownGroup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	victims, err := c.GroupPosts(context.Background(), "nope", time.Time{}, time.Time{})
	require.NoError(t, err, "unknown group is not an error")
	assert.Empty(t, victims)
}

func TestGroupPosts_MalformedEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected": "shape"}`)
	})

	victims, err := c.GroupPosts(context.Background(), "akira", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, victims)
}

func TestRecentPosts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/recent", r.URL.Path)
		fmt.Fprint(w, `[
			{"group_name": "akira", "post_title": "Acme Corp", "discovered": "2025-01-10 00:00:00"},
			{"group_name": "lockbit", "post_title": "Globex Inc", "discovered": "2025-01-11 00:00:00"},
			{"post_title": "Initech LLC", "discovered": "2025-01-12 00:00:00"}
		]`)
	})

	victims, err := c.RecentPosts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, victims, 2, "limit caps the result")
	assert.Equal(t, "akira", victims[0].GroupName)
	assert.Equal(t, "lockbit", victims[1].GroupName)
}

func TestRecentPosts_MissingGroupDefaultsToUnknown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"post_title": "Initech LLC", "discovered": "2025-01-12 00:00:00"}]`)
	})

	victims, err := c.RecentPosts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "unknown", victims[0].GroupName)
}

func TestGet_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListGroups(context.Background())
	assert.Error(t, err)
}

func TestParseDiscovered(t *testing.T) {
	for _, value := range []string{
		"2025-12-12 16:27:12.699047",
		"2025-12-12 16:27:12",
		"2025-12-12T16:27:12Z",
		"2025-12-12",
	} {
		got, err := parseDiscovered(value)
		require.NoError(t, err, value)
		assert.Equal(t, 2025, got.Year())
		assert.Equal(t, time.December, got.Month())
	}

	_, err := parseDiscovered("last tuesday")
	assert.Error(t, err)
}
