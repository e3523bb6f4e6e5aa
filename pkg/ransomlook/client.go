// Package ransomlook is a client for the RansomLook.io leak-site aggregation
// API. RansomLook data is CC BY 4.0 licensed and requires attribution.
package ransomlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/model"
)

// DefaultBaseURL is the public RansomLook.io endpoint.
const DefaultBaseURL = "https://www.ransomlook.io"

const defaultUserAgent = "leakwatch/1.0 (threat intelligence tracker)"

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client fetches tracked groups and victim posts from RansomLook.
type Client struct {
	client  *http.Client
	baseURL string
	ua      string
}

// New creates a RansomLook client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		ua:      opts.UserAgent,
	}
}

// ListGroups returns the names of all tracked ransomware groups, sorted.
func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/groups")
	if err != nil {
		return nil, err
	}

	// The API has returned both a name-keyed object and a plain array.
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(body, &asMap); err == nil {
		groups := make([]string, 0, len(asMap))
		for name := range asMap {
			groups = append(groups, name)
		}
		sort.Strings(groups)
		return groups, nil
	}

	var asList []string
	if err := json.Unmarshal(body, &asList); err != nil {
		return nil, eris.Wrap(err, "ransomlook: decode groups")
	}
	sort.Strings(asList)
	return asList, nil
}

// GroupExists reports whether the group is tracked by RansomLook.
func (c *Client) GroupExists(ctx context.Context, groupName string) (bool, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return false, err
	}
	want := strings.ToLower(groupName)
	for _, g := range groups {
		if strings.ToLower(g) == want {
			return true, nil
		}
	}
	return false, nil
}

// GroupPosts returns victim postings for one group, filtered to the
// inclusive [start, end] window. Zero times disable the corresponding bound.
// An unknown group returns an empty slice, not an error.
func (c *Client) GroupPosts(ctx context.Context, groupName string, start, end time.Time) ([]model.VictimCreate, error) {
	group := strings.ToLower(groupName)
	body, err := c.get(ctx, "/api/group/"+group)
	if err != nil {
		return nil, err
	}
	if body == nil {
		zap.L().Warn("ransomlook group not found", zap.String("group", group))
		return nil, nil
	}

	// The response is a two-element array: [group_metadata, posts]. The
	// posts element is sometimes an object with numeric keys instead of
	// an array; accept both.
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope) < 2 {
		zap.L().Warn("ransomlook: unexpected group response shape", zap.String("group", group))
		return nil, nil
	}

	var rawPosts []json.RawMessage
	if err := json.Unmarshal(envelope[1], &rawPosts); err != nil {
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(envelope[1], &keyed); err != nil {
			zap.L().Warn("ransomlook: unexpected posts shape", zap.String("group", group))
			return nil, nil
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rawPosts = append(rawPosts, keyed[k])
		}
	}

	var victims []model.VictimCreate
	for _, raw := range rawPosts {
		v, ok := c.parsePost(group, raw)
		if !ok {
			continue
		}
		if !start.IsZero() && v.PostDate.Before(start) {
			continue
		}
		if !end.IsZero() && v.PostDate.After(end) {
			continue
		}
		victims = append(victims, v)
	}

	zap.L().Info("ransomlook group posts fetched",
		zap.String("group", group),
		zap.Int("total", len(rawPosts)),
		zap.Int("kept", len(victims)))
	return victims, nil
}

// RecentPosts returns the newest postings across all groups, capped at limit.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]model.VictimCreate, error) {
	body, err := c.get(ctx, "/api/recent")
	if err != nil {
		return nil, err
	}

	var rawPosts []json.RawMessage
	if err := json.Unmarshal(body, &rawPosts); err != nil {
		return nil, eris.Wrap(err, "ransomlook: decode recent posts")
	}
	if limit > 0 && len(rawPosts) > limit {
		rawPosts = rawPosts[:limit]
	}

	var victims []model.VictimCreate
	for _, raw := range rawPosts {
		var meta struct {
			GroupName string `json:"group_name"`
		}
		group := "unknown"
		if err := json.Unmarshal(raw, &meta); err == nil && meta.GroupName != "" {
			group = meta.GroupName
		}
		if v, ok := c.parsePost(group, raw); ok {
			victims = append(victims, v)
		}
	}
	return victims, nil
}

type post struct {
	PostTitle   string `json:"post_title"`
	Discovered  string `json:"discovered"`
	Description string `json:"description"`
	Screen      string `json:"screen"`
	Link        string `json:"link"`
	Magnet      string `json:"magnet"`
}

// parsePost converts one raw posting. Posts with no title or an unparseable
// discovery timestamp are dropped.
func (c *Client) parsePost(group string, raw json.RawMessage) (model.VictimCreate, bool) {
	var p post
	if err := json.Unmarshal(raw, &p); err != nil {
		zap.L().Warn("ransomlook: skipping malformed post", zap.String("group", group), zap.Error(err))
		return model.VictimCreate{}, false
	}

	victimRaw := strings.TrimSpace(p.PostTitle)
	if victimRaw == "" || p.Discovered == "" {
		return model.VictimCreate{}, false
	}

	postDate, err := parseDiscovered(p.Discovered)
	if err != nil {
		zap.L().Warn("ransomlook: skipping post with bad discovery date",
			zap.String("group", group),
			zap.String("discovered", p.Discovered))
		return model.VictimCreate{}, false
	}

	screenshot := p.Screen
	if screenshot != "" && !strings.HasPrefix(screenshot, "http") {
		screenshot = fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(screenshot, "/"))
	}
	dataLink := p.Link
	if dataLink == "" {
		dataLink = p.Magnet
	}

	return model.VictimCreate{
		GroupName:     strings.ToLower(group),
		VictimRaw:     victimRaw,
		PostDate:      postDate,
		Description:   strings.TrimSpace(p.Description),
		ScreenshotURL: screenshot,
		DataLink:      dataLink,
	}, true
}

// discoveredFormats covers the timestamp shapes RansomLook emits, most
// specific first. Discovery timestamps carry no zone and are taken as UTC.
var discoveredFormats = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseDiscovered(value string) (time.Time, error) {
	for _, format := range discoveredFormats {
		if t, err := time.ParseInLocation(format, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("ransomlook: unparseable timestamp %q", value)
}

// get fetches a path and returns the body. A 404 returns (nil, nil).
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ransomlook: build request")
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "ransomlook: get %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ransomlook: get %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "ransomlook: read %s", path)
	}
	return body, nil
}
