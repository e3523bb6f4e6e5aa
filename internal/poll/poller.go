// Package poll drives monitor-based ingestion from RansomLook into the store.
package poll

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leakwatch/internal/model"
	"github.com/sells-group/leakwatch/internal/store"
)

// Source lists leak-site postings for one group. *ransomlook.Client
// satisfies it.
type Source interface {
	GroupPosts(ctx context.Context, groupName string, start, end time.Time) ([]model.VictimCreate, error)
}

// Poller ingests victim postings for the monitors that are due.
type Poller struct {
	store  store.Store
	source Source
	now    func() time.Time
}

// New creates a Poller.
func New(st store.Store, source Source) *Poller {
	return &Poller{store: st, source: source, now: time.Now}
}

// Result summarizes one monitor poll.
type Result struct {
	MonitorID string `json:"monitor_id"`
	GroupName string `json:"group_name"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
	Err       error  `json:"-"`
}

// PollMonitor fetches postings for one monitor and upserts them. The fetch
// window starts at the later of the monitor's start date and its last poll,
// and is capped by the monitor's end date when set.
func (p *Poller) PollMonitor(ctx context.Context, m model.Monitor) (Result, error) {
	res := Result{MonitorID: m.ID, GroupName: m.GroupName}

	start := m.StartDate
	if m.LastPollAt != nil && m.LastPollAt.After(start) {
		start = *m.LastPollAt
	}
	var end time.Time
	if m.EndDate != nil {
		end = *m.EndDate
	}

	victims, err := p.source.GroupPosts(ctx, m.GroupName, start, end)
	if err != nil {
		return res, eris.Wrapf(err, "poll: fetch posts for %s", m.GroupName)
	}

	inserted, skipped, err := p.store.UpsertVictims(ctx, victims)
	res.Inserted = inserted
	res.Skipped = skipped
	if err != nil {
		return res, eris.Wrapf(err, "poll: upsert victims for %s", m.GroupName)
	}

	if err := p.store.TouchMonitorPoll(ctx, m.ID, p.now().UTC()); err != nil {
		return res, err
	}

	zap.L().Info("monitor polled",
		zap.String("monitor_id", m.ID),
		zap.String("group", m.GroupName),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped))
	return res, nil
}

// pollConcurrency bounds simultaneous monitor polls against the aggregator.
const pollConcurrency = 3

// PollDue polls every active monitor whose interval has elapsed. Expired
// monitors are deactivated instead of polled. One monitor's failure never
// blocks the rest; per-monitor errors ride in the results.
func (p *Poller) PollDue(ctx context.Context) ([]Result, error) {
	monitors, err := p.store.ListMonitors(ctx, true)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	var due []model.Monitor
	for _, m := range monitors {
		if m.Expired(now) {
			if err := p.store.DeactivateMonitor(ctx, m.ID); err != nil {
				zap.L().Warn("failed to expire monitor", zap.String("monitor_id", m.ID), zap.Error(err))
			} else {
				zap.L().Info("monitor expired", zap.String("monitor_id", m.ID), zap.String("group", m.GroupName))
			}
			continue
		}
		if m.Due(now) {
			due = append(due, m)
		}
	}

	results := make([]Result, len(due))
	g := errgroup.Group{}
	g.SetLimit(pollConcurrency)
	for i, m := range due {
		g.Go(func() error {
			res, err := p.PollMonitor(ctx, m)
			if err != nil {
				res.Err = err
				zap.L().Warn("monitor poll failed",
					zap.String("monitor_id", m.ID),
					zap.String("group", m.GroupName),
					zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}
