package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/classify"
	"github.com/sells-group/leakwatch/internal/disclosure"
	"github.com/sells-group/leakwatch/internal/export"
	"github.com/sells-group/leakwatch/internal/poll"
	"github.com/sells-group/leakwatch/internal/store"
	anthropicpkg "github.com/sells-group/leakwatch/pkg/anthropic"
	"github.com/sells-group/leakwatch/pkg/ransomlook"
)

// appEnv bundles the wired subsystems for one command invocation.
type appEnv struct {
	store      store.Store
	correlator *disclosure.Correlator
	classifier *classify.Classifier
	exporter   *export.Writer
	leaks      *ransomlook.Client
	poller     *poll.Poller
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	correlator := disclosure.NewCorrelator(
		disclosure.NewEdgarClient(disclosure.EdgarOptions{
			BaseURL:   cfg.Edgar.BaseURL,
			UserAgent: cfg.Edgar.UserAgent,
		}),
		disclosure.NewTracker(disclosure.TrackerOptions{
			BaseURL: cfg.Tracker.URL,
		}),
	)

	// AI classification is optional; without a key the classify and news
	// commands are unavailable.
	var classifier *classify.Classifier
	if cfg.Anthropic.Key != "" {
		classifier = classify.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Debug("LEAKWATCH_ANTHROPIC_KEY not set, AI classification disabled")
	}

	leaks := ransomlook.New(ransomlook.Options{
		BaseURL: cfg.RansomLook.BaseURL,
		Timeout: time.Duration(cfg.RansomLook.TimeoutSecs) * time.Second,
	})

	return &appEnv{
		store:      st,
		correlator: correlator,
		classifier: classifier,
		exporter:   export.NewWriter(cfg.Export.Dir),
		leaks:      leaks,
		poller:     poll.New(st, leaks),
	}, nil
}

// parseDateFlag parses a YYYY-MM-DD flag value as UTC midnight.
func parseDateFlag(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
