// Package store persists victims and monitors behind a driver-agnostic
// interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leakwatch/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = eris.New("store: not found")

// CorrelationUpdate carries the outcome of an 8-K correlation onto a victim.
type CorrelationUpdate struct {
	Found          bool       `json:"found"`
	FilingDate     *time.Time `json:"filing_date,omitempty"`
	FilingURL      string     `json:"filing_url,omitempty"`
	Source         string     `json:"source,omitempty"`
	Item           string     `json:"item,omitempty"`
	DisclosureDays *int       `json:"disclosure_days,omitempty"`
}

// ClassificationUpdate carries AI classification results onto a victim.
type ClassificationUpdate struct {
	Confidence   string            `json:"confidence"`
	AINotes      string            `json:"ai_notes,omitempty"`
	CompanyName  string            `json:"company_name,omitempty"`
	CompanyType  model.CompanyType `json:"company_type,omitempty"`
	Region       string            `json:"region,omitempty"`
	Country      string            `json:"country,omitempty"`
	SECRegulated bool              `json:"is_sec_regulated"`
	SECCIK       string            `json:"sec_cik,omitempty"`
}

// NewsUpdate carries AI news-correlation results onto a victim.
type NewsUpdate struct {
	Found                  bool       `json:"news_found"`
	Summary                string     `json:"news_summary,omitempty"`
	Sources                []string   `json:"news_sources,omitempty"`
	FirstNewsDate          *time.Time `json:"first_news_date,omitempty"`
	DisclosureAcknowledged *bool      `json:"disclosure_acknowledged,omitempty"`
}

// Store is the persistence interface for leakwatch.
type Store interface {
	// Victims
	UpsertVictims(ctx context.Context, victims []model.VictimCreate) (inserted, skipped int, err error)
	GetVictim(ctx context.Context, id string) (*model.Victim, error)
	ListVictims(ctx context.Context, filter model.VictimFilter) ([]model.Victim, error)
	ReviewVictim(ctx context.Context, id string, review model.VictimReview) (*model.Victim, error)
	UpdateClassification(ctx context.Context, id string, update ClassificationUpdate) error
	UpdateNewsCorrelation(ctx context.Context, id string, update NewsUpdate) error
	Update8KCorrelation(ctx context.Context, id string, update CorrelationUpdate) error

	// Lifecycle (soft delete / junk flagging)
	DeleteVictim(ctx context.Context, id string) error
	FlagVictim(ctx context.Context, id, reason string) error
	RestoreVictim(ctx context.Context, id string) error
	BulkDeleteVictims(ctx context.Context, ids []string) (int, error)

	Stats(ctx context.Context) (*model.Stats, error)

	// Monitors
	CreateMonitor(ctx context.Context, create model.MonitorCreate) (*model.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*model.Monitor, error)
	ListMonitors(ctx context.Context, activeOnly bool) ([]model.Monitor, error)
	DeactivateMonitor(ctx context.Context, id string) error
	TouchMonitorPoll(ctx context.Context, id string, at time.Time) error

	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps unbounded victim listings.
const defaultListLimit = 100
