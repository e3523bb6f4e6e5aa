package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leakwatch/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS victims (
	id                      TEXT PRIMARY KEY,
	group_name              TEXT NOT NULL,
	victim_raw              TEXT NOT NULL,
	post_date               TIMESTAMPTZ NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	screenshot_url          TEXT NOT NULL DEFAULT '',
	data_link               TEXT NOT NULL DEFAULT '',
	company_name            TEXT NOT NULL DEFAULT '',
	company_type            TEXT NOT NULL DEFAULT 'unknown',
	region                  TEXT NOT NULL DEFAULT '',
	country                 TEXT NOT NULL DEFAULT '',
	is_sec_regulated        BOOLEAN NOT NULL DEFAULT false,
	sec_cik                 TEXT NOT NULL DEFAULT '',
	stock_ticker            TEXT NOT NULL DEFAULT '',
	is_subsidiary           BOOLEAN NOT NULL DEFAULT false,
	parent_company          TEXT NOT NULL DEFAULT '',
	has_adr                 BOOLEAN NOT NULL DEFAULT false,
	has_8k_filing           BOOLEAN,
	sec_8k_date             TIMESTAMPTZ,
	sec_8k_url              TEXT NOT NULL DEFAULT '',
	sec_8k_source           TEXT NOT NULL DEFAULT '',
	sec_8k_item             TEXT NOT NULL DEFAULT '',
	disclosure_days         INTEGER,
	confidence_score        TEXT NOT NULL DEFAULT '',
	ai_notes                TEXT NOT NULL DEFAULT '',
	news_found              BOOLEAN,
	news_summary            TEXT NOT NULL DEFAULT '',
	news_sources            TEXT NOT NULL DEFAULT '[]',
	first_news_date         TIMESTAMPTZ,
	disclosure_acknowledged BOOLEAN,
	review_status           TEXT NOT NULL DEFAULT 'pending',
	notes                   TEXT NOT NULL DEFAULT '',
	lifecycle_status        TEXT NOT NULL DEFAULT 'active',
	flag_reason             TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (group_name, victim_raw, post_date)
);

CREATE TABLE IF NOT EXISTS monitors (
	id                  TEXT PRIMARY KEY,
	group_name          TEXT NOT NULL,
	start_date          TIMESTAMPTZ NOT NULL,
	end_date            TIMESTAMPTZ,
	poll_interval_hours INTEGER NOT NULL DEFAULT 24,
	auto_expire_days    INTEGER NOT NULL DEFAULT 0,
	is_active           BOOLEAN NOT NULL DEFAULT true,
	last_poll_at        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_victims_group ON victims(group_name);
CREATE INDEX IF NOT EXISTS idx_victims_post_date ON victims(post_date);
CREATE INDEX IF NOT EXISTS idx_victims_review ON victims(review_status);
CREATE INDEX IF NOT EXISTS idx_victims_lifecycle ON victims(lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_monitors_active ON monitors(is_active);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertVictims(ctx context.Context, victims []model.VictimCreate) (int, int, error) {
	var inserted, skipped int
	now := time.Now().UTC()

	for _, vc := range victims {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO victims (id, group_name, victim_raw, post_date, description, screenshot_url, data_link, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (group_name, victim_raw, post_date) DO NOTHING`,
			uuid.New().String(), vc.GroupName, vc.VictimRaw, vc.PostDate.UTC(),
			vc.Description, vc.ScreenshotURL, vc.DataLink, now, now,
		)
		if err != nil {
			return inserted, skipped, eris.Wrapf(err, "postgres: upsert victim %s/%s", vc.GroupName, vc.VictimRaw)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

func (s *PostgresStore) GetVictim(ctx context.Context, id string) (*model.Victim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+victimColumns+` FROM victims WHERE id = $1`, id)
	v, err := scanVictim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get victim %s", id)
	}
	return v, nil
}

func (s *PostgresStore) ListVictims(ctx context.Context, filter model.VictimFilter) ([]model.Victim, error) {
	query := `SELECT ` + victimColumns + ` FROM victims WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.IncludeHidden {
		query += ` AND lifecycle_status = 'active'`
	}
	if filter.GroupName != "" {
		query += fmt.Sprintf(` AND group_name = $%d`, argIdx)
		args = append(args, filter.GroupName)
		argIdx++
	}
	if filter.ReviewStatus != "" {
		query += fmt.Sprintf(` AND review_status = $%d`, argIdx)
		args = append(args, string(filter.ReviewStatus))
		argIdx++
	}
	if filter.CompanyType != "" {
		query += fmt.Sprintf(` AND company_type = $%d`, argIdx)
		args = append(args, string(filter.CompanyType))
		argIdx++
	}
	if filter.SECRegulated != nil {
		query += fmt.Sprintf(` AND is_sec_regulated = $%d`, argIdx)
		args = append(args, *filter.SECRegulated)
		argIdx++
	}
	if !filter.StartDate.IsZero() {
		query += fmt.Sprintf(` AND post_date >= $%d`, argIdx)
		args = append(args, filter.StartDate.UTC())
		argIdx++
	}
	if !filter.EndDate.IsZero() {
		query += fmt.Sprintf(` AND post_date <= $%d`, argIdx)
		args = append(args, filter.EndDate.UTC())
		argIdx++
	}
	query += ` ORDER BY post_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list victims")
	}
	defer rows.Close()

	var victims []model.Victim
	for rows.Next() {
		v, err := scanVictim(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan victim")
		}
		victims = append(victims, *v)
	}
	return victims, eris.Wrap(rows.Err(), "postgres: list victims iterate")
}

func (s *PostgresStore) ReviewVictim(ctx context.Context, id string, review model.VictimReview) (*model.Victim, error) {
	companyType := review.CompanyType
	if companyType == "" || !companyType.Valid() {
		companyType = model.CompanyUnknown
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET
			company_name = $1, company_type = $2, region = $3, country = $4,
			is_sec_regulated = $5, sec_cik = $6, stock_ticker = $7,
			is_subsidiary = $8, parent_company = $9, has_adr = $10,
			notes = $11, review_status = $12, updated_at = $13
		 WHERE id = $14`,
		review.CompanyName, string(companyType), review.Region, review.Country,
		review.SECRegulated, review.SECCIK, review.StockTicker,
		review.Subsidiary, review.ParentCompany, review.HasADR,
		review.Notes, string(model.ReviewReviewed), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: review victim %s", id)
	}
	if err := checkTagAffected(tag, "victim", id); err != nil {
		return nil, err
	}
	return s.GetVictim(ctx, id)
}

func (s *PostgresStore) UpdateClassification(ctx context.Context, id string, update ClassificationUpdate) error {
	update = normalizeClassification(update)
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET
			confidence_score = $1, ai_notes = $2, company_name = $3, company_type = $4,
			region = $5, country = $6, is_sec_regulated = $7, sec_cik = $8, updated_at = $9
		 WHERE id = $10`,
		update.Confidence, update.AINotes, update.CompanyName, string(update.CompanyType),
		update.Region, update.Country, update.SECRegulated, update.SECCIK,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update classification %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) UpdateNewsCorrelation(ctx context.Context, id string, update NewsUpdate) error {
	sources, err := marshalSources(update.Sources)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET
			news_found = $1, news_summary = $2, news_sources = $3,
			first_news_date = $4, disclosure_acknowledged = $5, updated_at = $6
		 WHERE id = $7`,
		update.Found, update.Summary, sources,
		update.FirstNewsDate, update.DisclosureAcknowledged, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update news correlation %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) Update8KCorrelation(ctx context.Context, id string, update CorrelationUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET
			has_8k_filing = $1, sec_8k_date = $2, sec_8k_url = $3,
			sec_8k_source = $4, sec_8k_item = $5, disclosure_days = $6, updated_at = $7
		 WHERE id = $8`,
		update.Found, update.FilingDate, update.FilingURL,
		update.Source, update.Item, update.DisclosureDays, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update 8-K correlation %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) DeleteVictim(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET lifecycle_status = $1, updated_at = $2 WHERE id = $3`,
		string(model.LifecycleDeleted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete victim %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) FlagVictim(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET lifecycle_status = $1, flag_reason = $2, updated_at = $3 WHERE id = $4`,
		string(model.LifecycleFlagged), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: flag victim %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) RestoreVictim(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET lifecycle_status = $1, flag_reason = '', updated_at = $2 WHERE id = $3`,
		string(model.LifecycleActive), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: restore victim %s", id)
	}
	return checkTagAffected(tag, "victim", id)
}

func (s *PostgresStore) BulkDeleteVictims(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(model.LifecycleDeleted), time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE victims SET lifecycle_status = $1, updated_at = $2 WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk delete victims")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByCompanyType: map[string]int{},
		ByGroup:       map[string]int{},
	}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE review_status = 'pending'),
		       COUNT(*) FILTER (WHERE review_status = 'reviewed'),
		       COUNT(*) FILTER (WHERE is_sec_regulated),
		       COUNT(*) FILTER (WHERE has_8k_filing)
		FROM victims WHERE lifecycle_status = 'active'`,
	).Scan(&stats.TotalVictims, &stats.PendingCount, &stats.ReviewedCount,
		&stats.SECRegulated, &stats.With8KFiling)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats counts")
	}

	if err := s.countBy(ctx, "company_type", stats.ByCompanyType); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "group_name", stats.ByGroup); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM monitors WHERE is_active`,
	).Scan(&stats.ActiveMonitors)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats monitors")
	}
	return stats, nil
}

func (s *PostgresStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.pool.Query(ctx,
		`SELECT `+column+`, COUNT(*) FROM victims WHERE lifecycle_status = 'active' GROUP BY `+column)
	if err != nil {
		return eris.Wrapf(err, "postgres: stats by %s", column)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return eris.Wrapf(err, "postgres: scan stats by %s", column)
		}
		into[key] = count
	}
	return eris.Wrapf(rows.Err(), "postgres: stats by %s iterate", column)
}

func (s *PostgresStore) CreateMonitor(ctx context.Context, create model.MonitorCreate) (*model.Monitor, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	interval := create.PollIntervalHours
	if interval <= 0 {
		interval = 24
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitors (id, group_name, start_date, end_date, poll_interval_hours, auto_expire_days, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7, $8)`,
		id, create.GroupName, create.StartDate.UTC(), create.EndDate,
		interval, create.AutoExpireDays, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert monitor %s", create.GroupName)
	}

	return &model.Monitor{
		ID:                id,
		GroupName:         create.GroupName,
		StartDate:         create.StartDate.UTC(),
		EndDate:           create.EndDate,
		PollIntervalHours: interval,
		AutoExpireDays:    create.AutoExpireDays,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *PostgresStore) GetMonitor(ctx context.Context, id string) (*model.Monitor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, id)
	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get monitor %s", id)
	}
	return m, nil
}

func (s *PostgresStore) ListMonitors(ctx context.Context, activeOnly bool) ([]model.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list monitors")
	}
	defer rows.Close()

	var monitors []model.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan monitor")
		}
		monitors = append(monitors, *m)
	}
	return monitors, eris.Wrap(rows.Err(), "postgres: list monitors iterate")
}

func (s *PostgresStore) DeactivateMonitor(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitors SET is_active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate monitor %s", id)
	}
	return checkTagAffected(tag, "monitor", id)
}

func (s *PostgresStore) TouchMonitorPoll(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitors SET last_poll_at = $1, updated_at = $2 WHERE id = $3`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch monitor %s", id)
	}
	return checkTagAffected(tag, "monitor", id)
}

func checkTagAffected(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
