package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leakwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS victims (
	id                      TEXT PRIMARY KEY,
	group_name              TEXT NOT NULL,
	victim_raw              TEXT NOT NULL,
	post_date               DATETIME NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	screenshot_url          TEXT NOT NULL DEFAULT '',
	data_link               TEXT NOT NULL DEFAULT '',
	company_name            TEXT NOT NULL DEFAULT '',
	company_type            TEXT NOT NULL DEFAULT 'unknown',
	region                  TEXT NOT NULL DEFAULT '',
	country                 TEXT NOT NULL DEFAULT '',
	is_sec_regulated        INTEGER NOT NULL DEFAULT 0,
	sec_cik                 TEXT NOT NULL DEFAULT '',
	stock_ticker            TEXT NOT NULL DEFAULT '',
	is_subsidiary           INTEGER NOT NULL DEFAULT 0,
	parent_company          TEXT NOT NULL DEFAULT '',
	has_adr                 INTEGER NOT NULL DEFAULT 0,
	has_8k_filing           INTEGER,
	sec_8k_date             DATETIME,
	sec_8k_url              TEXT NOT NULL DEFAULT '',
	sec_8k_source           TEXT NOT NULL DEFAULT '',
	sec_8k_item             TEXT NOT NULL DEFAULT '',
	disclosure_days         INTEGER,
	confidence_score        TEXT NOT NULL DEFAULT '',
	ai_notes                TEXT NOT NULL DEFAULT '',
	news_found              INTEGER,
	news_summary            TEXT NOT NULL DEFAULT '',
	news_sources            TEXT NOT NULL DEFAULT '[]',
	first_news_date         DATETIME,
	disclosure_acknowledged INTEGER,
	review_status           TEXT NOT NULL DEFAULT 'pending',
	notes                   TEXT NOT NULL DEFAULT '',
	lifecycle_status        TEXT NOT NULL DEFAULT 'active',
	flag_reason             TEXT NOT NULL DEFAULT '',
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL,
	UNIQUE (group_name, victim_raw, post_date)
);

CREATE TABLE IF NOT EXISTS monitors (
	id                  TEXT PRIMARY KEY,
	group_name          TEXT NOT NULL,
	start_date          DATETIME NOT NULL,
	end_date            DATETIME,
	poll_interval_hours INTEGER NOT NULL DEFAULT 24,
	auto_expire_days    INTEGER NOT NULL DEFAULT 0,
	is_active           INTEGER NOT NULL DEFAULT 1,
	last_poll_at        DATETIME,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_victims_group ON victims(group_name);
CREATE INDEX IF NOT EXISTS idx_victims_post_date ON victims(post_date);
CREATE INDEX IF NOT EXISTS idx_victims_review ON victims(review_status);
CREATE INDEX IF NOT EXISTS idx_victims_lifecycle ON victims(lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_monitors_active ON monitors(is_active);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertVictims(ctx context.Context, victims []model.VictimCreate) (int, int, error) {
	var inserted, skipped int
	now := time.Now().UTC()

	for _, vc := range victims {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO victims (id, group_name, victim_raw, post_date, description, screenshot_url, data_link, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (group_name, victim_raw, post_date) DO NOTHING`,
			uuid.New().String(), vc.GroupName, vc.VictimRaw, vc.PostDate.UTC(),
			vc.Description, vc.ScreenshotURL, vc.DataLink, now, now,
		)
		if err != nil {
			return inserted, skipped, eris.Wrapf(err, "sqlite: upsert victim %s/%s", vc.GroupName, vc.VictimRaw)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, skipped, eris.Wrap(err, "sqlite: rows affected")
		}
		if n > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

func (s *SQLiteStore) GetVictim(ctx context.Context, id string) (*model.Victim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+victimColumns+` FROM victims WHERE id = ?`, id)
	v, err := scanVictim(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get victim %s", id)
	}
	return v, nil
}

func (s *SQLiteStore) ListVictims(ctx context.Context, filter model.VictimFilter) ([]model.Victim, error) {
	query := `SELECT ` + victimColumns + ` FROM victims WHERE 1=1`
	var args []any

	if !filter.IncludeHidden {
		query += ` AND lifecycle_status = 'active'`
	}
	if filter.GroupName != "" {
		query += ` AND group_name = ?`
		args = append(args, filter.GroupName)
	}
	if filter.ReviewStatus != "" {
		query += ` AND review_status = ?`
		args = append(args, string(filter.ReviewStatus))
	}
	if filter.CompanyType != "" {
		query += ` AND company_type = ?`
		args = append(args, string(filter.CompanyType))
	}
	if filter.SECRegulated != nil {
		query += ` AND is_sec_regulated = ?`
		args = append(args, *filter.SECRegulated)
	}
	if !filter.StartDate.IsZero() {
		query += ` AND post_date >= ?`
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += ` AND post_date <= ?`
		args = append(args, filter.EndDate.UTC())
	}
	query += ` ORDER BY post_date DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list victims")
	}
	defer rows.Close()

	var victims []model.Victim
	for rows.Next() {
		v, err := scanVictim(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan victim")
		}
		victims = append(victims, *v)
	}
	return victims, eris.Wrap(rows.Err(), "sqlite: list victims iterate")
}

func (s *SQLiteStore) ReviewVictim(ctx context.Context, id string, review model.VictimReview) (*model.Victim, error) {
	companyType := review.CompanyType
	if companyType == "" || !companyType.Valid() {
		companyType = model.CompanyUnknown
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET
			company_name = ?, company_type = ?, region = ?, country = ?,
			is_sec_regulated = ?, sec_cik = ?, stock_ticker = ?,
			is_subsidiary = ?, parent_company = ?, has_adr = ?,
			notes = ?, review_status = ?, updated_at = ?
		 WHERE id = ?`,
		review.CompanyName, string(companyType), review.Region, review.Country,
		review.SECRegulated, review.SECCIK, review.StockTicker,
		review.Subsidiary, review.ParentCompany, review.HasADR,
		review.Notes, string(model.ReviewReviewed), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: review victim %s", id)
	}
	if err := checkRowsAffected(res, "victim", id); err != nil {
		return nil, err
	}
	return s.GetVictim(ctx, id)
}

func (s *SQLiteStore) UpdateClassification(ctx context.Context, id string, update ClassificationUpdate) error {
	update = normalizeClassification(update)
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET
			confidence_score = ?, ai_notes = ?, company_name = ?, company_type = ?,
			region = ?, country = ?, is_sec_regulated = ?, sec_cik = ?, updated_at = ?
		 WHERE id = ?`,
		update.Confidence, update.AINotes, update.CompanyName, string(update.CompanyType),
		update.Region, update.Country, update.SECRegulated, update.SECCIK,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update classification %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) UpdateNewsCorrelation(ctx context.Context, id string, update NewsUpdate) error {
	sources, err := marshalSources(update.Sources)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET
			news_found = ?, news_summary = ?, news_sources = ?,
			first_news_date = ?, disclosure_acknowledged = ?, updated_at = ?
		 WHERE id = ?`,
		update.Found, update.Summary, sources,
		update.FirstNewsDate, update.DisclosureAcknowledged, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update news correlation %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) Update8KCorrelation(ctx context.Context, id string, update CorrelationUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET
			has_8k_filing = ?, sec_8k_date = ?, sec_8k_url = ?,
			sec_8k_source = ?, sec_8k_item = ?, disclosure_days = ?, updated_at = ?
		 WHERE id = ?`,
		update.Found, update.FilingDate, update.FilingURL,
		update.Source, update.Item, update.DisclosureDays, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update 8-K correlation %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) DeleteVictim(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET lifecycle_status = ?, updated_at = ? WHERE id = ?`,
		string(model.LifecycleDeleted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete victim %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) FlagVictim(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET lifecycle_status = ?, flag_reason = ?, updated_at = ? WHERE id = ?`,
		string(model.LifecycleFlagged), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: flag victim %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) RestoreVictim(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET lifecycle_status = ?, flag_reason = '', updated_at = ? WHERE id = ?`,
		string(model.LifecycleActive), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: restore victim %s", id)
	}
	return checkRowsAffected(res, "victim", id)
}

func (s *SQLiteStore) BulkDeleteVictims(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(model.LifecycleDeleted), time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE victims SET lifecycle_status = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk delete victims")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByCompanyType: map[string]int{},
		ByGroup:       map[string]int{},
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN review_status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN review_status = 'reviewed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_sec_regulated THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN has_8k_filing THEN 1 ELSE 0 END), 0)
		FROM victims WHERE lifecycle_status = 'active'`,
	).Scan(&stats.TotalVictims, &stats.PendingCount, &stats.ReviewedCount,
		&stats.SECRegulated, &stats.With8KFiling)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats counts")
	}

	if err := s.countBy(ctx, "company_type", stats.ByCompanyType); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "group_name", stats.ByGroup); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM monitors WHERE is_active`,
	).Scan(&stats.ActiveMonitors)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats monitors")
	}
	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM victims WHERE lifecycle_status = 'active' GROUP BY `+column)
	if err != nil {
		return eris.Wrapf(err, "sqlite: stats by %s", column)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return eris.Wrapf(err, "sqlite: scan stats by %s", column)
		}
		into[key] = count
	}
	return eris.Wrapf(rows.Err(), "sqlite: stats by %s iterate", column)
}

func (s *SQLiteStore) CreateMonitor(ctx context.Context, create model.MonitorCreate) (*model.Monitor, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	interval := create.PollIntervalHours
	if interval <= 0 {
		interval = 24
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (id, group_name, start_date, end_date, poll_interval_hours, auto_expire_days, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id, create.GroupName, create.StartDate.UTC(), create.EndDate,
		interval, create.AutoExpireDays, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert monitor %s", create.GroupName)
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

func (s *SQLiteStore) GetMonitor(ctx context.Context, id string) (*model.Monitor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	m, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get monitor %s", id)
	}
	return m, nil
}

func (s *SQLiteStore) ListMonitors(ctx context.Context, activeOnly bool) ([]model.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list monitors")
	}
	defer rows.Close()

	var monitors []model.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan monitor")
		}
		monitors = append(monitors, *m)
	}
	return monitors, eris.Wrap(rows.Err(), "sqlite: list monitors iterate")
}

func (s *SQLiteStore) DeactivateMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate monitor %s", id)
	}
	return checkRowsAffected(res, "monitor", id)
}

func (s *SQLiteStore) TouchMonitorPoll(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET last_poll_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch monitor %s", id)
	}
	return checkRowsAffected(res, "monitor", id)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
