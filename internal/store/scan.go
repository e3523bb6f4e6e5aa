package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leakwatch/internal/model"
)

// Thin wrappers over the sql.Null* types that convert to the pointer
// fields the model uses for tri-state values.

type sqlNullBool struct{ sql.NullBool }

func (n sqlNullBool) ptr() *bool {
	if !n.Valid {
		return nil
	}
	b := n.Bool
	return &b
}

type sqlNullTime struct{ sql.NullTime }

func (n sqlNullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

type sqlNullInt struct{ sql.NullInt64 }

func (n sqlNullInt) ptr() *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}

// victimColumns is the column list every victim SELECT uses, in scan order.
const victimColumns = `id, group_name, victim_raw, post_date, description, screenshot_url, data_link,
	company_name, company_type, region, country, is_sec_regulated, sec_cik, stock_ticker,
	is_subsidiary, parent_company, has_adr,
	has_8k_filing, sec_8k_date, sec_8k_url, sec_8k_source, sec_8k_item, disclosure_days,
	confidence_score, ai_notes, news_found, news_summary, news_sources, first_news_date,
	disclosure_acknowledged,
	review_status, notes, lifecycle_status, flag_reason, created_at, updated_at`

const monitorColumns = `id, group_name, start_date, end_date, poll_interval_hours,
	auto_expire_days, is_active, last_poll_at, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

// victimRow holds the nullable scan targets shared by both backends.
// database/sql and pgx both honor the sql.Null* types.
type victimRow struct {
	has8K        sqlNullBool
	sec8KDate    sqlNullTime
	disclosure   sqlNullInt
	newsFound    sqlNullBool
	newsSources  string
	firstNews    sqlNullTime
	acknowledged sqlNullBool
}

func scanVictim(row scannable) (*model.Victim, error) {
	var (
		v   model.Victim
		raw victimRow
	)
	err := row.Scan(
		&v.ID, &v.GroupName, &v.VictimRaw, &v.PostDate, &v.Description, &v.ScreenshotURL, &v.DataLink,
		&v.CompanyName, &v.CompanyType, &v.Region, &v.Country, &v.SECRegulated, &v.SECCIK, &v.StockTicker,
		&v.Subsidiary, &v.ParentCompany, &v.HasADR,
		&raw.has8K, &raw.sec8KDate, &v.SEC8KURL, &v.SEC8KSource, &v.SEC8KItem, &raw.disclosure,
		&v.ConfidenceScore, &v.AINotes, &raw.newsFound, &v.NewsSummary, &raw.newsSources, &raw.firstNews,
		&raw.acknowledged,
		&v.ReviewStatus, &v.Notes, &v.Lifecycle, &v.FlagReason, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Has8KFiling = raw.has8K.ptr()
	v.SEC8KDate = raw.sec8KDate.ptr()
	v.DisclosureDays = raw.disclosure.ptr()
	v.NewsFound = raw.newsFound.ptr()
	v.FirstNewsDate = raw.firstNews.ptr()
	v.DisclosureAcknowledged = raw.acknowledged.ptr()

	if raw.newsSources != "" && raw.newsSources != "[]" {
		if err := json.Unmarshal([]byte(raw.newsSources), &v.NewsSources); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal news sources")
		}
	}
	return &v, nil
}

func scanMonitor(row scannable) (*model.Monitor, error) {
	var (
		m        model.Monitor
		endDate  sqlNullTime
		lastPoll sqlNullTime
	)
	err := row.Scan(
		&m.ID, &m.GroupName, &m.StartDate, &endDate, &m.PollIntervalHours,
		&m.AutoExpireDays, &m.Active, &lastPoll, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.EndDate = endDate.ptr()
	m.LastPollAt = lastPoll.ptr()
	return &m, nil
}

func marshalSources(sources []string) (string, error) {
	if len(sources) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(sources)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal news sources")
	}
	return string(b), nil
}

// normalizeClassification fills defaults so both backends write the same row.
func normalizeClassification(update ClassificationUpdate) ClassificationUpdate {
	if update.CompanyType == "" || !update.CompanyType.Valid() {
		update.CompanyType = model.CompanyUnknown
	}
	return update
}
