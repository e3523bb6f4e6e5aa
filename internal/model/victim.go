package model

import "time"

// CompanyType classifies a victim company.
type CompanyType string

const (
	CompanyPublic     CompanyType = "public"
	CompanyPrivate    CompanyType = "private"
	CompanyGovernment CompanyType = "government"
	CompanyUnknown    CompanyType = "unknown"
)

// Valid reports whether the value is a known company type.
func (c CompanyType) Valid() bool {
	switch c {
	case CompanyPublic, CompanyPrivate, CompanyGovernment, CompanyUnknown:
		return true
	}
	return false
}

// ReviewStatus is the review workflow state of a victim record.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
)

// Valid reports whether the value is a known review status.
func (r ReviewStatus) Valid() bool {
	return r == ReviewPending || r == ReviewReviewed
}

// LifecycleStatus drives soft delete and junk flagging. Flagged and deleted
// records stay in the store but are hidden from default listings.
type LifecycleStatus string

const (
	LifecycleActive  LifecycleStatus = "active"
	LifecycleFlagged LifecycleStatus = "flagged"
	LifecycleDeleted LifecycleStatus = "deleted"
)

// Victim is one leak-site posting, progressively enriched with company
// identity, SEC correlation, and AI analysis.
type Victim struct {
	ID string `json:"id"`

	// Raw leak-site data
	GroupName     string    `json:"group_name"`
	VictimRaw     string    `json:"victim_raw"`
	PostDate      time.Time `json:"post_date"`
	Description   string    `json:"description,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	DataLink      string    `json:"data_link,omitempty"`

	// Enriched company identity
	CompanyName   string      `json:"company_name,omitempty"`
	CompanyType   CompanyType `json:"company_type"`
	Region        string      `json:"region,omitempty"`
	Country       string      `json:"country,omitempty"`
	SECRegulated  bool        `json:"is_sec_regulated"`
	SECCIK        string      `json:"sec_cik,omitempty"`
	StockTicker   string      `json:"stock_ticker,omitempty"`
	Subsidiary    bool        `json:"is_subsidiary"`
	ParentCompany string      `json:"parent_company,omitempty"`
	HasADR        bool        `json:"has_adr"`

	// SEC 8-K correlation. Has8KFiling is tri-state: nil means not yet
	// checked.
	Has8KFiling    *bool      `json:"has_8k_filing"`
	SEC8KDate      *time.Time `json:"sec_8k_date,omitempty"`
	SEC8KURL       string     `json:"sec_8k_url,omitempty"`
	SEC8KSource    string     `json:"sec_8k_source,omitempty"`
	SEC8KItem      string     `json:"sec_8k_item,omitempty"`
	DisclosureDays *int       `json:"disclosure_days,omitempty"`

	// AI analysis
	ConfidenceScore        string     `json:"confidence_score,omitempty"`
	AINotes                string     `json:"ai_notes,omitempty"`
	NewsFound              *bool      `json:"news_found"`
	NewsSummary            string     `json:"news_summary,omitempty"`
	NewsSources            []string   `json:"news_sources,omitempty"`
	FirstNewsDate          *time.Time `json:"first_news_date,omitempty"`
	DisclosureAcknowledged *bool      `json:"disclosure_acknowledged"`

	// Review workflow and lifecycle
	ReviewStatus ReviewStatus    `json:"review_status"`
	Notes        string          `json:"notes,omitempty"`
	Lifecycle    LifecycleStatus `json:"lifecycle_status"`
	FlagReason   string          `json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VictimCreate carries a new posting from the leak-site poller.
type VictimCreate struct {
	GroupName     string    `json:"group_name"`
	VictimRaw     string    `json:"victim_raw"`
	PostDate      time.Time `json:"post_date"`
	Description   string    `json:"description,omitempty"`
	ScreenshotURL string    `json:"screenshot_url,omitempty"`
	DataLink      string    `json:"data_link,omitempty"`
}

// VictimReview carries a manual or AI-assisted classification update.
type VictimReview struct {
	CompanyName   string      `json:"company_name,omitempty"`
	CompanyType   CompanyType `json:"company_type,omitempty"`
	Region        string      `json:"region,omitempty"`
	Country       string      `json:"country,omitempty"`
	SECRegulated  bool        `json:"is_sec_regulated"`
	SECCIK        string      `json:"sec_cik,omitempty"`
	StockTicker   string      `json:"stock_ticker,omitempty"`
	Subsidiary    bool        `json:"is_subsidiary"`
	ParentCompany string      `json:"parent_company,omitempty"`
	HasADR        bool        `json:"has_adr"`
	Notes         string      `json:"notes,omitempty"`
}

// VictimFilter selects victims for listing and export.
type VictimFilter struct {
	GroupName     string       `json:"group_name,omitempty"`
	ReviewStatus  ReviewStatus `json:"review_status,omitempty"`
	CompanyType   CompanyType  `json:"company_type,omitempty"`
	SECRegulated  *bool        `json:"is_sec_regulated,omitempty"`
	StartDate     time.Time    `json:"start_date,omitzero"`
	EndDate       time.Time    `json:"end_date,omitzero"`
	IncludeHidden bool         `json:"include_hidden,omitempty"`
	Limit         int          `json:"limit,omitempty"`
	Offset        int          `json:"offset,omitempty"`
}

// Stats summarizes the victim table for dashboards.
type Stats struct {
	TotalVictims   int            `json:"total_victims"`
	PendingCount   int            `json:"pending_count"`
	ReviewedCount  int            `json:"reviewed_count"`
	ByCompanyType  map[string]int `json:"by_company_type"`
	ByGroup        map[string]int `json:"by_group"`
	SECRegulated   int            `json:"sec_regulated"`
	With8KFiling   int            `json:"with_8k_filing"`
	ActiveMonitors int            `json:"active_monitors"`
}
