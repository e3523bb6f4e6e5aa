// Package classify enriches victim records with AI-derived company identity
// and news correlation.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leakwatch/internal/model"
	"github.com/sells-group/leakwatch/pkg/anthropic"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// DefaultBatchConcurrency bounds simultaneous classification calls.
const DefaultBatchConcurrency = 3

const classifyPrompt = `You are a threat intelligence analyst. A ransomware group has posted a victim
on its leak site. Identify the real company behind the posting.

Leak site posting:
- Raw victim name: %s
- Description: %s
- Post date: %s
- Ransomware group: %s

Respond with a single JSON object, no other text:
{
  "company_name": "canonical legal name, or null if unidentifiable",
  "company_type": "public | private | government | unknown",
  "country": "ISO country name or null",
  "region": "broad region, e.g. North America, or null",
  "is_sec_regulated": true or false,
  "sec_cik": "SEC Central Index Key digits if the company files with EDGAR, else null",
  "notes": "one or two sentences on how you identified the company"
}`

const verifyPrompt = `Review this company classification for a ransomware leak-site posting and
assess its reliability.

Raw victim name: %s
Description: %s

Classification under review:
%s

Respond with a single JSON object, no other text:
{
  "confidence": "high | medium | low",
  "issues_found": ["list of concerns, empty if none"],
  "recommendation": "accept | flag_for_review",
  "verification_notes": "brief reasoning"
}`

const newsPrompt = `A ransomware group posted a company on its leak site. Based on your knowledge
of public reporting, summarize any news coverage of this incident.

Company: %s
Leak site post date: %s
Ransomware group: %s

Respond with a single JSON object, no other text:
{
  "news_found": true or false,
  "disclosure_acknowledged": true, false, or null if unclear,
  "first_news_date": "YYYY-MM-DD or null",
  "news_summary": "two or three sentences, or null",
  "news_sources": ["publication names or URLs"]
}`

// Classification is the combined classify-and-verify outcome for one victim.
type Classification struct {
	CompanyName    string            `json:"company_name"`
	CompanyType    model.CompanyType `json:"company_type"`
	Country        string            `json:"country,omitempty"`
	Region         string            `json:"region,omitempty"`
	SECRegulated   bool              `json:"is_sec_regulated"`
	SECCIK         string            `json:"sec_cik,omitempty"`
	Confidence     string            `json:"confidence"`
	Notes          string            `json:"notes,omitempty"`
	IssuesFound    []string          `json:"issues_found,omitempty"`
	Recommendation string            `json:"recommendation"`
}

// NewsResult is the AI news-correlation outcome for one victim.
type NewsResult struct {
	Found                  bool     `json:"news_found"`
	DisclosureAcknowledged *bool    `json:"disclosure_acknowledged"`
	FirstNewsDate          string   `json:"first_news_date,omitempty"`
	Summary                string   `json:"news_summary,omitempty"`
	Sources                []string `json:"news_sources,omitempty"`
}

// Classifier drives the classify, verify, and news prompts.
type Classifier struct {
	ai    anthropic.Client
	model string
}

// New creates a Classifier. An empty model selects DefaultModel.
func New(ai anthropic.Client, modelID string) *Classifier {
	if modelID == "" {
		modelID = DefaultModel
	}
	return &Classifier{ai: ai, model: modelID}
}

// ClassifyVictim identifies the company behind a leak-site posting, then runs
// a second verification round to grade confidence.
func (c *Classifier) ClassifyVictim(ctx context.Context, victim model.Victim) (*Classification, error) {
	description := victim.Description
	if description == "" {
		description = "No description available"
	}

	zap.L().Info("classifying victim",
		zap.String("victim", victim.VictimRaw),
		zap.String("group", victim.GroupName))

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf(classifyPrompt,
				victim.VictimRaw, description,
				victim.PostDate.Format("2006-01-02"), victim.GroupName),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: classification call")
	}
	resp.Usage.LogCost(c.model, "classify")

	var raw struct {
		CompanyName  string `json:"company_name"`
		CompanyType  string `json:"company_type"`
		Country      string `json:"country"`
		Region       string `json:"region"`
		SECRegulated bool   `json:"is_sec_regulated"`
		SECCIK       string `json:"sec_cik"`
		Notes        string `json:"notes"`
	}
	classificationJSON := extractJSON(resp.Text)
	if err := json.Unmarshal([]byte(classificationJSON), &raw); err != nil {
		return nil, eris.Wrap(err, "classify: parse classification response")
	}

	verifyResp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(verifyPrompt, victim.VictimRaw, description, classificationJSON),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: verification call")
	}
	verifyResp.Usage.LogCost(c.model, "verify")

	var verification struct {
		Confidence        string   `json:"confidence"`
		IssuesFound       []string `json:"issues_found"`
		Recommendation    string   `json:"recommendation"`
		VerificationNotes string   `json:"verification_notes"`
	}
	if err := json.Unmarshal([]byte(extractJSON(verifyResp.Text)), &verification); err != nil {
		return nil, eris.Wrap(err, "classify: parse verification response")
	}

	companyType := model.CompanyType(raw.CompanyType)
	if !companyType.Valid() {
		companyType = model.CompanyUnknown
	}
	confidence := verification.Confidence
	if confidence == "" {
		confidence = "medium"
	}
	recommendation := verification.Recommendation
	if recommendation == "" {
		recommendation = "flag_for_review"
	}

	notes := raw.Notes
	if verification.VerificationNotes != "" {
		notes = strings.TrimSpace(notes + "\n\nVerification: " + verification.VerificationNotes)
	}

	result := &Classification{
		CompanyName:    raw.CompanyName,
		CompanyType:    companyType,
		Country:        raw.Country,
		Region:         raw.Region,
		SECRegulated:   raw.SECRegulated,
		SECCIK:         raw.SECCIK,
		Confidence:     confidence,
		Notes:          notes,
		IssuesFound:    verification.IssuesFound,
		Recommendation: recommendation,
	}

	zap.L().Info("classification complete",
		zap.String("company", result.CompanyName),
		zap.String("confidence", result.Confidence))
	return result, nil
}

// SearchNews looks for public reporting on a classified victim's breach.
// The victim must already carry a company name.
func (c *Classifier) SearchNews(ctx context.Context, victim model.Victim) (*NewsResult, error) {
	if victim.CompanyName == "" {
		return nil, eris.New("classify: victim must be classified before searching for news")
	}

	zap.L().Info("searching news", zap.String("company", victim.CompanyName))

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 3072,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf(newsPrompt,
				victim.CompanyName, victim.PostDate.Format("2006-01-02"), victim.GroupName),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: news search call")
	}
	resp.Usage.LogCost(c.model, "news")

	var result NewsResult
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &result); err != nil {
		return nil, eris.Wrap(err, "classify: parse news response")
	}
	return &result, nil
}

// BatchItem pairs one victim's classification with any per-victim error.
type BatchItem struct {
	VictimID       string
	Classification *Classification
	Err            error
}

// ClassifyBatch classifies victims concurrently with bounded parallelism.
// Results preserve input order and one failure never aborts the others.
func (c *Classifier) ClassifyBatch(ctx context.Context, victims []model.Victim, concurrency int) []BatchItem {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchItem, len(victims))
	g := errgroup.Group{}
	g.SetLimit(concurrency)

	for i, v := range victims {
		g.Go(func() error {
			classification, err := c.ClassifyVictim(ctx, v)
			results[i] = BatchItem{VictimID: v.ID, Classification: classification, Err: err}
			if err != nil {
				zap.L().Warn("batch classification failed",
					zap.String("victim_id", v.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// extractJSON strips a markdown code fence if the model wrapped its JSON.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}
