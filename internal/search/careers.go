package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/job-digest/job-digest/internal/jobs"
)

const SourceCareerPage = "career_page"

// DefaultCareerSites maps a firm to a site-restricted query against its career pages.
var DefaultCareerSites = map[string]string{
	"PwC":          "site:pwc.com/us careers (Partner OR Director OR Managing Director) (manufacturing OR technology OR digital)",
	"KPMG":         "site:kpmg.com/us careers (Partner OR Director OR Managing Director) (manufacturing OR technology OR digital)",
	"EY":           "site:ey.com/en_us careers (Partner OR Director OR Managing Director) (manufacturing OR technology OR digital)",
	"BCG":          "site:bcg.com careers (Partner OR Managing Director) (manufacturing OR technology OR digital)",
	"McKinsey":     "site:mckinsey.com careers (Partner OR Associate Partner) (manufacturing OR technology OR digital)",
	"Bain":         "site:bain.com careers (Partner OR Manager) (manufacturing OR technology OR industrial)",
	"Accenture":    "site:accenture.com/us-en careers (Managing Director OR Senior Managing Director) (manufacturing OR technology OR Industry X)",
	"Oliver Wyman": "site:oliverwyman.com careers (Partner OR Principal) (manufacturing OR technology OR digital)",
	"Slalom":       "site:slalom.com careers (Partner OR VP) (manufacturing OR technology OR digital)",
	"IBM":          "site:ibm.com/employment careers (Partner OR VP OR Managing Director) (manufacturing OR technology OR consulting)",
}

// DefaultCareerKeywords must appear in a result title for it to count as a posting.
var DefaultCareerKeywords = []string{
	"partner", "director", "vp", "vice president", "managing", "cio", "chief", "svp", "senior",
}

// CareerPages runs site-restricted web searches through SerpAPI.
type CareerPages struct {
	client   *Client
	apiKey   string
	sites    map[string]string
	keywords []string
	Endpoint string
}

func NewCareerPages(client *Client, apiKey string, sites map[string]string, keywords []string) *CareerPages {
	if len(sites) == 0 {
		sites = DefaultCareerSites
	}
	if len(keywords) == 0 {
		keywords = DefaultCareerKeywords
	}
	return &CareerPages{
		client:   client,
		apiKey:   apiKey,
		sites:    sites,
		keywords: keywords,
		Endpoint: SerpAPIURL,
	}
}

func (c *CareerPages) Name() string { return SourceCareerPage }

// Plan issues one query per firm, sorted by firm name.
func (c *CareerPages) Plan([]string, string, bool) []Query {
	firms := make([]string, 0, len(c.sites))
	for firm := range c.sites {
		firms = append(firms, firm)
	}
	sort.Strings(firms)

	plan := make([]Query, 0, len(firms))
	for _, firm := range firms {
		plan = append(plan, Query{Text: c.sites[firm], Label: firm})
	}
	return plan
}

func (c *CareerPages) Search(ctx context.Context, q Query) ([]jobs.Job, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", q.Text)
	params.Set("api_key", c.apiKey)
	params.Set("num", "10")
	params.Set("tbs", "qdr:w")

	items, err := c.client.GetItems(ctx, c.Endpoint, params, nil, "organic_results")
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	}
	if err := decodeItems(items, &raw); err != nil {
		return nil, fmt.Errorf("decode organic_results: %w", err)
	}

	firm := q.Label
	result := make([]jobs.Job, 0, len(raw))
	for _, r := range raw {
		if !jobs.MatchesAny(r.Title, c.keywords) {
			continue
		}

		job := jobs.Job{
			Title:       r.Title,
			Company:     firm,
			Location:    "See posting",
			Description: description(r.Snippet),
			Posted:      "This week",
			URL:         r.Link,
			Via:         firm + " Career Site",
			Source:      SourceCareerPage,
		}
		if r.Link != "" {
			job.ApplyLinks = []jobs.Link{{URL: r.Link, Source: firm + " Careers"}}
		}
		result = append(result, job)
	}
	return result, nil
}
