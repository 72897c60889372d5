package cmd

import (
	"sort"

	"github.com/spf13/viper"

	"github.com/job-digest/job-digest/internal/ai/gemini"
	"github.com/job-digest/job-digest/internal/delivery"
	"github.com/job-digest/job-digest/internal/search"
	"github.com/job-digest/job-digest/internal/seen"
)

var defaultTitles = []string{
	"Partner", "Senior Partner", "Vice President", "VP", "SVP", "Senior Vice President",
	"CIO", "Chief Information Officer", "Chief Digital Officer", "CDO", "Managing Director", "MD",
}

var defaultIndustries = []string{
	"manufacturing", "industrial", "technology", "hi-tech", "high-tech",
	"consulting", "management consulting", "strategy consulting", "digital transformation",
}

var defaultPriorityCompanies = []string{
	"BCG", "Boston Consulting Group", "McKinsey", "McKinsey & Company", "Bain", "Bain & Company",
	"Accenture", "Oliver Wyman", "Slalom", "IBM", "EY", "Ernst & Young", "PwC",
	"PricewaterhouseCoopers", "KPMG",
}

const defaultProfile = `SENIOR CONSULTING PARTNER | DIGITAL & TECH STRATEGY & TRANSFORMATION

Consulting and transformation executive with 20+ years leading consulting-led growth,
AI-enabled modernization and Industry 4.0 transformation for global manufacturing and
industrial clients. Consistently exceeds sales and growth targets, leads strategic deals,
account planning and GTM strategy, manages CxO and board relationships, and has enabled
$5B+ enterprise value creation through transformation programs.

Key strengths:
- Commercial leadership: $100M+ portfolios, $140M+ existing logo pipeline, $60M+ new logo pipeline
- Digital and AI-led transformation: digital strategy offering, AI-first capability model, Insights-as-a-Service
- Enterprise value creation: $5B+ business impact, $2B+ valuation gain, $400M+ sector growth
- People and culture: 1500+ global cross-functional teams, leader mentorship
- Board and CXO engagement: trusted C-suite and board advisor, keynote speaker`

func setDefaults() {
	viper.SetDefault("search.location", "Chicago, IL")
	viper.SetDefault("search.include-remote", true)
	viper.SetDefault("search.title-groups", search.DefaultTitleGroups)
	viper.SetDefault("search.industry-terms", search.DefaultIndustryTerms)
	viper.SetDefault("search.career-pages", false)
	viper.SetDefault("search.career-keywords", search.DefaultCareerKeywords)
	viper.SetDefault("search.career-sites", defaultCareerSites())
	viper.SetDefault("search.timeout", search.DefaultTimeout)
	viper.SetDefault("search.max-log-length", 100)
	viper.SetDefault("search.serpapi.url", search.SerpAPIURL)
	viper.SetDefault("search.jsearch.url", search.JSearchURL)
	viper.SetDefault("search.jsearch.host", search.JSearchHost)

	viper.SetDefault("companies.priority", defaultPriorityCompanies)
	viper.SetDefault("companies.exclude", []string{"Deloitte"})

	viper.SetDefault("criteria.titles", defaultTitles)
	viper.SetDefault("criteria.industries", defaultIndustries)
	viper.SetDefault("criteria.salary-floor", 250000)

	viper.SetDefault("profile", defaultProfile)

	viper.SetDefault("seen.backend", "file")
	viper.SetDefault("seen.file", "data/seen_jobs.json")
	viper.SetDefault("seen.redis-key", seen.DefaultRedisKey)
	viper.SetDefault("seen.retention-days", seen.DefaultRetentionDays)

	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.batch-size", gemini.DefaultBatchSize(gemini.DepthRich))
	viper.SetDefault("ai.depth", string(gemini.DepthRich))
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.max-log-length", 200)

	viper.SetDefault("email.to", "")
	viper.SetDefault("email.from", "")

	viper.SetDefault("output-file", delivery.DefaultOutputFile)

	viper.SetDefault("schedule.cron", "0 7 * * *")
	viper.SetDefault("schedule.timezone", "America/Chicago")
}

// defaultCareerSites turns the built-in firm map into the list form used in
// config files. Viper lower-cases map keys, so firm names live in values.
func defaultCareerSites() []map[string]string {
	firms := make([]string, 0, len(search.DefaultCareerSites))
	for firm := range search.DefaultCareerSites {
		firms = append(firms, firm)
	}
	sort.Strings(firms)

	sites := make([]map[string]string, 0, len(firms))
	for _, firm := range firms {
		sites = append(sites, map[string]string{"firm": firm, "query": search.DefaultCareerSites[firm]})
	}
	return sites
}
