package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	// StrongMatchThreshold is the overall score at which a job is rendered as a detail card.
	StrongMatchThreshold = 7.0

	MaxDescriptionRunes = 2000
	MaxHighlights       = 5

	searchURL = "https://www.google.com/search"
)

// Link is an apply or search link with the site it points to.
type Link struct {
	URL    string `json:"url" yaml:"url"`
	Source string `json:"source" yaml:"source"`
}

// Scores is the assessment attached to a job by the scorer.
type Scores struct {
	TitleFit        float64  `json:"title_fit" yaml:"title_fit"`
	IndustryFit     float64  `json:"industry_fit" yaml:"industry_fit"`
	SkillMatch      float64  `json:"skill_match" yaml:"skill_match"`
	CompanyPrestige float64  `json:"company_prestige" yaml:"company_prestige"`
	Overall         float64  `json:"overall" yaml:"overall"`
	OneLiner        string   `json:"one_liner" yaml:"one_liner"`
	KeyRequirements []string `json:"key_requirements" yaml:"key_requirements"`
	WhyApply        string   `json:"why_apply" yaml:"why_apply"`
	TalkingPoints   []string `json:"talking_points" yaml:"talking_points"`
	RedFlags        []string `json:"red_flags" yaml:"red_flags"`
	DeepInsight     string   `json:"deep_insight,omitempty" yaml:"deep_insight"`
	NetworkingAngle string   `json:"networking_angle,omitempty" yaml:"networking_angle"`
	CompIntel       string   `json:"comp_intel,omitempty" yaml:"comp_intel"`
}

// Job is a normalized listing from any source. Title, company and location
// are kept as the source sent them since they form the fingerprint.
type Job struct {
	ID               string   `json:"id,omitempty" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	Company          string   `json:"company" yaml:"company"`
	Location         string   `json:"location" yaml:"location"`
	Description      string   `json:"description,omitempty" yaml:"description"`
	Salary           string   `json:"salary,omitempty" yaml:"salary"`
	Posted           string   `json:"posted,omitempty" yaml:"posted"`
	Schedule         string   `json:"schedule,omitempty" yaml:"schedule"`
	Source           string   `json:"source,omitempty" yaml:"source"`
	Via              string   `json:"via,omitempty" yaml:"via"`
	URL              string   `json:"url,omitempty" yaml:"url"`
	URLIsSearch      bool     `json:"url_is_search" yaml:"url_is_search"`
	ApplyLinks       []Link   `json:"apply_links,omitempty" yaml:"apply_links"`
	Qualifications   []string `json:"qualifications,omitempty" yaml:"qualifications"`
	Responsibilities []string `json:"responsibilities,omitempty" yaml:"responsibilities"`
	Benefits         []string `json:"benefits,omitempty" yaml:"benefits"`
	Scores           *Scores  `json:"scores,omitempty" yaml:"scores"`
}

// Fingerprint returns the first 16 hex characters of sha256 over the
// lower-cased "title-company-location" string.
func Fingerprint(title, company, location string) string {
	raw := strings.ToLower(fmt.Sprintf("%s-%s-%s", title, company, location))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func (j *Job) Fingerprint() string {
	return Fingerprint(j.Title, j.Company, j.Location)
}

// Overall returns the overall score, or 0 when the job was not scored.
func (j *Job) Overall() float64 {
	if j == nil || j.Scores == nil {
		return 0
	}
	return j.Scores.Overall
}

func (j *Job) IsStrongMatch() bool {
	return j.Overall() >= StrongMatchThreshold
}

// SearchURL builds a web search link over title and company.
func SearchURL(title, company string) string {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(title+" "+company))
	return searchURL + "?" + q.Encode()
}

// MatchesAny reports whether name contains any of the patterns, ignoring case.
// Empty patterns never match.
func MatchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Head returns at most n non-empty trimmed items.
func Head(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, item := range items {
		if len(out) == n {
			break
		}
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// List is an ordered collection of jobs flowing through the pipeline.
type List struct {
	Items []*Job
}

// NewList copies items so filters can mutate them without touching the caller's slice.
func NewList(items []Job) *List {
	l := &List{Items: make([]*Job, 0, len(items))}
	for i := range items {
		job := items[i]
		l.Items = append(l.Items, &job)
	}
	return l
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Jobs returns a copy of the list as values.
func (l *List) Jobs() []Job {
	if l == nil {
		return nil
	}
	out := make([]Job, 0, len(l.Items))
	for _, j := range l.Items {
		out = append(out, *j)
	}
	return out
}

// Keep retains jobs for which keep returns true, preserving order, and
// returns the dropped ones.
func (l *List) Keep(keep func(*Job) bool) []*Job {
	var dropped []*Job
	kept := l.Items[:0]
	for _, job := range l.Items {
		if keep(job) {
			kept = append(kept, job)
			continue
		}
		dropped = append(dropped, job)
	}
	l.Items = kept
	return dropped
}

func StrongMatches(list []Job) int {
	count := 0
	for i := range list {
		if list[i].IsStrongMatch() {
			count++
		}
	}
	return count
}

// CountMatching counts jobs whose company matches any of the patterns.
func CountMatching(list []Job, patterns []string) int {
	count := 0
	for i := range list {
		if MatchesAny(list[i].Company, patterns) {
			count++
		}
	}
	return count
}

// ReportByCompany groups job titles by company for debug output.
func ReportByCompany(list []Job) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range list {
		entry := map[string]string{
			"title":    job.Title,
			"location": job.Location,
			"url":      job.URL,
			"salary":   job.Salary,
			"source":   job.Source,
		}
		if job.Scores != nil {
			entry["overall"] = fmt.Sprintf("%.1f", job.Scores.Overall)
		}
		report[job.Company] = append(report[job.Company], entry)
	}
	return report
}

// DumpToTmpFile writes the list as indented JSON into a new temp file.
func DumpToTmpFile(list []Job) (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return "", err
	}
	return file.Name(), nil
}
