// Package digest renders scored job listings into a self-contained HTML email.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/job-digest/job-digest/internal/jobs"
)

const (
	cardDescriptionRunes = 300

	placeholderLocation = "Not specified"
	placeholderSalary   = "Salary not listed"

	colorStrong  = "#22c55e"
	colorMedium  = "#f59e0b"
	colorWeak    = "#ef4444"
	colorNeutral = "#e5e7eb"
)

//go:embed digest.html.tmpl
var digestTemplate string

var page = template.Must(template.New("digest").Parse(digestTemplate))

// Criteria describes what was searched for. It only feeds the footer.
type Criteria struct {
	Titles        []string
	Location      string
	IncludeRemote bool
	SalaryFloor   int
	Industries    []string
}

type Options struct {
	Now           time.Time
	PriorityFirms []string
	Criteria      Criteria
	// ScoredBy names the scorer in the footer, e.g. "Gemini (gemini-2.5-flash)".
	ScoredBy string
}

type view struct {
	Date     string
	Total    int
	Strong   int
	Priority int
	Empty    bool
	QuickRef []quickRow
	Cards    []card
	Rest     []row
	Footer   footer
}

type quickRow struct {
	Rank     int
	Anchor   string
	Title    string
	Company  string
	Priority bool
	Score    string
	Color    template.CSS
}

type card struct {
	ID              string
	Rank            int
	Title           string
	Company         string
	Via             string
	Location        string
	Salary          string
	SalaryListed    bool
	Priority        bool
	Score           string
	Color           template.CSS
	OneLiner        string
	Bars            []bar
	KeyRequirements []string
	WhyApply        string
	TalkingPoints   []string
	RedFlags        []string
	DeepInsight     string
	NetworkingAngle string
	CompIntel       string
	Description     string
	Links           []link
}

type bar struct {
	Label string
	Value string
	Width template.CSS
	Color template.CSS
}

type link struct {
	URL   string
	Label string
}

type row struct {
	ID           string
	Title        string
	Company      string
	Location     string
	Salary       string
	SalaryListed bool
	Score        string
	OneLiner     string
	URL          string
	LinkLabel    string
}

type footer struct {
	Titles      string
	Location    string
	SalaryFloor string
	Industries  string
	ScoredBy    string
}

// Render builds the digest document. It never calls external services and
// tolerates jobs with missing fields or no score block.
func Render(list []jobs.Job, opts Options) (string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	v := view{
		Date:     now.Format("Monday, January 02, 2006"),
		Total:    len(list),
		Strong:   jobs.StrongMatches(list),
		Priority: jobs.CountMatching(list, opts.PriorityFirms),
		Empty:    len(list) == 0,
		Footer:   buildFooter(opts),
	}

	for i := range list {
		job := &list[i]
		rank := i + 1
		id := anchorID(job, rank)
		priority := jobs.MatchesAny(job.Company, opts.PriorityFirms)

		anchor := "#row-" + id
		if job.IsStrongMatch() {
			anchor = "#job-" + id
			v.Cards = append(v.Cards, buildCard(job, id, rank, priority))
		} else {
			v.Rest = append(v.Rest, buildRow(job, id))
		}

		v.QuickRef = append(v.QuickRef, quickRow{
			Rank:     rank,
			Anchor:   anchor,
			Title:    job.Title,
			Company:  job.Company,
			Priority: priority,
			Score:    formatScore(job.Overall()),
			Color:    overallColor(job.Overall()),
		})
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Subject is the email subject line for the digest.
func Subject(list []jobs.Job, now time.Time) string {
	subject := fmt.Sprintf("Job Digest (%s) - %d new listings", now.Format("Jan 02"), len(list))
	if strong := jobs.StrongMatches(list); strong > 0 {
		subject += fmt.Sprintf(", %d strong matches", strong)
	}
	return subject
}

func buildCard(job *jobs.Job, id string, rank int, priority bool) card {
	c := card{
		ID:           id,
		Rank:         rank,
		Title:        job.Title,
		Company:      job.Company,
		Via:          job.Via,
		Location:     orDefault(job.Location, placeholderLocation),
		Salary:       orDefault(job.Salary, placeholderSalary),
		SalaryListed: strings.TrimSpace(job.Salary) != "",
		Priority:     priority,
		Score:        fmt.Sprintf("%.0f", job.Overall()),
		Color:        overallColor(job.Overall()),
		Description:  shorten(job.Description, cardDescriptionRunes),
		Links:        buildLinks(job),
	}

	s := job.Scores
	if s == nil {
		s = &jobs.Scores{}
	}
	c.OneLiner = s.OneLiner
	c.Bars = []bar{
		newBar("Title Fit", s.TitleFit),
		newBar("Industry", s.IndustryFit),
		newBar("Skills", s.SkillMatch),
		newBar("Company", s.CompanyPrestige),
	}
	c.KeyRequirements = s.KeyRequirements
	c.WhyApply = s.WhyApply
	c.TalkingPoints = s.TalkingPoints
	c.RedFlags = s.RedFlags
	c.DeepInsight = s.DeepInsight
	c.NetworkingAngle = s.NetworkingAngle
	c.CompIntel = s.CompIntel
	return c
}

func buildRow(job *jobs.Job, id string) row {
	r := row{
		ID:           id,
		Title:        job.Title,
		Company:      job.Company,
		Location:     orDefault(job.Location, placeholderLocation),
		Salary:       orDefault(job.Salary, placeholderSalary),
		SalaryListed: strings.TrimSpace(job.Salary) != "",
		Score:        formatScore(job.Overall()),
		URL:          job.URL,
		LinkLabel:    primaryLabel(job),
	}
	if job.Scores != nil {
		r.OneLiner = job.Scores.OneLiner
	}
	return r
}

// buildLinks puts the primary URL first, followed by the other apply options.
func buildLinks(job *jobs.Job) []link {
	var out []link
	seen := map[string]bool{}
	if job.URL != "" {
		out = append(out, link{URL: job.URL, Label: primaryLabel(job)})
		seen[job.URL] = true
	}
	for _, l := range job.ApplyLinks {
		if l.URL == "" || seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, link{URL: l.URL, Label: orDefault(l.Source, "Apply")})
	}
	return out
}

func primaryLabel(job *jobs.Job) string {
	if job.URLIsSearch {
		return "Search"
	}
	return "Apply"
}

func buildFooter(opts Options) footer {
	c := opts.Criteria
	f := footer{
		Titles:     strings.Join(c.Titles, ", "),
		Location:   c.Location,
		Industries: strings.Join(c.Industries, ", "),
		ScoredBy:   orDefault(opts.ScoredBy, "Unranked"),
	}
	if c.IncludeRemote {
		if f.Location != "" {
			f.Location += " + Remote"
		} else {
			f.Location = "Remote"
		}
	}
	if c.SalaryFloor > 0 {
		f.SalaryFloor = "$" + humanize.Comma(int64(c.SalaryFloor)) + "+"
	}
	return f
}

func anchorID(job *jobs.Job, rank int) string {
	if job.ID != "" {
		return job.ID
	}
	return fmt.Sprintf("%d", rank)
}

func newBar(label string, score float64) bar {
	pct := clampPercent(score * 10)
	return bar{
		Label: label,
		Value: formatScore(score),
		Width: template.CSS(fmt.Sprintf("%.0f%%", pct)),
		Color: barColor(pct),
	}
}

func clampPercent(pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	return math.Min(pct, 100)
}

func barColor(pct float64) template.CSS {
	switch {
	case pct >= 70:
		return colorStrong
	case pct >= 50:
		return colorMedium
	default:
		return colorWeak
	}
}

func overallColor(overall float64) template.CSS {
	switch {
	case overall >= jobs.StrongMatchThreshold:
		return colorStrong
	case overall >= 5:
		return colorMedium
	default:
		return colorNeutral
	}
}

func formatScore(score float64) string {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return "-"
	}
	return fmt.Sprintf("%.1f", score)
}

func shorten(s string, limit int) string {
	s = strings.TrimSpace(s)
	short := jobs.Truncate(s, limit)
	if short != s {
		return short + "..."
	}
	return short
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
