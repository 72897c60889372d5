package search

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/job-digest/job-digest/internal/jobs"
)

const (
	JSearchURL    = "https://jsearch.p.rapidapi.com/search"
	JSearchHost   = "jsearch.p.rapidapi.com"
	SourceJSearch = "jsearch"
)

type JSearch struct {
	client   *Client
	apiKey   string
	Endpoint string
	Host     string
	now      func() time.Time
}

// NewJSearch searches the JSearch API on RapidAPI.
func NewJSearch(client *Client, apiKey string) *JSearch {
	return &JSearch{
		client:   client,
		apiKey:   apiKey,
		Endpoint: JSearchURL,
		Host:     JSearchHost,
		now:      time.Now,
	}
}

func (s *JSearch) Name() string { return SourceJSearch }

func (s *JSearch) Search(ctx context.Context, q Query) ([]jobs.Job, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("num_pages", "2")
	params.Set("date_posted", "week")

	if q.Remote {
		params.Set("query", q.Text)
		params.Set("remote_jobs_only", "true")
	} else {
		text := q.Text
		if q.Location != "" {
			text = fmt.Sprintf("%s in %s", q.Text, q.Location)
		}
		params.Set("query", text)
		params.Set("remote_jobs_only", "false")
	}

	headers := http.Header{}
	headers.Set("X-RapidAPI-Key", s.apiKey)
	headers.Set("X-RapidAPI-Host", s.Host)

	items, err := s.client.GetItems(ctx, s.Endpoint, params, headers, "data")
	if err != nil {
		return nil, err
	}

	var raw []jsearchJob
	if err := decodeItems(items, &raw); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}

	now := s.now()
	result := make([]jobs.Job, 0, len(raw))
	for _, r := range raw {
		result = append(result, r.normalize(now))
	}
	return result, nil
}

type jsearchJob struct {
	JobID          string  `json:"job_id"`
	Title          string  `json:"job_title"`
	EmployerName   string  `json:"employer_name"`
	City           string  `json:"job_city"`
	Country        string  `json:"job_country"`
	Description    string  `json:"job_description"`
	MinSalary      float64 `json:"job_min_salary"`
	MaxSalary      float64 `json:"job_max_salary"`
	SalaryPeriod   string  `json:"job_salary_period"`
	PostedAt       string  `json:"job_posted_at_datetime_utc"`
	EmploymentType string  `json:"job_employment_type"`
	ApplyLink      string  `json:"job_apply_link"`
	Publisher      string  `json:"job_publisher"`
	ApplyOptions   []struct {
		Publisher string `json:"publisher"`
		ApplyLink string `json:"apply_link"`
	} `json:"apply_options"`
	Highlights struct {
		Qualifications   []string `json:"Qualifications"`
		Responsibilities []string `json:"Responsibilities"`
		Benefits         []string `json:"Benefits"`
	} `json:"job_highlights"`
}

func (r jsearchJob) normalize(now time.Time) jobs.Job {
	location := r.City
	if location == "" {
		location = r.Country
	}

	job := jobs.Job{
		Title:            r.Title,
		Company:          r.EmployerName,
		Location:         location,
		Description:      description(r.Description),
		Salary:           formatSalary(r.MinSalary, r.MaxSalary, r.SalaryPeriod),
		Posted:           postedAgo(r.PostedAt, now),
		Schedule:         r.EmploymentType,
		URL:              r.ApplyLink,
		Via:              r.Publisher,
		Source:           SourceJSearch,
		Qualifications:   highlights(r.Highlights.Qualifications),
		Responsibilities: highlights(r.Highlights.Responsibilities),
		Benefits:         highlights(r.Highlights.Benefits),
	}

	for _, opt := range r.ApplyOptions {
		if opt.ApplyLink == "" {
			continue
		}
		job.ApplyLinks = append(job.ApplyLinks, jobs.Link{URL: opt.ApplyLink, Source: opt.Publisher})
	}

	return job
}

// formatSalary renders "$250,000 - $400,000 / year" style ranges.
func formatSalary(lo, hi float64, period string) string {
	if lo <= 0 && hi <= 0 {
		return ""
	}

	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "year"
	}

	money := func(v float64) string {
		return "$" + humanize.Comma(int64(math.Round(v)))
	}

	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("%s - %s / %s", money(lo), money(hi), period)
	case lo > 0:
		return fmt.Sprintf("%s+ / %s", money(lo), period)
	default:
		return fmt.Sprintf("up to %s / %s", money(hi), period)
	}
}

// postedAgo turns an RFC3339 timestamp into a relative phrase, keeping the
// raw value when it does not parse.
func postedAgo(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	posted, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return humanize.RelTime(posted, now, "ago", "from now")
}
