package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/job-digest/job-digest/internal/jobs"
)

const (
	SerpAPIURL    = "https://serpapi.com/search"
	SourceSerpAPI = "serpapi"

	serpJobsPerPage = "20"
	serpRemoteType  = "1"
)

type SerpAPI struct {
	client   *Client
	apiKey   string
	Endpoint string
}

// NewSerpAPI searches Google Jobs through SerpAPI.
func NewSerpAPI(client *Client, apiKey string) *SerpAPI {
	return &SerpAPI{client: client, apiKey: apiKey, Endpoint: SerpAPIURL}
}

func (s *SerpAPI) Name() string { return SourceSerpAPI }

func (s *SerpAPI) Search(ctx context.Context, q Query) ([]jobs.Job, error) {
	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", q.Text)
	params.Set("api_key", s.apiKey)
	params.Set("num", serpJobsPerPage)
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.Remote {
		params.Set("ltype", serpRemoteType)
	}

	items, err := s.client.GetItems(ctx, s.Endpoint, params, nil, "jobs_results")
	if err != nil {
		return nil, err
	}

	var raw []serpJob
	if err := decodeItems(items, &raw); err != nil {
		return nil, fmt.Errorf("decode jobs_results: %w", err)
	}

	result := make([]jobs.Job, 0, len(raw))
	for _, r := range raw {
		result = append(result, r.normalize())
	}
	return result, nil
}

type serpLink struct {
	Link string `json:"link"`
	Text string `json:"text"`
}

type serpApplyOption struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type serpHighlight struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type serpJob struct {
	JobID              string `json:"job_id"`
	Title              string `json:"title"`
	CompanyName        string `json:"company_name"`
	Location           string `json:"location"`
	Via                string `json:"via"`
	Description        string `json:"description"`
	ShareLink          string `json:"share_link"`
	DetectedExtensions struct {
		PostedAt     string `json:"posted_at"`
		ScheduleType string `json:"schedule_type"`
		Salary       string `json:"salary"`
	} `json:"detected_extensions"`
	RelatedLinks  []serpLink        `json:"related_links"`
	ApplyOptions  []serpApplyOption `json:"apply_options"`
	JobHighlights []serpHighlight   `json:"job_highlights"`
}

func (r serpJob) normalize() jobs.Job {
	job := jobs.Job{
		Title:       r.Title,
		Company:     r.CompanyName,
		Location:    r.Location,
		Description: description(r.Description),
		Salary:      r.DetectedExtensions.Salary,
		Posted:      r.DetectedExtensions.PostedAt,
		Schedule:    r.DetectedExtensions.ScheduleType,
		Via:         strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(r.Via), "via ")),
		Source:      SourceSerpAPI,
	}

	for _, opt := range r.ApplyOptions {
		if opt.Link == "" {
			continue
		}
		job.ApplyLinks = append(job.ApplyLinks, jobs.Link{URL: opt.Link, Source: opt.Title})
	}

	switch {
	case len(job.ApplyLinks) > 0:
		job.URL = job.ApplyLinks[0].URL
	case r.ShareLink != "":
		job.URL = r.ShareLink
	case len(r.RelatedLinks) > 0:
		job.URL = r.RelatedLinks[0].Link
	}

	for _, h := range r.JobHighlights {
		switch strings.ToLower(strings.TrimSpace(h.Title)) {
		case "qualifications":
			job.Qualifications = highlights(h.Items)
		case "responsibilities":
			job.Responsibilities = highlights(h.Items)
		case "benefits":
			job.Benefits = highlights(h.Items)
		}
	}

	return job
}
