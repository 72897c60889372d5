package filtering

import (
	"context"
	"strings"

	"github.com/job-digest/job-digest/internal/jobs"
)

const PrimaryURLName = "primary_url"

type primaryURLFilter struct{}

// NewPrimaryURL fills in a search link for jobs that arrived without a URL.
// It never drops jobs.
func NewPrimaryURL() Filter {
	return &primaryURLFilter{}
}

func (f *primaryURLFilter) Name() string { return PrimaryURLName }

func (f *primaryURLFilter) Disable(string) {}

func (f *primaryURLFilter) IsEnabled() bool { return true }

func (f *primaryURLFilter) Validate() error { return nil }

func (f *primaryURLFilter) Apply(_ context.Context, list *jobs.List) (*jobs.List, Step, error) {
	for _, job := range list.Items {
		if strings.TrimSpace(job.URL) != "" {
			continue
		}
		job.URL = jobs.SearchURL(job.Title, job.Company)
		job.URLIsSearch = true
	}
	return list, Step{Initial: list.Len(), Dropped: 0, Left: list.Len()}, nil
}
