package filtering

import (
	"context"
	"strings"

	"github.com/job-digest/job-digest/internal/jobs"
	"go.uber.org/zap"
)

const ExcludedCompaniesName = "excluded_companies"

type excludedCompaniesFilter struct {
	companies []string
	disabled  bool
	reason    string
	logger    *zap.Logger
}

// NewExcludedCompanies drops jobs whose company contains any of the given
// names, ignoring case.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludedCompaniesFilter{
		companies: companies,
		logger:    logger,
	}
}

func (f *excludedCompaniesFilter) Name() string { return ExcludedCompaniesName }

func (f *excludedCompaniesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludedCompaniesFilter) IsEnabled() bool { return !f.disabled }

func (f *excludedCompaniesFilter) Validate() error { return nil }

func (f *excludedCompaniesFilter) Apply(_ context.Context, list *jobs.List) (*jobs.List, Step, error) {
	initial := list.Len()
	if len(f.companies) == 0 {
		return list, Step{Initial: initial, Dropped: 0, Left: list.Len()}, nil
	}

	dropped := list.Keep(func(job *jobs.Job) bool {
		return !jobs.MatchesAny(job.Company, f.companies)
	})

	if len(dropped) > 0 {
		names := make([]string, 0, len(dropped))
		for _, job := range dropped {
			names = append(names, job.Title+" @ "+job.Company)
		}
		f.logger.Info("excluding jobs by company",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_jobs", names),
			zap.Int("jobs_left", list.Len()),
		)
	}

	return list, Step{Initial: initial, Dropped: len(dropped), Left: list.Len()}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
