package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/utils"
	"go.uber.org/zap"
)

// ErrNoBackends is reported when no search backend has credentials.
var ErrNoBackends = errors.New("no search backends configured")

var DefaultTitleGroups = []string{
	`"Partner" OR "Senior Partner" OR "Managing Director"`,
	`"Vice President" OR "VP" OR "SVP"`,
	`"CIO" OR "Chief Digital Officer" OR "Chief Information Officer"`,
}

const DefaultIndustryTerms = "consulting OR manufacturing OR technology OR digital transformation"

// Query is a single request issued to a backend.
type Query struct {
	Text     string
	Location string
	Remote   bool
	// Label tags the query for site searches (the firm name).
	Label string
}

// Backend searches one external API and normalizes its results.
type Backend interface {
	Name() string
	Search(ctx context.Context, q Query) ([]jobs.Job, error)
}

// Planner is implemented by backends that issue their own query set instead
// of the title-group queries.
type Planner interface {
	Plan(queries []string, location string, includeRemote bool) []Query
}

// BuildQueries combines each title group with the industry clause.
func BuildQueries(groups []string, industry string) []string {
	queries := make([]string, 0, len(groups))
	for _, group := range groups {
		if industry == "" {
			queries = append(queries, fmt.Sprintf("(%s)", group))
			continue
		}
		queries = append(queries, fmt.Sprintf("(%s) AND (%s)", group, industry))
	}
	return queries
}

// Plan returns the on-site query for each text followed by its remote variant when enabled.
func Plan(queries []string, location string, includeRemote bool) []Query {
	plan := make([]Query, 0, len(queries)*2)
	for _, text := range queries {
		plan = append(plan, Query{Text: text, Location: location})
		if includeRemote {
			plan = append(plan, Query{Text: text, Location: location, Remote: true})
		}
	}
	return plan
}

type FetcherConfig struct {
	TitleGroups   []string
	IndustryTerms string
	Location      string
	IncludeRemote bool
	MaxLogLength  int
}

// Fetcher calls every backend sequentially and concatenates the results.
type Fetcher struct {
	cfg      FetcherConfig
	backends []Backend
	logger   *zap.Logger
}

func NewFetcher(cfg FetcherConfig, logger *zap.Logger, backends ...Backend) *Fetcher {
	if len(cfg.TitleGroups) == 0 {
		cfg.TitleGroups = DefaultTitleGroups
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, backends: backends, logger: logger}
}

func (f *Fetcher) Backends() []string {
	names := make([]string, 0, len(f.backends))
	for _, b := range f.backends {
		names = append(names, b.Name())
	}
	return names
}

// Fetch never fails: every call error is logged and contributes no jobs.
func (f *Fetcher) Fetch(ctx context.Context) []jobs.Job {
	if len(f.backends) == 0 {
		f.logger.Warn("skipping search", zap.Error(ErrNoBackends),
			zap.String("hint", "set SERPAPI_KEY or RAPIDAPI_KEY"),
		)
		return []jobs.Job{}
	}

	queries := BuildQueries(f.cfg.TitleGroups, f.cfg.IndustryTerms)
	all := make([]jobs.Job, 0)

	for _, backend := range f.backends {
		var plan []Query
		if planner, ok := backend.(Planner); ok {
			plan = planner.Plan(queries, f.cfg.Location, f.cfg.IncludeRemote)
		} else {
			plan = Plan(queries, f.cfg.Location, f.cfg.IncludeRemote)
		}

		count := 0
		for _, q := range plan {
			if err := ctx.Err(); err != nil {
				f.logger.Warn("search interrupted", zap.String("backend", backend.Name()), zap.Error(err))
				return all
			}

			found, err := backend.Search(ctx, q)
			if err != nil {
				f.logger.Warn("search call failed",
					zap.String("backend", backend.Name()),
					zap.String("query", utils.TruncateForLog(q.Text, f.cfg.MaxLogLength)),
					zap.String("label", q.Label),
					zap.Bool("remote", q.Remote),
					zap.Error(err),
				)
				continue
			}

			f.logger.Debug("search call",
				zap.String("backend", backend.Name()),
				zap.String("query", utils.TruncateForLog(q.Text, f.cfg.MaxLogLength)),
				zap.Bool("remote", q.Remote),
				zap.Int("count", len(found)),
			)

			count += len(found)
			all = append(all, found...)
		}

		f.logger.Info("getting jobs", zap.String("backend", backend.Name()), zap.Int("count", count))
	}

	f.logger.Info("raw results", zap.Int("count", len(all)))
	return all
}
