package filtering

import (
	"context"

	"github.com/job-digest/job-digest/internal/jobs"
	"go.uber.org/zap"
)

func standardSteps(exclude []string, cfg SeenConfig, logger *zap.Logger) *Filtering {
	return New([]Filter{
		NewExcludedCompanies(exclude, logger),
		NewSeen(cfg, logger),
		NewPrimaryURL(),
	}, logger)
}

// Dedup runs the standard step sequence: company exclusion, seen-store
// dedup and primary URL assignment.
func Dedup(ctx context.Context, raw []jobs.Job, exclude []string, cfg SeenConfig, logger *zap.Logger) ([]jobs.Job, error) {
	filtered, err := standardSteps(exclude, cfg, logger).Run(ctx, jobs.NewList(raw))
	if err != nil {
		return nil, err
	}
	return filtered.Jobs(), nil
}

// DedupWithoutStore runs the standard sequence with the seen step disabled.
// It is used when the seen store cannot be read or written.
func DedupWithoutStore(ctx context.Context, raw []jobs.Job, exclude []string, reason string, logger *zap.Logger) ([]jobs.Job, error) {
	f := standardSteps(exclude, SeenConfig{}, logger)
	f.DisableByName(SeenName, reason)

	filtered, err := f.Run(ctx, jobs.NewList(raw))
	if err != nil {
		return nil, err
	}
	return filtered.Jobs(), nil
}
