package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/seen"
	"go.uber.org/zap"
)

const SeenName = "seen"

// SeenConfig configures the seen-store dedup step.
type SeenConfig struct {
	Store         seen.Store
	RetentionDays int
	Now           func() time.Time
}

type seenFilter struct {
	cfg      SeenConfig
	disabled bool
	reason   string
	pruned   int
	logger   *zap.Logger
}

// NewSeen drops jobs already reported in a previous run and records the new ones.
func NewSeen(cfg SeenConfig, logger *zap.Logger) Filter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = seen.DefaultRetentionDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &seenFilter{cfg: cfg, logger: logger}
}

func (f *seenFilter) Name() string { return SeenName }

func (f *seenFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *seenFilter) IsEnabled() bool { return !f.disabled }

func (f *seenFilter) Validate() error {
	if f.cfg.Store == nil {
		return errors.New("seen store is required")
	}
	return nil
}

func (f *seenFilter) Apply(ctx context.Context, list *jobs.List) (*jobs.List, Step, error) {
	initial := list.Len()

	entries, err := f.cfg.Store.Load(ctx)
	if err != nil {
		return list, Step{}, fmt.Errorf("loading seen entries: %w", err)
	}

	now := f.cfg.Now()
	today := seen.Today(now)

	dropped := list.Keep(func(job *jobs.Job) bool {
		fp := job.Fingerprint()
		if !entries.Mark(fp, today) {
			return false
		}
		job.ID = fp
		return true
	})

	if len(dropped) > 0 {
		f.logger.Debug("dropping already reported jobs", zap.Int("count", len(dropped)))
	}

	if err := f.cfg.Store.Save(ctx, entries); err != nil {
		return list, Step{}, fmt.Errorf("saving seen entries: %w", err)
	}

	removed := entries.Prune(seen.Cutoff(now, f.cfg.RetentionDays))
	f.pruned = len(removed)

	if err := f.cfg.Store.Save(ctx, entries); err != nil {
		return list, Step{}, fmt.Errorf("saving pruned seen entries: %w", err)
	}

	f.logger.Info("seen store updated",
		zap.String("store", f.cfg.Store.Name()),
		zap.Int("entries", len(entries)),
		zap.Int("pruned", f.pruned),
	)

	return list, Step{Initial: initial, Dropped: len(dropped), Left: list.Len()}, nil
}

func (f *seenFilter) Status() Status {
	details := map[string]string{
		"retention_days": strconv.Itoa(f.cfg.RetentionDays),
		"pruned":         strconv.Itoa(f.pruned),
	}
	if f.cfg.Store != nil {
		details["store"] = f.cfg.Store.Name()
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
