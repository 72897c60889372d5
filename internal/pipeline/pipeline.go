// Package pipeline wires the daily run: fetch, dedup, score, render and deliver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/ai"
	"github.com/job-digest/job-digest/internal/delivery"
	"github.com/job-digest/job-digest/internal/digest"
	"github.com/job-digest/job-digest/internal/filtering"
	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/logger"
)

type Mode string

const (
	// ModeFull fetches, scores and emails the digest.
	ModeFull Mode = "full"
	// ModeDryRun fetches and scores but writes the digest to a file.
	ModeDryRun Mode = "dry-run"
	// ModePreview renders the built-in samples to a file.
	ModePreview Mode = "preview"
)

type fetcher interface {
	Fetch(ctx context.Context) []jobs.Job
}

type deliverer interface {
	Deliver(ctx context.Context, msg delivery.Message) delivery.Result
}

type Config struct {
	Fetcher    fetcher
	Seen       filtering.SeenConfig
	Exclude    []string
	Scorer     ai.Scorer
	Render     digest.Options
	Deliverer  deliverer
	OutputFile string
	Samples    func() ([]jobs.Job, error)
	Now        func() time.Time
}

type Runner struct {
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Mode       Mode
	Total      int
	Strong     int
	Top        *jobs.Job
	Jobs       []jobs.Job
	Delivery   delivery.Result
	OutputFile string
}

func NewRunner(cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Seen.Now == nil {
		cfg.Seen.Now = cfg.Now
	}
	if cfg.Scorer == nil {
		cfg.Scorer = ai.NewUnranked()
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = delivery.DefaultOutputFile
	}
	if cfg.Deliverer == nil {
		cfg.Deliverer = delivery.NewDeliverer(nil, cfg.OutputFile, log)
	}
	return &Runner{cfg: cfg, logger: log, newID: uuid.NewString}
}

// Run executes one pass in the given mode. Stage failures are logged and
// degrade the run; only rendering or writing the preview file can fail it.
func (r *Runner) Run(ctx context.Context, mode Mode) (Summary, error) {
	summary := Summary{RunID: r.newID(), Mode: mode}
	log := logger.WithRunFields(r.logger, summary.RunID, string(mode))
	now := r.cfg.Now()

	log.Info("run started")

	var (
		list []jobs.Job
		err  error
	)
	switch mode {
	case ModePreview:
		list, err = r.samples()
		if err != nil {
			return summary, err
		}
		log.Info("using sample jobs", zap.Int("jobs", len(list)))
	case ModeFull, ModeDryRun:
		list = r.collect(ctx, log)
		if len(list) == 0 {
			log.Info("no new jobs, producing empty digest")
		} else {
			log.Info("scoring jobs", zap.Int("jobs", len(list)))
			list = r.cfg.Scorer.Score(ctx, list)
		}
	default:
		return summary, fmt.Errorf("unknown mode %q", mode)
	}

	summary.Jobs = list
	summary.Total = len(list)
	summary.Strong = jobs.StrongMatches(list)
	if len(list) > 0 {
		top := list[0]
		summary.Top = &top
	}

	opts := r.cfg.Render
	opts.Now = now
	html, err := digest.Render(list, opts)
	if err != nil {
		return summary, err
	}

	if mode == ModeFull {
		summary.Delivery = r.cfg.Deliverer.Deliver(ctx, delivery.Message{
			Subject: digest.Subject(list, now),
			HTML:    html,
			Count:   len(list),
		})
		summary.OutputFile = summary.Delivery.FallbackPath
		return summary, nil
	}

	if err := delivery.WriteFile(r.cfg.OutputFile, html); err != nil {
		return summary, err
	}
	summary.OutputFile = r.cfg.OutputFile
	log.Info("digest written", zap.String("path", r.cfg.OutputFile))
	return summary, nil
}

// collect fetches raw listings and keeps the new ones.
func (r *Runner) collect(ctx context.Context, log *zap.Logger) []jobs.Job {
	var raw []jobs.Job
	if r.cfg.Fetcher != nil {
		raw = r.cfg.Fetcher.Fetch(ctx)
	}
	log.Info("fetched jobs", zap.Int("raw", len(raw)))

	filtered, err := filtering.Dedup(ctx, raw, r.cfg.Exclude, r.cfg.Seen, log)
	if err == nil {
		return filtered
	}

	log.Error("dedup failed, continuing without seen store", zap.Error(err))
	filtered, err = filtering.DedupWithoutStore(ctx, raw, r.cfg.Exclude, err.Error(), log)
	if err != nil {
		log.Error("filtering failed, continuing with raw jobs", zap.Error(err))
		return raw
	}
	return filtered
}

func (r *Runner) samples() ([]jobs.Job, error) {
	if r.cfg.Samples == nil {
		return nil, errors.New("no sample source configured")
	}
	list, err := r.cfg.Samples()
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	return list, nil
}
