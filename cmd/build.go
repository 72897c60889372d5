package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/ai"
	"github.com/job-digest/job-digest/internal/ai/gemini"
	"github.com/job-digest/job-digest/internal/delivery"
	"github.com/job-digest/job-digest/internal/digest"
	"github.com/job-digest/job-digest/internal/filtering"
	"github.com/job-digest/job-digest/internal/logger"
	"github.com/job-digest/job-digest/internal/pipeline"
	"github.com/job-digest/job-digest/internal/preview"
	"github.com/job-digest/job-digest/internal/search"
	"github.com/job-digest/job-digest/internal/secrets"
	"github.com/job-digest/job-digest/internal/seen"
)

// buildRunner assembles the pipeline for the given mode. The returned
// cleanup func releases the seen store connection.
func buildRunner(ctx context.Context, config *Config, mode pipeline.Mode, log *zap.Logger) (*pipeline.Runner, func(), error) {
	cleanup := func() {}

	render := digest.Options{
		PriorityFirms: config.Companies.Priority,
		Criteria: digest.Criteria{
			Titles:        config.Criteria.Titles,
			Location:      config.Search.Location,
			IncludeRemote: config.Search.IncludeRemote,
			SalaryFloor:   config.Criteria.SalaryFloor,
			Industries:    config.Criteria.Industries,
		},
		ScoredBy: "sample data",
	}

	if mode == pipeline.ModePreview {
		return pipeline.NewRunner(pipeline.Config{
			Render:     render,
			OutputFile: config.OutputFile,
			Samples:    preview.Samples,
		}, log), cleanup, nil
	}

	// An unreachable store degrades the run to exclusion-only dedup.
	store, closeStore, err := buildStore(ctx, config)
	if err != nil {
		log.Error("seen store unavailable", zap.String("backend", config.Seen.Backend), zap.Error(err))
		store = seen.Unavailable(config.Seen.Backend, err)
	} else {
		cleanup = closeStore
	}

	scorer, scoredBy := buildScorer(ctx, config, log)
	render.ScoredBy = scoredBy

	runner := pipeline.NewRunner(pipeline.Config{
		Fetcher: buildFetcher(config, log),
		Seen: filtering.SeenConfig{
			Store:         store,
			RetentionDays: config.Seen.RetentionDays,
		},
		Exclude:    config.Companies.Exclude,
		Scorer:     scorer,
		Render:     render,
		Deliverer:  buildDeliverer(config, log),
		OutputFile: config.OutputFile,
	}, log)

	return runner, cleanup, nil
}

func buildFetcher(config *Config, log *zap.Logger) *search.Fetcher {
	searchLogger := logger.Component(log, "search")
	client := search.NewClient(config.Search.Timeout, searchLogger)

	var backends []search.Backend

	serpKey, err := secrets.Load(secrets.Source{
		Name:  "serpapi key",
		Value: config.Search.SerpAPI.APIKey,
		File:  config.Search.SerpAPI.APIKeyFile,
		Env:   "SERPAPI_KEY",
	})
	if err == nil {
		serp := search.NewSerpAPI(client, serpKey)
		if config.Search.SerpAPI.URL != "" {
			serp.Endpoint = config.Search.SerpAPI.URL
		}
		backends = append(backends, serp)
	} else {
		searchLogger.Warn("skipping backend", zap.String("backend", search.SourceSerpAPI), zap.Error(err))
	}

	rapidKey, err := secrets.Load(secrets.Source{
		Name:  "rapidapi key",
		Value: config.Search.JSearch.APIKey,
		File:  config.Search.JSearch.APIKeyFile,
		Env:   "RAPIDAPI_KEY",
	})
	if err == nil {
		js := search.NewJSearch(client, rapidKey)
		if config.Search.JSearch.URL != "" {
			js.Endpoint = config.Search.JSearch.URL
		}
		if config.Search.JSearch.Host != "" {
			js.Host = config.Search.JSearch.Host
		}
		backends = append(backends, js)
	} else {
		searchLogger.Warn("skipping backend", zap.String("backend", search.SourceJSearch), zap.Error(err))
	}

	if config.Search.CareerPages {
		if serpKey == "" {
			searchLogger.Warn("career page scan needs a serpapi key, skipping")
		} else {
			careers := search.NewCareerPages(client, serpKey, careerSites(config.Search.CareerSites), config.Search.CareerKeywords)
			if config.Search.SerpAPI.URL != "" {
				careers.Endpoint = config.Search.SerpAPI.URL
			}
			backends = append(backends, careers)
		}
	}

	return search.NewFetcher(search.FetcherConfig{
		TitleGroups:   config.Search.TitleGroups,
		IndustryTerms: config.Search.IndustryTerms,
		Location:      config.Search.Location,
		IncludeRemote: config.Search.IncludeRemote,
		MaxLogLength:  config.Search.MaxLogLength,
	}, searchLogger, backends...)
}

func careerSites(list []CareerSite) map[string]string {
	if len(list) == 0 {
		return nil
	}
	sites := make(map[string]string, len(list))
	for _, site := range list {
		sites[site.Firm] = site.Query
	}
	return sites
}

func buildStore(ctx context.Context, config *Config) (seen.Store, func(), error) {
	switch config.Seen.Backend {
	case "redis":
		store, err := seen.NewRedisStore(ctx, config.Seen.RedisURL, config.Seen.RedisKey)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return seen.NewFileStore(config.Seen.File), func() {}, nil
	}
}

// buildScorer returns the configured scorer and a label for the digest footer.
// Without a credential every job is left unranked.
func buildScorer(ctx context.Context, config *Config, log *zap.Logger) (ai.Scorer, string) {
	if !config.AI.Enabled {
		log.Info("ai scoring disabled, jobs stay unranked")
		return ai.NewUnranked(), "nobody (scoring disabled)"
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		File:  config.AI.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		log.Warn("skipping ai scoring", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or ai.gemini.api-key-file"))
		return ai.NewUnranked(), "nobody (no API key)"
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model)
	if err != nil {
		log.Warn("skipping ai scoring", zap.Error(err))
		return ai.NewUnranked(), "nobody (ai client unavailable)"
	}

	profile, err := loadProfile(config)
	if err != nil {
		log.Warn("falling back to inline profile", zap.Error(err))
		profile = config.Profile
	}

	rankerLogger := logger.WithProviderFields(logger.Component(log, "scorer"), config.AI.Provider, generator.Model())
	ranker := gemini.NewRanker(generator, gemini.Profile{
		Candidate:     profile,
		PriorityFirms: config.Companies.Priority,
		Depth:         gemini.Depth(config.AI.Depth),
	}, config.AI.BatchSize, config.AI.Gemini.MaxLogLength, rankerLogger)

	return ranker, fmt.Sprintf("Gemini (%s)", generator.Model())
}

func loadProfile(config *Config) (string, error) {
	path := strings.TrimSpace(config.ProfileFile)
	if path == "" {
		return config.Profile, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading profile file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("profile file is empty")
	}
	return string(data), nil
}

func buildDeliverer(config *Config, log *zap.Logger) *delivery.Deliverer {
	deliveryLogger := logger.Component(log, "delivery")

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "resend api key",
		Value: config.Email.Resend.APIKey,
		File:  config.Email.Resend.APIKeyFile,
		Env:   "RESEND_API_KEY",
	})
	if err != nil {
		deliveryLogger.Warn("email delivery disabled", zap.Error(err))
		return delivery.NewDeliverer(nil, config.OutputFile, deliveryLogger)
	}

	mailer, err := delivery.NewResendMailer(apiKey, config.Email.From, config.Email.To)
	if err != nil {
		deliveryLogger.Warn("email delivery disabled", zap.Error(err))
		return delivery.NewDeliverer(nil, config.OutputFile, deliveryLogger)
	}

	return delivery.NewDeliverer(mailer, config.OutputFile, deliveryLogger)
}

// logSummary reports a finished run the way the old console summary did.
func logSummary(log *zap.Logger, summary pipeline.Summary, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String(logger.FieldRunID, summary.RunID),
		zap.String(logger.FieldMode, string(summary.Mode)),
		zap.Int("total", summary.Total),
		zap.Int("strong_matches", summary.Strong),
		zap.Bool("emailed", summary.Delivery.Sent),
		zap.Duration("elapsed", elapsed),
	}
	if summary.Top != nil {
		fields = append(fields,
			zap.String("top_title", summary.Top.Title),
			zap.String("top_company", summary.Top.Company),
			zap.Float64("top_score", summary.Top.Overall()),
		)
	}
	if summary.OutputFile != "" {
		fields = append(fields, zap.String("output_file", summary.OutputFile))
	}
	if summary.Delivery.Reason != "" {
		fields = append(fields, zap.String("delivery_note", summary.Delivery.Reason))
	}

	log.Info("run finished", fields...)
}
