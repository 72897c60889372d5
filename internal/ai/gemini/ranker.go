package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/job-digest/job-digest/internal/ai"
	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/utils"
)

// Depth selects how much narrative the model is asked to produce per job.
type Depth string

const (
	DepthStandard Depth = "standard"
	DepthRich     Depth = "rich"

	defaultMaxLogLength = 200

	batchMaxTokens  = 8192
	singleMaxTokens = 2048

	summaryDescriptionRunes = 800
	summaryQualifications   = 5
	summaryResponsibilities = 4
)

//go:embed prompt.md
var promptTemplate string

//go:embed scores.schema.json
var scoresSchema string

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(scoresSchema))
})

const deepFields = `,
      "deep_insight": "Why this role is open now and what it signals about the company's direction",
      "networking_angle": "A concrete way to get a warm introduction or stand out",
      "comp_intel": "What the company is doing in digital, AI or Industry 4.0 that makes the role timely"`

const deepGuidance = `
- deep_insight: think like a strategy consultant; explain why the role exists and the candidate's unique edge.
- networking_angle: name a concrete move (a practice, an event, a network), not "use LinkedIn".
- comp_intel: reference real initiatives of the company when known.`

type contentGenerator interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

// Profile is the static candidate context sent with every scoring request.
type Profile struct {
	Candidate     string
	PriorityFirms []string
	Depth         Depth
}

// Ranker scores jobs in batches and falls back to one job per request
// when a batch reply cannot be parsed.
type Ranker struct {
	generator contentGenerator
	system    string
	batchSize int
	maxLogLen int
	logger    *zap.Logger
}

func NewRanker(generator contentGenerator, profile Profile, batchSize, maxLogLength int, logger *zap.Logger) *Ranker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize(profile.Depth)
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ranker{
		generator: generator,
		system:    buildSystemPrompt(profile),
		batchSize: batchSize,
		maxLogLen: maxLogLength,
		logger:    logger,
	}
}

// DefaultBatchSize is smaller for the rich profile because each entry is longer.
func DefaultBatchSize(depth Depth) int {
	if depth == DepthStandard {
		return 10
	}
	return 5
}

func (r *Ranker) Score(ctx context.Context, list []jobs.Job) []jobs.Job {
	out := make([]jobs.Job, len(list))
	copy(out, list)

	for i := range out {
		if out[i].ID == "" {
			out[i].ID = out[i].Fingerprint()
		}
	}

	for start := 0; start < len(out); start += r.batchSize {
		end := start + r.batchSize
		if end > len(out) {
			end = len(out)
		}
		r.scoreWithFallback(ctx, out[start:end])
	}

	ai.SortByOverall(out)
	return out
}

func (r *Ranker) scoreWithFallback(ctx context.Context, batch []jobs.Job) {
	scores, err := r.scoreBatch(ctx, batch)
	switch {
	case err == nil:
		for i := range batch {
			if s, ok := scores[batch[i].ID]; ok {
				batch[i].Scores = s
				continue
			}
			r.logger.Warn("job missing from scoring response", zap.String("job_id", batch[i].ID))
			batch[i].Scores = ai.DefaultScores(ai.NotScored)
		}
	case errors.Is(err, ai.ErrMalformedResponse) && len(batch) > 1:
		r.logger.Warn("batch response unusable, scoring jobs one at a time",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		for i := range batch {
			batch[i].Scores = r.scoreOne(ctx, batch[i])
		}
	case errors.Is(err, ai.ErrMalformedResponse):
		r.logger.Warn("scoring response unusable", zap.String("job_id", batch[0].ID), zap.Error(err))
		batch[0].Scores = ai.DefaultScores(ai.ParseError)
	default:
		r.logger.Warn("scoring request failed", zap.Int("batch_size", len(batch)), zap.Error(err))
		for i := range batch {
			batch[i].Scores = ai.DefaultScores(ai.APIError)
		}
	}
}

// scoreBatch requests scores for every job of the batch and indexes them by job id.
func (r *Ranker) scoreBatch(ctx context.Context, batch []jobs.Job) (map[string]*jobs.Scores, error) {
	summaries := make([]string, 0, len(batch))
	for _, job := range batch {
		summaries = append(summaries, summarize(job))
	}
	prompt := "Score these job listings:\n\n" + strings.Join(summaries, "\n---\n")

	entries, err := r.request(ctx, prompt, batchMaxTokens, len(batch))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*jobs.Scores, len(entries))
	for _, e := range entries {
		byID[e.id] = e.scores
	}
	return byID, nil
}

// scoreOne requests scores for a single job. It always returns a score block.
func (r *Ranker) scoreOne(ctx context.Context, job jobs.Job) *jobs.Scores {
	prompt := "Score this job listing:\n\n" + summarize(job)

	entries, err := r.request(ctx, prompt, singleMaxTokens, 1)
	if err != nil {
		r.logger.Warn("single job scoring failed",
			zap.String("job_id", job.ID),
			zap.String("title", job.Title),
			zap.Error(err),
		)
		return ai.DefaultScores(ai.ScoringFailed)
	}

	if len(entries) == 0 {
		return ai.DefaultScores(ai.NoScoresReturned)
	}
	return entries[0].scores
}

func (r *Ranker) request(ctx context.Context, prompt string, maxTokens int32, size int) ([]scoredEntry, error) {
	r.logger.Debug("gemini generate content request",
		zap.Int("batch_size", size),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(utils.OneLine(prompt), r.maxLogLen)),
	)

	resp, err := r.generator.GenerateContent(ctx, Request{
		System:          r.system,
		Prompt:          prompt,
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(resp.Text)),
		zap.String("response_preview", utils.TruncateForLog(utils.OneLine(resp.Text), r.maxLogLen)),
	)

	entries, err := parseResponse(resp.Text)
	if err != nil {
		return nil, err
	}

	r.logger.Info("scored batch",
		zap.Int("batch_size", size),
		zap.Int("scores", len(entries)),
		zap.Int32("input_tokens", resp.InputTokens),
		zap.Int32("output_tokens", resp.OutputTokens),
	)

	return entries, nil
}

func buildSystemPrompt(profile Profile) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Candidate profile:\n{{PROFILE}}\n\nReturn JSON {\"scores\": [...]}."
	}

	firms := strings.Join(profile.PriorityFirms, ", ")
	if firms == "" {
		firms = "none listed"
	}

	fields, guidance := "", ""
	if profile.Depth != DepthStandard {
		fields, guidance = deepFields, deepGuidance
	}

	prompt := strings.ReplaceAll(template, "{{PROFILE}}", strings.TrimSpace(profile.Candidate))
	prompt = strings.ReplaceAll(prompt, "{{PRIORITY_FIRMS}}", firms)
	prompt = strings.ReplaceAll(prompt, "{{DEEP_FIELDS}}", fields)
	prompt = strings.ReplaceAll(prompt, "{{DEEP_GUIDANCE}}", guidance)
	return prompt
}

func summarize(job jobs.Job) string {
	salary := job.Salary
	if salary == "" {
		salary = "Not listed"
	}
	posted := job.Posted
	if posted == "" {
		posted = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", job.ID)
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	fmt.Fprintf(&b, "Company: %s\n", job.Company)
	fmt.Fprintf(&b, "Location: %s\n", job.Location)
	fmt.Fprintf(&b, "Salary: %s\n", salary)
	fmt.Fprintf(&b, "Posted: %s\n", posted)
	fmt.Fprintf(&b, "Description: %s", jobs.Truncate(job.Description, summaryDescriptionRunes))

	writeList(&b, "Key Qualifications", jobs.Head(job.Qualifications, summaryQualifications))
	writeList(&b, "Key Responsibilities", jobs.Head(job.Responsibilities, summaryResponsibilities))
	b.WriteString("\n")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:", title)
	for _, item := range items {
		fmt.Fprintf(b, "\n  - %s", item)
	}
}

type scoredEntry struct {
	id     string
	scores *jobs.Scores
}

func parseResponse(raw string) ([]scoredEntry, error) {
	cleaned := extractJSON(raw)

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load scores schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ai.ErrMalformedResponse, strings.Join(problems, "; "))
	}

	var payload struct {
		Scores []map[string]any `json:"scores"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	entries := make([]scoredEntry, 0, len(payload.Scores))
	for _, item := range payload.Scores {
		entries = append(entries, scoredEntry{
			id: coerceString(item["id"]),
			scores: &jobs.Scores{
				TitleFit:        coerceScore(item["title_fit"]),
				IndustryFit:     coerceScore(item["industry_fit"]),
				SkillMatch:      coerceScore(item["skill_match"]),
				CompanyPrestige: coerceScore(item["company_prestige"]),
				Overall:         coerceScore(item["overall"]),
				OneLiner:        coerceString(item["one_liner"]),
				KeyRequirements: coerceStrings(item["key_requirements"]),
				WhyApply:        coerceString(item["why_apply"]),
				TalkingPoints:   coerceStrings(item["talking_points"]),
				RedFlags:        coerceStrings(item["red_flags"]),
				DeepInsight:     coerceString(item["deep_insight"]),
				NetworkingAngle: coerceString(item["networking_angle"]),
				CompIntel:       coerceString(item["comp_intel"]),
			},
		})
	}
	return entries, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// coerceScore returns 0 for missing or unparseable values.
func coerceScore(v any) float64 {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
