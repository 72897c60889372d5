package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/job-digest/job-digest/internal/ai"
	"github.com/job-digest/job-digest/internal/delivery"
	"github.com/job-digest/job-digest/internal/filtering"
	"github.com/job-digest/job-digest/internal/jobs"
	"github.com/job-digest/job-digest/internal/preview"
	"github.com/job-digest/job-digest/internal/seen"
)

var runDate = time.Date(2026, time.October, 18, 7, 0, 0, 0, time.UTC)

type stubFetcher struct {
	jobs  []jobs.Job
	calls int
}

func (s *stubFetcher) Fetch(context.Context) []jobs.Job {
	s.calls++
	out := make([]jobs.Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

type stubDeliverer struct {
	messages []delivery.Message
	result   delivery.Result
}

func (s *stubDeliverer) Deliver(_ context.Context, msg delivery.Message) delivery.Result {
	s.messages = append(s.messages, msg)
	return s.result
}

type fixedScorer struct {
	overall map[string]float64
	calls   int
}

func (f *fixedScorer) Score(_ context.Context, list []jobs.Job) []jobs.Job {
	f.calls++
	out := make([]jobs.Job, len(list))
	copy(out, list)
	for i := range out {
		out[i].Scores = &jobs.Scores{Overall: f.overall[out[i].Company]}
	}
	ai.SortByOverall(out)
	return out
}

type brokenStore struct{}

func (brokenStore) Name() string { return "broken" }
func (brokenStore) Load(context.Context) (seen.Entries, error) {
	return nil, errors.New("disk on fire")
}
func (brokenStore) Save(context.Context, seen.Entries) error { return nil }

func rawJobs() []jobs.Job {
	return []jobs.Job{
		{Title: "VP Strategy", Company: "Bain", Location: "Remote"},
		{Title: "Director", Company: "Deloitte", Location: "Chicago"},
		{Title: "Partner", Company: "McKinsey", Location: "Chicago, IL", URL: "https://example.com/p"},
	}
}

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	cfg.Now = func() time.Time { return runDate }
	if cfg.Seen.Store == nil {
		cfg.Seen = filtering.SeenConfig{Store: seen.NewFileStore(filepath.Join(t.TempDir(), "seen.json")), RetentionDays: 30}
	}
	r := NewRunner(cfg, zap.NewNop())
	r.newID = func() string { return "run-1" }
	return r
}

func TestRunFullDeliversScoredDigest(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{jobs: rawJobs()}
	scorer := &fixedScorer{overall: map[string]float64{"Bain": 6, "McKinsey": 9}}
	out := &stubDeliverer{result: delivery.Result{Sent: true, ID: "email-1"}}

	r := newTestRunner(t, Config{Fetcher: fetcher, Exclude: []string{"Deloitte"}, Scorer: scorer, Deliverer: out})

	summary, err := r.Run(context.Background(), ModeFull)
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Strong)
	require.NotNil(t, summary.Top)
	assert.Equal(t, "McKinsey", summary.Top.Company)
	assert.True(t, summary.Delivery.Sent)

	require.Len(t, out.messages, 1)
	msg := out.messages[0]
	assert.Equal(t, "Job Digest (Oct 18) - 2 new listings, 1 strong matches", msg.Subject)
	assert.Equal(t, 2, msg.Count)
	assert.NotContains(t, msg.HTML, "Deloitte")
	assert.Contains(t, msg.HTML, "VP Strategy")
}

func TestRunSecondPassIsEmpty(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{jobs: rawJobs()}
	scorer := &fixedScorer{}
	out := &stubDeliverer{}
	r := newTestRunner(t, Config{Fetcher: fetcher, Exclude: []string{"Deloitte"}, Scorer: scorer, Deliverer: out})

	_, err := r.Run(context.Background(), ModeFull)
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Total)
	assert.Nil(t, summary.Top)
	assert.Equal(t, 1, scorer.calls, "empty result must skip scoring")
	require.Len(t, out.messages, 2)
	assert.Equal(t, "Job Digest (Oct 18) - 0 new listings", out.messages[1].Subject)
	assert.Contains(t, out.messages[1].HTML, "No new matching jobs found today.")
}

func TestRunDryRunWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "digest.html")
	out := &stubDeliverer{}
	r := newTestRunner(t, Config{Fetcher: &stubFetcher{jobs: rawJobs()}, Deliverer: out, OutputFile: path})

	summary, err := r.Run(context.Background(), ModeDryRun)
	require.NoError(t, err)

	assert.Equal(t, path, summary.OutputFile)
	assert.Empty(t, out.messages)
	assert.Equal(t, 3, summary.Total)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ai.Unranked)
}

func TestRunDryRunEmptyWritesPlaceholder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "digest.html")
	r := newTestRunner(t, Config{Deliverer: &stubDeliverer{}, OutputFile: path})

	summary, err := r.Run(context.Background(), ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No new matching jobs found today.")
}

func TestRunContinuesWhenSeenStoreFails(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	out := &stubDeliverer{}
	cfg := Config{
		Fetcher:   &stubFetcher{jobs: rawJobs()},
		Seen:      filtering.SeenConfig{Store: brokenStore{}},
		Exclude:   []string{"Deloitte"},
		Deliverer: out,
		Now:       func() time.Time { return runDate },
	}
	r := NewRunner(cfg, zap.New(core))

	summary, err := r.Run(context.Background(), ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, logs.FilterMessage("dedup failed, continuing without seen store").Len())
	require.Len(t, out.messages, 1)
	assert.NotContains(t, out.messages[0].HTML, "Deloitte")

	started := logs.FilterMessage("run started").All()
	require.Len(t, started, 1)
	assert.Equal(t, string(ModeFull), started[0].ContextMap()["mode"])
	assert.NotEmpty(t, started[0].ContextMap()["run_id"])
}

func TestRunPreviewUsesSamples(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "preview.html")
	fetcher := &stubFetcher{}
	scorer := &fixedScorer{}
	r := newTestRunner(t, Config{Fetcher: fetcher, Scorer: scorer, OutputFile: path, Samples: preview.Samples})

	summary, err := r.Run(context.Background(), ModePreview)
	require.NoError(t, err)

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, scorer.calls)
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 5, summary.Strong)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "id=\"job-sample001\""))
	assert.True(t, strings.Contains(string(data), "id=\"row-sample006\""))
}

func TestRunRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, Config{})
	_, err := r.Run(context.Background(), Mode("weekly"))
	assert.Error(t, err)
}
