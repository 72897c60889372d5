package search

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/job-digest/job-digest/internal/jobs"
)

type recordedRequest struct {
	query   url.Values
	headers http.Header
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	payload  func(q url.Values) (int, any)
	gzip     bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{query: r.URL.Query(), headers: r.Header.Clone()})
	f.mu.Unlock()

	status, body := f.payload(r.URL.Query())
	w.Header().Set("Content-Type", "application/json")
	if f.gzip {
		w.Header().Set("Content-Encoding", "gzip")
	}
	w.WriteHeader(status)

	if f.gzip {
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_ = json.NewEncoder(gz).Encode(body)
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newFakeAPI(t *testing.T, api *fakeAPI) string {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestBuildQueriesAndPlan(t *testing.T) {
	t.Parallel()

	queries := BuildQueries(DefaultTitleGroups, DefaultIndustryTerms)
	require.Len(t, queries, 3)
	assert.Equal(t,
		`("Partner" OR "Senior Partner" OR "Managing Director") AND (consulting OR manufacturing OR technology OR digital transformation)`,
		queries[0],
	)

	plan := Plan(queries, "Chicago, IL", true)
	require.Len(t, plan, 6)
	assert.False(t, plan[0].Remote)
	assert.True(t, plan[1].Remote)
	assert.Equal(t, plan[0].Text, plan[1].Text)

	assert.Len(t, Plan(queries, "Chicago, IL", false), 3)
	assert.Equal(t, []string{"(VP)"}, BuildQueries([]string{"VP"}, ""))
}

func TestSerpAPISearch(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{gzip: true, payload: func(url.Values) (int, any) {
		return http.StatusOK, map[string]any{
			"jobs_results": []any{
				map[string]any{
					"title":        "Managing Director, Industrial Technology",
					"company_name": "Accenture",
					"location":     "Chicago, IL",
					"via":          "via LinkedIn",
					"description":  "<p>Drive growth &amp; lead teams.</p>",
					"share_link":   "https://share.example/1",
					"detected_extensions": map[string]any{
						"posted_at":      "1 day ago",
						"schedule_type":  "Full-time",
						"salary":         "300K–450K a year",
						"work_from_home": true,
					},
					"apply_options": []any{
						map[string]any{"title": "Accenture Careers", "link": "https://accenture.example/apply"},
						map[string]any{"title": "LinkedIn", "link": "https://linkedin.example/jobs/1"},
					},
					"job_highlights": []any{
						map[string]any{"title": "Qualifications", "items": []any{"a", "b", "c", "d", "e", "f"}},
						map[string]any{"title": "Benefits", "items": []any{"Equity"}},
					},
				},
				map[string]any{
					"title":         "Partner",
					"company_name":  "Bain",
					"location":      "Remote",
					"related_links": []any{map[string]any{"link": "https://related.example/2"}},
				},
				map[string]any{"title": "CIO", "company_name": "Acme"},
			},
		}
	}}
	endpoint := newFakeAPI(t, api)

	backend := NewSerpAPI(NewClient(time.Second, zap.NewNop()), "serp-key")
	backend.Endpoint = endpoint

	found, err := backend.Search(context.Background(), Query{Text: "(VP)", Location: "Chicago, IL", Remote: true})
	require.NoError(t, err)
	require.Len(t, found, 3)

	q := api.requests[0].query
	assert.Equal(t, "google_jobs", q.Get("engine"))
	assert.Equal(t, "(VP)", q.Get("q"))
	assert.Equal(t, "Chicago, IL", q.Get("location"))
	assert.Equal(t, "serp-key", q.Get("api_key"))
	assert.Equal(t, "20", q.Get("num"))
	assert.Equal(t, "1", q.Get("ltype"))

	first := found[0]
	assert.Equal(t, "Accenture", first.Company)
	assert.Equal(t, "Drive growth & lead teams.", first.Description)
	assert.Equal(t, "LinkedIn", first.Via)
	assert.Equal(t, "300K–450K a year", first.Salary)
	assert.Equal(t, "1 day ago", first.Posted)
	assert.Equal(t, "Full-time", first.Schedule)
	assert.Equal(t, "https://accenture.example/apply", first.URL)
	assert.Len(t, first.ApplyLinks, 2)
	assert.Len(t, first.Qualifications, jobs.MaxHighlights)
	assert.Equal(t, []string{"Equity"}, first.Benefits)
	assert.Equal(t, SourceSerpAPI, first.Source)

	assert.Equal(t, "https://related.example/2", found[1].URL)
	assert.Empty(t, found[2].URL, "missing links stay empty until the filter stage")
}

func TestSerpAPIOnSiteQueryHasNoRemoteType(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payload: func(url.Values) (int, any) {
		return http.StatusOK, map[string]any{"error": "Google hasn't returned any results for this query."}
	}}
	backend := NewSerpAPI(NewClient(time.Second, nil), "k")
	backend.Endpoint = newFakeAPI(t, api)

	found, err := backend.Search(context.Background(), Query{Text: "x", Location: "Chicago, IL"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.False(t, api.requests[0].query.Has("ltype"))
}

func TestJSearchSearch(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payload: func(url.Values) (int, any) {
		return http.StatusOK, map[string]any{
			"status": "OK",
			"data": []any{
				map[string]any{
					"job_title":                  "SVP, Digital Solutions",
					"employer_name":              "Rockwell Automation",
					"job_city":                   "Chicago",
					"job_country":                "US",
					"job_description":            "Own the digital solutions P&L.",
					"job_min_salary":             280000,
					"job_max_salary":             380000.4,
					"job_salary_period":          "YEAR",
					"job_posted_at_datetime_utc": "2026-10-15T08:00:00.000Z",
					"job_employment_type":        "FULLTIME",
					"job_apply_link":             "https://rockwell.example/apply",
					"job_publisher":              "LinkedIn",
					"apply_options": []any{
						map[string]any{"publisher": "LinkedIn", "apply_link": "https://linkedin.example/2"},
					},
					"job_highlights": map[string]any{
						"Qualifications":   []any{"SaaS P&L ownership"},
						"Responsibilities": []any{"Lead 200+ people"},
					},
				},
				map[string]any{
					"job_title":      "CIO",
					"employer_name":  "Acme",
					"job_city":       nil,
					"job_country":    "US",
					"job_min_salary": nil,
				},
			},
		}
	}}

	backend := NewJSearch(NewClient(time.Second, nil), "rapid-key")
	backend.Endpoint = newFakeAPI(t, api)
	backend.now = func() time.Time { return time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC) }

	found, err := backend.Search(context.Background(), Query{Text: "(CIO)", Location: "Chicago, IL"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	req := api.requests[0]
	assert.Equal(t, "rapid-key", req.headers.Get("X-RapidAPI-Key"))
	assert.Equal(t, JSearchHost, req.headers.Get("X-RapidAPI-Host"))
	assert.Equal(t, "(CIO) in Chicago, IL", req.query.Get("query"))
	assert.Equal(t, "1", req.query.Get("page"))
	assert.Equal(t, "2", req.query.Get("num_pages"))
	assert.Equal(t, "week", req.query.Get("date_posted"))
	assert.Equal(t, "false", req.query.Get("remote_jobs_only"))

	first := found[0]
	assert.Equal(t, "Chicago", first.Location)
	assert.Equal(t, "$280,000 - $380,000 / year", first.Salary)
	assert.Equal(t, "3 days ago", first.Posted)
	assert.Equal(t, "https://rockwell.example/apply", first.URL)
	assert.Equal(t, []string{"SaaS P&L ownership"}, first.Qualifications)
	assert.Equal(t, "LinkedIn", first.ApplyLinks[0].Source)

	assert.Equal(t, "US", found[1].Location)
	assert.Empty(t, found[1].Salary)

	_, err = backend.Search(context.Background(), Query{Text: "(CIO)", Location: "Chicago, IL", Remote: true})
	require.NoError(t, err)
	remote := api.requests[1].query
	assert.Equal(t, "(CIO)", remote.Get("query"))
	assert.Equal(t, "true", remote.Get("remote_jobs_only"))
}

func TestNormalizeKeepsIdentityFieldsRaw(t *testing.T) {
	t.Parallel()

	serp := serpJob{Title: " Partner ", CompanyName: "Bain ", Location: " Chicago, IL"}.normalize()
	assert.Equal(t, " Partner ", serp.Title)
	assert.Equal(t, "Bain ", serp.Company)
	assert.Equal(t, " Chicago, IL", serp.Location)
	assert.Equal(t, jobs.Fingerprint(" Partner ", "Bain ", " Chicago, IL"), serp.Fingerprint())
	assert.NotEqual(t, jobs.Fingerprint("Partner", "Bain", "Chicago, IL"), serp.Fingerprint())

	js := jsearchJob{Title: "CIO ", EmployerName: " Caterpillar", Country: "US "}.normalize(time.Now())
	assert.Equal(t, "CIO ", js.Title)
	assert.Equal(t, " Caterpillar", js.Company)
	assert.Equal(t, "US ", js.Location)
}

func TestFormatSalary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lo, hi float64
		period string
		expect string
	}{
		{name: "none", expect: ""},
		{name: "range", lo: 250000, hi: 400000, period: "YEAR", expect: "$250,000 - $400,000 / year"},
		{name: "min only", lo: 250000, expect: "$250,000+ / year"},
		{name: "max only", hi: 95, period: "HOUR", expect: "up to $95 / hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, formatSalary(tt.lo, tt.hi, tt.period))
		})
	}
}

func TestCareerPagesSearch(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payload: func(url.Values) (int, any) {
		return http.StatusOK, map[string]any{
			"organic_results": []any{
				map[string]any{"title": "Partner - Manufacturing | McKinsey", "link": "https://mckinsey.example/p", "snippet": "Lead the practice"},
				map[string]any{"title": "Our culture", "link": "https://mckinsey.example/c"},
			},
		}
	}}

	backend := NewCareerPages(NewClient(time.Second, nil), "k", map[string]string{"McKinsey": "site:mckinsey.com careers"}, nil)
	backend.Endpoint = newFakeAPI(t, api)

	plan := backend.Plan(nil, "ignored", true)
	require.Len(t, plan, 1)
	assert.Equal(t, "McKinsey", plan[0].Label)

	found, err := backend.Search(context.Background(), plan[0])
	require.NoError(t, err)
	require.Len(t, found, 1)

	q := api.requests[0].query
	assert.Equal(t, "google", q.Get("engine"))
	assert.Equal(t, "qdr:w", q.Get("tbs"))
	assert.Equal(t, "10", q.Get("num"))

	job := found[0]
	assert.Equal(t, "McKinsey", job.Company)
	assert.Equal(t, "See posting", job.Location)
	assert.Equal(t, "This week", job.Posted)
	assert.Equal(t, SourceCareerPage, job.Source)
	assert.Equal(t, "McKinsey Careers", job.ApplyLinks[0].Source)
}

func TestDefaultCareerPlanIsSorted(t *testing.T) {
	t.Parallel()

	plan := NewCareerPages(nil, "k", nil, nil).Plan(nil, "", false)
	require.Len(t, plan, len(DefaultCareerSites))
	assert.Equal(t, "Accenture", plan[0].Label)
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payload: func(q url.Values) (int, any) {
		switch q.Get("case") {
		case "status":
			return http.StatusTooManyRequests, map[string]any{}
		case "api":
			return http.StatusOK, map[string]any{"error": "Invalid API key."}
		default:
			return http.StatusOK, map[string]any{"jobs_results": "oops"}
		}
	}}
	endpoint := newFakeAPI(t, api)
	client := NewClient(time.Second, nil)

	_, err := client.GetItems(context.Background(), endpoint, url.Values{"case": {"status"}}, nil, "jobs_results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad status: 429")

	_, err = client.GetItems(context.Background(), endpoint, url.Values{"case": {"api"}}, nil, "jobs_results")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key.")

	_, err = client.GetItems(context.Background(), endpoint, url.Values{"case": {"type"}}, nil, "jobs_results")
	assert.Error(t, err)
}

func TestRedactHidesAPIKey(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("https://serpapi.com/search?api_key=secret&q=x")
	require.NoError(t, err)
	assert.NotContains(t, redact(u), "secret")
	assert.Contains(t, u.String(), "secret", "original url must not be modified")
}

type stubBackend struct {
	name    string
	calls   []Query
	failFor map[string]bool
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(_ context.Context, q Query) ([]jobs.Job, error) {
	s.calls = append(s.calls, q)
	if s.failFor[q.Text] {
		return nil, errors.New("timeout")
	}
	return []jobs.Job{{Title: q.Text, Company: s.name, Source: s.name}}, nil
}

func TestFetcherWithoutBackendsWarns(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	found := NewFetcher(FetcherConfig{}, zap.New(core)).Fetch(context.Background())

	assert.NotNil(t, found)
	assert.Empty(t, found)
	assert.Len(t, observed.FilterMessage("skipping search").All(), 1)
}

func TestFetcherContinuesAfterFailures(t *testing.T) {
	t.Parallel()

	groups := []string{"A", "B"}
	failing := &stubBackend{name: "first", failFor: map[string]bool{"(A) AND (x)": true}}
	healthy := &stubBackend{name: "second"}

	core, observed := observer.New(zapcore.WarnLevel)
	fetcher := NewFetcher(FetcherConfig{
		TitleGroups:   groups,
		IndustryTerms: "x",
		Location:      "Chicago, IL",
		IncludeRemote: true,
	}, zap.New(core), failing, healthy)

	found := fetcher.Fetch(context.Background())

	assert.Len(t, failing.calls, 4)
	assert.Len(t, healthy.calls, 4)
	// Two failed calls (on-site and remote) for query A on the first backend.
	assert.Len(t, found, 6)
	assert.Len(t, observed.FilterMessage("search call failed").All(), 2)
	assert.Equal(t, []string{"first", "second"}, fetcher.Backends())
}

func TestFetcherUsesBackendPlan(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{payload: func(q url.Values) (int, any) {
		return http.StatusOK, map[string]any{"organic_results": []any{
			map[string]any{"title": "Senior Partner", "link": "https://x.example/" + url.QueryEscape(q.Get("q"))},
		}}
	}}
	careers := NewCareerPages(NewClient(time.Second, nil), "k", map[string]string{"A": "site:a", "B": "site:b"}, nil)
	careers.Endpoint = newFakeAPI(t, api)

	found := NewFetcher(FetcherConfig{IncludeRemote: true}, nil, careers).Fetch(context.Background())

	require.Len(t, found, 2)
	assert.Equal(t, "A", found[0].Company)
	assert.Equal(t, "B", found[1].Company)
	assert.Len(t, api.requests, 2)
}

func TestFetcherStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &stubBackend{name: "b"}
	found := NewFetcher(FetcherConfig{}, nil, backend).Fetch(ctx)

	assert.Empty(t, found)
	assert.Empty(t, backend.calls)
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b", plainText("  a\n\n b "))
	assert.Equal(t, "Lead & grow", plainText("<b>Lead</b> &amp; grow"))
	assert.True(t, strings.HasSuffix(description(strings.Repeat("x", 3000)), "x"))
	assert.Len(t, []rune(description(strings.Repeat("x", 3000))), jobs.MaxDescriptionRunes)
}
