package ai

import (
	"context"
	"errors"
	"sort"

	"github.com/job-digest/job-digest/internal/jobs"
)

// Markers stored in the one-liner of default score blocks.
const (
	Unranked         = "Unranked (no API key)"
	NotScored        = "Not scored"
	ParseError       = "Parse error during scoring"
	APIError         = "API error during scoring"
	ScoringFailed    = "Scoring failed"
	NoScoresReturned = "No scores returned"

	NeutralScore = 5.0
)

// ErrMalformedResponse marks a scoring reply that could not be parsed or
// does not match the expected shape.
var ErrMalformedResponse = errors.New("malformed scoring response")

// Scorer attaches a score block to every job and orders them by overall score.
// Implementations never drop jobs.
type Scorer interface {
	Score(ctx context.Context, list []jobs.Job) []jobs.Job
}

// DefaultScores is the score block used when a job could not be scored.
func DefaultScores(reason string) *jobs.Scores {
	return &jobs.Scores{
		Overall:         NeutralScore,
		OneLiner:        reason,
		KeyRequirements: []string{},
		TalkingPoints:   []string{},
		RedFlags:        []string{},
	}
}

// SortByOverall orders jobs by overall score, highest first. Equal scores keep their input order.
func SortByOverall(list []jobs.Job) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Overall() > list[j].Overall()
	})
}

type unranked struct{}

// NewUnranked returns the scorer used when no credential is configured.
func NewUnranked() Scorer {
	return unranked{}
}

func (unranked) Score(_ context.Context, list []jobs.Job) []jobs.Job {
	out := make([]jobs.Job, len(list))
	copy(out, list)
	for i := range out {
		out[i].Scores = DefaultScores(Unranked)
	}
	return out
}
