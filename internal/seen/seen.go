package seen

import (
	"context"
	"sort"
	"time"
)

// DateLayout is the ISO date format stored for every fingerprint.
const DateLayout = "2006-01-02"

// DefaultRetentionDays controls how long a fingerprint suppresses a job.
const DefaultRetentionDays = 30

// Store persists seen entries. Implementations rewrite the whole mapping on Save.
type Store interface {
	Name() string
	Load(ctx context.Context) (Entries, error)
	Save(ctx context.Context, entries Entries) error
}

// Entries maps a job fingerprint to the date it was first reported.
type Entries map[string]string

func (e Entries) Has(fp string) bool {
	_, ok := e[fp]
	return ok
}

// Mark records fp as seen on date unless it is already present.
func (e Entries) Mark(fp, date string) bool {
	if e.Has(fp) {
		return false
	}
	e[fp] = date
	return true
}

// Prune removes every entry dated before cutoff. Entries dated exactly at
// cutoff are kept.
func (e Entries) Prune(cutoff string) []string {
	var removed []string
	for fp, date := range e {
		if date < cutoff {
			removed = append(removed, fp)
		}
	}
	sort.Strings(removed)
	for _, fp := range removed {
		delete(e, fp)
	}
	return removed
}

type Entry struct {
	Fingerprint string
	Date        string
}

// Sorted returns the entries ordered by date, then fingerprint.
func (e Entries) Sorted() []Entry {
	out := make([]Entry, 0, len(e))
	for fp, date := range e {
		out = append(out, Entry{Fingerprint: fp, Date: date})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].Date < out[j].Date
	})
	return out
}

func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// Cutoff returns the oldest date retained for the given retention window.
func Cutoff(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format(DateLayout)
}

type unavailableStore struct {
	name string
	err  error
}

// Unavailable returns a store that fails every call with err. It stands in
// for a backend that could not be opened so the run can carry on without it.
func Unavailable(name string, err error) Store {
	return &unavailableStore{name: name, err: err}
}

func (s *unavailableStore) Name() string { return s.name }

func (s *unavailableStore) Load(context.Context) (Entries, error) { return nil, s.err }

func (s *unavailableStore) Save(context.Context, Entries) error { return s.err }
