// Package rotation picks which present members take a chore in a round and
// pairs them with places.
//
// A round excludes members already picked today and members whose approved
// task is still live. When that leaves too few candidates the day's rotation
// is reset and only live approvals are excluded.
package rotation

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

// ErrNoEligibleMembers is returned when no candidate survives filtering,
// even after the day's rotation is reset.
var ErrNoEligibleMembers = errors.New("no eligible members")

type Candidate struct {
	ID        int64
	Name      string
	Email     string
	IsPresent bool
}

type Pick struct {
	Candidate
	Place string
}

// State is the rotation memory of one company and chore kind.
type State struct {
	Day  string // YYYY-MM-DD in the round's location
	Used []int64
}

// usedOn returns the members already picked on day. A state from another day
// is treated as empty.
func (s State) usedOn(day string) map[int64]bool {
	used := make(map[int64]bool, len(s.Used))
	if s.Day != day {
		return used
	}
	for _, id := range s.Used {
		used[id] = true
	}
	return used
}

type Request struct {
	Candidates []Candidate
	Count      int
	Places     []string
	// Busy holds members with a live approved task.
	Busy map[int64]bool
	// Stats enables fairness ranking; nil means a uniform shuffle.
	Stats *Stats
	// AllowRepeat skips the exclusion of members already picked today.
	AllowRepeat bool
	Now         time.Time
}

type Round struct {
	Picks []Pick
	// Insufficient is set when fewer members than requested were eligible.
	Insufficient bool
	// Reset is set when the day's rotation had to be dropped to fill the round.
	Reset bool
	// State is the rotation memory to persist after the round.
	State State
}

// Scheduler runs rounds with its own random source.
type Scheduler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewScheduler returns a scheduler drawing from src, or from a time-seeded
// source when src is nil.
func NewScheduler(src rand.Source) *Scheduler {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &Scheduler{rnd: rand.New(src)}
}

// Assign runs one round. The given state is never modified; the state to
// persist is returned in the Round. On ErrNoEligibleMembers the returned
// state equals the input.
func (s *Scheduler) Assign(state State, req Request) (Round, error) {
	if req.Count <= 0 {
		return Round{State: state}, nil
	}

	today := req.Now.Format(time.DateOnly)
	used := state.usedOn(today)
	if req.AllowRepeat {
		used = map[int64]bool{}
	}

	pool := filter(req.Candidates, used, req.Busy)
	reset := false
	if len(pool) < req.Count && len(used) > 0 {
		if relaxed := filter(req.Candidates, nil, req.Busy); len(relaxed) > len(pool) {
			pool = relaxed
			reset = true
		}
	}
	if len(pool) == 0 {
		return Round{State: state}, ErrNoEligibleMembers
	}

	s.mu.Lock()
	if req.Stats != nil {
		req.Stats.rank(pool)
	} else {
		s.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
	places := slices.Clone(req.Places)
	s.rnd.Shuffle(len(places), func(i, j int) { places[i], places[j] = places[j], places[i] })
	s.mu.Unlock()

	n := min(req.Count, len(pool))
	picks := make([]Pick, n)
	for i := range n {
		place := model.UnspecifiedPlace
		if i < len(places) {
			place = places[i]
		}
		picks[i] = Pick{Candidate: pool[i], Place: place}
	}

	next := State{Day: today}
	if !reset && state.Day == today {
		next.Used = slices.Clone(state.Used)
	}
	for _, p := range picks {
		if !slices.Contains(next.Used, p.ID) {
			next.Used = append(next.Used, p.ID)
		}
	}

	return Round{
		Picks:        picks,
		Insufficient: n < req.Count,
		Reset:        reset,
		State:        next,
	}, nil
}

// filter keeps present candidates outside used and busy, once each, sorted
// by id so that ranking ties resolve the same way every time.
func filter(candidates []Candidate, used, busy map[int64]bool) []Candidate {
	seen := make(map[int64]bool, len(candidates))
	var pool []Candidate
	for _, c := range candidates {
		if !c.IsPresent || used[c.ID] || busy[c.ID] || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		pool = append(pool, c)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	return pool
}
