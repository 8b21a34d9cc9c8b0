package rotation

import (
	"sort"
	"time"
)

// Assignment is one approved assignment from the current week's log.
type Assignment struct {
	MemberID   int64
	AssignedAt time.Time
}

// Stats summarizes a week of assignments per member.
type Stats struct {
	Count             map[int64]int
	LastAssignedAt    map[int64]time.Time
	AssignedYesterday map[int64]bool
}

// BuildStats counts each member's assignments, their latest assignment time
// and whether they were assigned on the day before now.
func BuildStats(entries []Assignment, now time.Time) *Stats {
	st := &Stats{
		Count:             make(map[int64]int),
		LastAssignedAt:    make(map[int64]time.Time),
		AssignedYesterday: make(map[int64]bool),
	}
	yesterday := now.AddDate(0, 0, -1).Format(time.DateOnly)

	for _, e := range entries {
		st.Count[e.MemberID]++
		if e.AssignedAt.After(st.LastAssignedAt[e.MemberID]) {
			st.LastAssignedAt[e.MemberID] = e.AssignedAt
		}
		if e.AssignedAt.In(now.Location()).Format(time.DateOnly) == yesterday {
			st.AssignedYesterday[e.MemberID] = true
		}
	}
	return st
}

// rank orders pool for fairness: fewest assignments first, then members not
// assigned yesterday, then the longest since their last assignment (never
// assigned first). Remaining ties keep the incoming order.
func (st *Stats) rank(pool []Candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i].ID, pool[j].ID
		if st.Count[a] != st.Count[b] {
			return st.Count[a] < st.Count[b]
		}
		if st.AssignedYesterday[a] != st.AssignedYesterday[b] {
			return !st.AssignedYesterday[a]
		}
		return st.LastAssignedAt[a].Before(st.LastAssignedAt[b])
	})
}

// WeekStart returns the Monday of t's ISO week as YYYY-MM-DD.
func WeekStart(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format(time.DateOnly)
}
