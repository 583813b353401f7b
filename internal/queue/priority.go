package queue

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Score returns the item's priority at the given instant. Higher sorts
// first. The severity band is primary: adjacent bands sit 250 apart while
// the boosters sum to at most 235 (escalations count toward the boost up
// to maxEscalationBoost), so an item never outranks one of higher
// severity no matter its due date, risk, assignment state, or escalation
// history. Within a band the boosters decide.
func (it *Item) Score(now time.Time) float64 {
	score := 1000 * it.Severity.Weight()
	if it.Overdue(now) {
		score += 50
	} else if it.DueToday(now) {
		score += 25
	}
	score += 20 * it.SubjectRisk.weight()
	if it.AssignedTo == "" {
		score += 15
	}
	score += 10 * math.Min(float64(it.EscalationCount), maxEscalationBoost)
	return score
}

// maxEscalationBoost caps how many escalations contribute to the score.
// 15 keeps the worst-case boost (50+20+15+150 = 235) inside the band gap.
const maxEscalationBoost = 15

// Overdue reports whether the item has a due time in the past.
func (it *Item) Overdue(now time.Time) bool {
	return !it.DueAt.IsZero() && it.DueAt.Before(now)
}

// DueToday reports whether the item is due later today, local to now.
func (it *Item) DueToday(now time.Time) bool {
	if it.DueAt.IsZero() || it.DueAt.Before(now) {
		return false
	}
	y1, m1, d1 := it.DueAt.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SortByPriority orders items highest score first. Ties break on earlier
// DueAt (zero sorts last), then item id for determinism.
func SortByPriority(items []Item, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].Score(now), items[j].Score(now)
		if si != sj {
			return si > sj
		}
		di, dj := items[i].DueAt, items[j].DueAt
		switch {
		case di.IsZero() && !dj.IsZero():
			return false
		case !di.IsZero() && dj.IsZero():
			return true
		case !di.Equal(dj):
			return di.Before(dj)
		}
		return items[i].ID < items[j].ID
	})
}

// Filter selects a queue view. Zero value matches everything. Set fields
// compose with AND.
type Filter struct {
	SubjectID  string
	AssignedTo string
	Statuses   []Status
	Kinds      []Kind
	Urgent     bool // severity == urgent
	DueToday   bool // overdue or due later today
	Medication bool // medication kind or category
	Cognitive  bool // category cognitive
	Safety     bool // category safety
}

// Matches reports whether it passes every set predicate.
func (f Filter) Matches(it *Item, now time.Time) bool {
	if f.SubjectID != "" && it.SubjectID != f.SubjectID {
		return false
	}
	if f.AssignedTo != "" && it.AssignedTo != f.AssignedTo {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, it.Status) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, it.Kind) {
		return false
	}
	if f.Urgent && it.Severity != SeverityUrgent {
		return false
	}
	if f.DueToday && !it.Overdue(now) && !it.DueToday(now) {
		return false
	}
	if f.Medication && it.Kind != KindMedication && !categoryIs(it, "medication") {
		return false
	}
	if f.Cognitive && !categoryIs(it, "cognitive") {
		return false
	}
	if f.Safety && !categoryIs(it, "safety") {
		return false
	}
	return true
}

func categoryIs(it *Item, want string) bool {
	return strings.EqualFold(it.Category, want)
}

func containsStatus(ss []Status, s Status) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func containsKind(ks []Kind, k Kind) bool {
	for _, v := range ks {
		if v == k {
			return true
		}
	}
	return false
}
