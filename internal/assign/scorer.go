// Package assign ranks care circle members for queue items and drives
// timer-based escalation of unclaimed urgent work.
package assign

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/linnemanlabs/careops/internal/directory"
	"github.com/linnemanlabs/careops/internal/queue"
)

// ErrNoEligibleAssignee is returned when no active candidate can take an
// item and the subject has no primary caregiver to fall back on.
var ErrNoEligibleAssignee = errors.New("assign: no eligible assignee")

// maxProximityMinutes caps the travel time considered in scoring; anyone
// farther away scores zero on proximity.
const maxProximityMinutes = 120

// Weights are the relative importance of each scoring term. They should
// sum to 1 but are not required to.
type Weights struct {
	Proximity    float64
	SkillMatch   float64
	Availability float64
	Relationship float64
	Performance  float64
}

// DefaultWeights returns the standard term weighting.
func DefaultWeights() Weights {
	return Weights{
		Proximity:    0.30,
		SkillMatch:   0.25,
		Availability: 0.25,
		Relationship: 0.15,
		Performance:  0.05,
	}
}

// Candidate is one scored care circle member.
type Candidate struct {
	Person directory.Person `json:"person"`
	Score  float64          `json:"score"`

	// Per-term values before weighting, each in [0,1].
	Proximity    float64 `json:"proximity"`
	SkillMatch   float64 `json:"skill_match"`
	Availability float64 `json:"availability"`
	Relationship float64 `json:"relationship"`
	Performance  float64 `json:"performance"`
}

// Recommendation is the result of ranking candidates for an item.
type Recommendation struct {
	Best      *Candidate  `json:"best"`
	Ranked    []Candidate `json:"ranked"`
	Fallback  bool        `json:"fallback"`
	Reasoning string      `json:"reasoning"`
}

// Scorer ranks candidates for queue items.
type Scorer struct {
	weights  Weights
	minScore float64
}

// NewScorer creates a scorer. Zero weights select DefaultWeights; minScore
// is the minimum viable score below which the recommendation falls back to
// the primary caregiver.
func NewScorer(w Weights, minScore float64) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Scorer{weights: w, minScore: minScore}
}

// Recommend scores every active candidate for the item and returns the top
// pick, the full ranked list and a reasoning trace. If nobody clears the
// minimum viable score, the subject's primary caregiver is returned with
// Fallback set.
func (s *Scorer) Recommend(item *queue.Item, people []directory.Person, now time.Time) (*Recommendation, error) {
	ranked := make([]Candidate, 0, len(people))
	for _, p := range people {
		if !p.Active || p.Role == directory.RoleAdmin {
			continue
		}
		ranked = append(ranked, s.score(item, p, now))
	}
	if len(ranked) == 0 {
		return nil, ErrNoEligibleAssignee
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Person.ID < ranked[j].Person.ID
	})

	best := &ranked[0]
	rec := &Recommendation{Best: best, Ranked: ranked}
	if best.Score < s.minScore {
		primary := primaryCandidate(ranked)
		if primary == nil {
			return nil, ErrNoEligibleAssignee
		}
		rec.Best = primary
		rec.Fallback = true
	}
	rec.Reasoning = s.explain(rec)
	return rec, nil
}

func (s *Scorer) score(item *queue.Item, p directory.Person, now time.Time) Candidate {
	c := Candidate{Person: p}

	c.Proximity = 1 - math.Min(float64(p.ProximityMinutes), maxProximityMinutes)/maxProximityMinutes
	c.SkillMatch = skillMatch(item, &p)
	if p.AvailableAt(now) {
		c.Availability = 1
	}
	if p.RelationshipPriority > 0 {
		c.Relationship = 1 / float64(p.RelationshipPriority)
	}
	c.Performance = math.Max(0, math.Min(1, p.PerformanceScore))

	c.Score = s.weights.Proximity*c.Proximity +
		s.weights.SkillMatch*c.SkillMatch +
		s.weights.Availability*c.Availability +
		s.weights.Relationship*c.Relationship +
		s.weights.Performance*c.Performance
	return c
}

// requiredSkills maps an item's kind and category to the skills its
// handler should have. An empty result means any member qualifies.
func requiredSkills(item *queue.Item) []string {
	if item.Kind == queue.KindMedication {
		return []string{"medication"}
	}
	switch item.Category {
	case "medication":
		return []string{"medication"}
	case "fall":
		return []string{"mobility"}
	case "injury", "chest_pain":
		return []string{"medical"}
	case "confusion":
		return []string{"cognitive"}
	case "safety":
		return []string{"safety"}
	}
	return nil
}

func skillMatch(item *queue.Item, p *directory.Person) float64 {
	required := requiredSkills(item)
	if len(required) == 0 {
		return 1
	}
	matched := 0
	for _, skill := range required {
		if p.HasSkill(skill) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func primaryCandidate(ranked []Candidate) *Candidate {
	for i := range ranked {
		if ranked[i].Person.RelationshipPriority == 1 {
			return &ranked[i]
		}
	}
	return nil
}

// explain produces a one-line human-readable trace of why the best
// candidate won, naming the terms in order of weighted contribution.
func (s *Scorer) explain(rec *Recommendation) string {
	c := rec.Best
	type term struct {
		name  string
		value float64
	}
	terms := []term{
		{"proximity", s.weights.Proximity * c.Proximity},
		{"skill match", s.weights.SkillMatch * c.SkillMatch},
		{"availability", s.weights.Availability * c.Availability},
		{"relationship", s.weights.Relationship * c.Relationship},
		{"performance", s.weights.Performance * c.Performance},
	}
	sort.SliceStable(terms, func(i, j int) bool { return terms[i].value > terms[j].value })

	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if t.value <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.2f", t.name, t.value))
	}
	trace := fmt.Sprintf("%s scores %.2f (%s)", c.Person.Name, c.Score, strings.Join(parts, ", "))
	if rec.Fallback {
		trace += "; no candidate cleared the minimum viable score, falling back to the primary caregiver"
	}
	return trace
}
