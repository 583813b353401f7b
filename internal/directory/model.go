// Package directory holds the people around a care subject: family,
// professionals and community helpers, with the attributes assignment
// scoring reads (skills, proximity, availability, relationship tier).
package directory

import (
	"errors"
	"time"
)

// Role classifies a person's relationship to the care circle.
type Role string

const (
	RoleFamily       Role = "family"
	RoleProfessional Role = "professional"
	RoleCommunity    Role = "community"
	RoleAdmin        Role = "admin"
)

// ErrNotFound is returned for lookups of unknown person ids.
var ErrNotFound = errors.New("directory: person not found")

// Window is a recurring availability slot. Start and End are wall-clock
// times in "15:04" form, interpreted in the subject's timezone.
type Window struct {
	Days  []time.Weekday `json:"days"`
	Start string         `json:"start"`
	End   string         `json:"end"`
}

// Person is a member of a subject's care circle.
type Person struct {
	ID                   string   `json:"id"`
	SubjectID            string   `json:"subject_id"`
	Name                 string   `json:"name"`
	Role                 Role     `json:"role"`
	Skills               []string `json:"skills,omitempty"`
	ProximityMinutes     int      `json:"proximity_minutes"`
	Availability         []Window `json:"availability,omitempty"`
	RelationshipPriority int      `json:"relationship_priority"` // 1 = primary caregiver
	PerformanceScore     float64  `json:"performance_score"`     // completion rate in [0,1]
	Contact              string   `json:"contact,omitempty"`     // notification endpoint
	Active               bool     `json:"active"`
	CreatedAt            time.Time `json:"created_at"`
}

// HasSkill reports whether the person lists the given skill.
func (p *Person) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// AvailableAt reports whether t falls inside one of the person's windows.
// No windows means always available.
func (p *Person) AvailableAt(t time.Time) bool {
	if len(p.Availability) == 0 {
		return true
	}
	day := t.Weekday()
	clock := t.Format("15:04")
	for _, w := range p.Availability {
		if !containsDay(w.Days, day) {
			continue
		}
		if w.Start <= clock && clock < w.End {
			return true
		}
	}
	return false
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}
