package directory

import (
	"testing"
	"time"
)

func TestAvailableAt(t *testing.T) {
	t.Parallel()

	// Tuesday 2026-03-10.
	tueMorning := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	tueNight := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	satMorning := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	weekday := Person{Availability: []Window{{
		Days:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start: "09:00",
		End:   "17:00",
	}}}
	if !weekday.AvailableAt(tueMorning) {
		t.Error("expected available tuesday morning")
	}
	if weekday.AvailableAt(tueNight) {
		t.Error("expected unavailable tuesday night")
	}
	if weekday.AvailableAt(satMorning) {
		t.Error("expected unavailable saturday")
	}

	always := Person{}
	if !always.AvailableAt(tueNight) {
		t.Error("person without windows should always be available")
	}

	anyDay := Person{Availability: []Window{{Start: "08:00", End: "20:00"}}}
	if !anyDay.AvailableAt(satMorning) {
		t.Error("window without days should cover every day")
	}

	// Window end is exclusive.
	edge := Person{Availability: []Window{{Start: "09:00", End: "10:00"}}}
	if edge.AvailableAt(tueMorning) {
		t.Error("10:00 should be outside a 09:00-10:00 window")
	}
}

func TestHasSkill(t *testing.T) {
	t.Parallel()

	p := Person{Skills: []string{"medical", "mobility"}}
	if !p.HasSkill("medical") {
		t.Error("expected medical skill")
	}
	if p.HasSkill("cooking") {
		t.Error("unexpected cooking skill")
	}
}
