package model

import (
	"fmt"
	"time"
)

// SlotDuration is the fixed length of a single timetable slot.
const SlotDuration = 30 * time.Minute

// DefaultSummary is the title given to every generated event.
const DefaultSummary = "Weekly Event"

// WeeklySlot is one recurring weekly occurrence recognized in timetable text.
//
// Start and End are offsets from midnight. End is always Start plus the slot
// duration, so End > Start holds for every slot produced by the parser.
type WeeklySlot struct {
	// Day is a canonical English weekday name, e.g. "Monday".
	Day   string        `json:"day"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`

	// Code is the class code that triggered the slot (e.g. "MAT265").
	// It is kept for diagnostics only and never becomes the event title.
	Code string `json:"code,omitempty"`
}

// StartClock renders Start as H:MM.
func (s WeeklySlot) StartClock() string { return clock(s.Start) }

// EndClock renders End as H:MM.
func (s WeeklySlot) EndClock() string { return clock(s.End) }

// DatedEvent is a single concrete occurrence of a WeeklySlot on one date.
// Start/End are naive wall-clock values carried in time.UTC; only their date
// and time-of-day fields are meaningful.
type DatedEvent struct {
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AllDay  bool      `json:"all_day"`
}

func clock(d time.Duration) string {
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
