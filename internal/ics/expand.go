package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"icalgen/internal/dayname"
	appLog "icalgen/internal/log"
	"icalgen/internal/model"
)

// rruleDays is indexed by time.Weekday.
var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ExpandConfig controls how weekly slots are turned into dated events.
type ExpandConfig struct {
	// Location is the zone the calendar dates of RangeStart and RangeEnd are
	// read in. If nil, each bound's own zone is used. Events themselves are
	// naive wall-clock values carried in time.UTC.
	Location *time.Location

	// RangeStart / RangeEnd are inclusive calendar dates. Their time-of-day
	// is ignored.
	RangeStart time.Time
	RangeEnd   time.Time

	// Summary is the title of every event. If empty, model.DefaultSummary.
	Summary string

	// MaxOccurrencesPerSlot caps the events produced for a single slot. Zero
	// means no cap.
	MaxOccurrencesPerSlot int
}

// ExpandResult wraps the expanded events and the indexes of slots that were
// cut short by MaxOccurrencesPerSlot.
type ExpandResult struct {
	Events []model.DatedEvent
	// TruncatedSlots lists indexes into the input slots.
	TruncatedSlots []int
	// UnknownDays lists slot day names that are not English weekdays.
	UnknownDays []string
}

// Expand places every slot on each matching date of [start, end]. Events are
// grouped by slot, then by ascending date. An inverted range yields nothing.
func Expand(slots []model.WeeklySlot, start, end time.Time) []model.DatedEvent {
	return ExpandOccurrences(slots, ExpandConfig{RangeStart: start, RangeEnd: end}).Events
}

// ExpandOccurrences is Expand with explicit configuration.
//
// For each slot a WEEKLY rule on the slot's weekday is iterated from
// RangeStart to RangeEnd (both inclusive, at midnight). Each matching date d
// becomes one event starting at d + slot.Start and ending at d + slot.End.
// Weekday names are matched case-insensitively. An offset of 24:00 or more
// lands on the following calendar date.
func ExpandOccurrences(slots []model.WeeklySlot, cfg ExpandConfig) ExpandResult {
	result := ExpandResult{Events: make([]model.DatedEvent, 0)}

	if cfg.Summary == "" {
		cfg.Summary = model.DefaultSummary
	}

	first := dateOnly(cfg.RangeStart, cfg.Location)
	last := dateOnly(cfg.RangeEnd, cfg.Location)
	if last.Before(first) {
		appLog.Debug("expand: empty range", "range_start", first.Format(time.DateOnly), "range_end", last.Format(time.DateOnly))
		return result
	}

	for i, slot := range slots {
		wd, ok := dayname.ParseWeekday(slot.Day)
		if !ok {
			result.UnknownDays = append(result.UnknownDays, slot.Day)
			appLog.Warn("expand: slot has unknown weekday", "index", i, "day", slot.Day)
			continue
		}

		events, hitCap, err := expandSlot(slot, wd, first, last, cfg)
		if err != nil {
			appLog.Error("expand: failed to build weekly rule", err, "index", i, "day", slot.Day)
			continue
		}
		if hitCap {
			result.TruncatedSlots = append(result.TruncatedSlots, i)
			appLog.Error("expand: truncated occurrences for slot due to cap",
				errors.New("max occurrences reached"),
				"index", i,
				"cap", cfg.MaxOccurrencesPerSlot,
			)
		}
		result.Events = append(result.Events, events...)
	}

	return result
}

func expandSlot(slot model.WeeklySlot, wd time.Weekday, first, last time.Time, cfg ExpandConfig) ([]model.DatedEvent, bool, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   first,
		Until:     last,
		Byweekday: []rrule.Weekday{rruleDays[wd]},
	})
	if err != nil {
		return nil, false, err
	}

	out := make([]model.DatedEvent, 0)
	next := r.Iterator()
	for {
		d, ok := next()
		if !ok {
			return out, false, nil
		}
		if cfg.MaxOccurrencesPerSlot > 0 && len(out) == cfg.MaxOccurrencesPerSlot {
			return out, true, nil
		}
		out = append(out, model.DatedEvent{
			Summary: cfg.Summary,
			Start:   atOffset(d, slot.Start),
			End:     atOffset(d, slot.End),
			AllDay:  false,
		})
	}
}

// dateOnly reads the calendar date of t in loc and returns it at midnight
// UTC.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// atOffset adds a time-of-day offset as wall-clock minutes. day is in UTC,
// which has no DST gaps, so End - Start always equals the slot length.
func atOffset(day time.Time, off time.Duration) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, int(off/time.Minute), 0, 0, time.UTC)
}
