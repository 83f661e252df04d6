// Package schedule turns line-oriented OCR text of a weekly timetable into
// weekly time slots.
//
// The parser is a single left-to-right pass over non-empty lines. Each line
// is fed to Step together with the running State; three rules are tried in
// a fixed order and the first that applies decides the line:
//
//  1. day:   the line contains a dictionary token -> remember the weekday
//  2. time:  the line contains H:MM or HH:MM      -> remember the time
//  3. code:  the line contains AAA999             -> emit a slot at the
//     remembered day/time, then move the time forward by one slot
//
// Lines matching nothing are ignored. Parsing never fails.
package schedule

import (
	"regexp"
	"strconv"
	"time"

	"icalgen/internal/dayname"
	appLog "icalgen/internal/log"
	"icalgen/internal/model"
)

var (
	timePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	codePattern = regexp.MustCompile(`\b[A-Z]{3}\d{3}\b`)
	lineSplit   = regexp.MustCompile(`\r\n|\r|\n`)
)

// State is the parser memory between lines. The zero value is the start state.
//
// Time == 0 means "no time yet"; a timetable row at exactly midnight is
// therefore indistinguishable from a missing time and never emits a slot.
type State struct {
	Day  string
	Time time.Duration
}

// Parser holds the vocabulary and slot length. It is safe for concurrent use;
// every Parse call starts from a fresh State.
type Parser struct {
	dict     *dayname.Dictionary
	slotSize time.Duration
}

// NewParser returns a Parser. A nil dictionary selects the French default and
// a non-positive slot size selects model.SlotDuration.
func NewParser(dict *dayname.Dictionary, slotSize time.Duration) *Parser {
	if dict == nil {
		dict = dayname.Default()
	}
	if slotSize <= 0 {
		slotSize = model.SlotDuration
	}
	return &Parser{dict: dict, slotSize: slotSize}
}

// Parse uses the default French dictionary and 30-minute slots.
func Parse(text string) []model.WeeklySlot {
	return NewParser(nil, 0).Parse(text)
}

// Parse returns the slots recognized in text, in emission order.
func (p *Parser) Parse(text string) []model.WeeklySlot {
	slots := make([]model.WeeklySlot, 0)

	var st State
	lines := SplitLines(text)
	for _, line := range lines {
		var slot *model.WeeklySlot
		st, slot = p.Step(st, line)
		if slot != nil {
			slots = append(slots, *slot)
		}
	}

	appLog.Debug("schedule parse completed", "line_count", len(lines), "slot_count", len(slots))
	return slots
}

// Step applies one line to st and returns the next state plus the slot the
// line produced, if any. Step is pure.
func (p *Parser) Step(st State, line string) (State, *model.WeeklySlot) {
	if day, ok := p.dict.Match(line); ok {
		st.Day = day
		return st, nil
	}

	if t, ok := matchClock(line); ok {
		st.Time = t
		return st, nil
	}

	code := codePattern.FindString(line)
	if code == "" || st.Day == "" || st.Time == 0 {
		return st, nil
	}

	slot := &model.WeeklySlot{
		Day:   st.Day,
		Start: st.Time,
		End:   st.Time + p.slotSize,
		Code:  code,
	}
	st.Time += p.slotSize
	return st, slot
}

// SplitLines splits on \r\n, \r or \n and drops empty lines.
func SplitLines(text string) []string {
	parts := lineSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, l := range parts {
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// matchClock finds the first H:MM token and converts it to an offset from
// midnight. Tokens that are not a valid time of day (25:00, 8:75) do not count.
func matchClock(line string) (time.Duration, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h > 23 {
		return 0, false
	}
	mi, err := strconv.Atoi(m[2])
	if err != nil || mi > 59 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute, true
}
