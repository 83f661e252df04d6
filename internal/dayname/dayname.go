// Package dayname maps source-language day tokens found in timetable text
// to canonical English weekday names.
package dayname

import (
	"strings"
	"time"
)

// Entry binds one source token to its canonical weekday.
type Entry struct {
	Token   string
	Weekday time.Weekday
}

// Dictionary is an ordered, immutable token → weekday lookup. Order matters:
// when a line contains more than one token, the earliest entry wins.
type Dictionary struct {
	entries []Entry
}

// French is the vocabulary the timetables were printed in.
var French = []Entry{
	{Token: "Dimanche", Weekday: time.Sunday},
	{Token: "Lundi", Weekday: time.Monday},
	{Token: "Mardi", Weekday: time.Tuesday},
	{Token: "Mercredi", Weekday: time.Wednesday},
	{Token: "Jeudi", Weekday: time.Thursday},
	{Token: "Vendredi", Weekday: time.Friday},
	{Token: "Samedi", Weekday: time.Saturday},
}

// New copies entries into a Dictionary. Entries with an empty token are skipped
// since an empty substring would match every line.
func New(entries []Entry) *Dictionary {
	d := &Dictionary{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		d.entries = append(d.entries, e)
	}
	return d
}

// Default returns the French dictionary.
func Default() *Dictionary {
	return New(French)
}

// Lookup returns the canonical name for an exact token.
func (d *Dictionary) Lookup(token string) (string, bool) {
	for _, e := range d.entries {
		if e.Token == token {
			return e.Weekday.String(), true
		}
	}
	return "", false
}

// Match reports the canonical weekday of the first token contained in line.
// Matching is a case-sensitive substring test.
func (d *Dictionary) Match(line string) (string, bool) {
	for _, e := range d.entries {
		if strings.Contains(line, e.Token) {
			return e.Weekday.String(), true
		}
	}
	return "", false
}

// Len is the number of usable entries.
func (d *Dictionary) Len() int { return len(d.entries) }

// Entries returns a copy of the dictionary contents.
func (d *Dictionary) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// ParseWeekday resolves a canonical English weekday name, ignoring case.
func ParseWeekday(name string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), name) {
			return wd, true
		}
	}
	return 0, false
}
