package dayname

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLookup(t *testing.T) {
	d := Default()
	assert.Equal(t, 7, d.Len())

	name, ok := d.Lookup("Lundi")
	assert.True(t, ok)
	assert.Equal(t, "Monday", name)

	name, ok = d.Lookup("Dimanche")
	assert.True(t, ok)
	assert.Equal(t, "Sunday", name)

	_, ok = d.Lookup("lundi")
	assert.False(t, ok, "lookup is case-sensitive")
}

func TestMatchIsSubstring(t *testing.T) {
	d := Default()

	name, ok := d.Match("  Mercredi 12 sept. ")
	assert.True(t, ok)
	assert.Equal(t, "Wednesday", name)

	_, ok = d.Match("MERCREDI")
	assert.False(t, ok)

	_, ok = d.Match("8:00")
	assert.False(t, ok)
}

func TestMatchFirstEntryWins(t *testing.T) {
	d := New([]Entry{
		{Token: "Mon", Weekday: time.Monday},
		{Token: "Monday", Weekday: time.Tuesday},
	})
	name, ok := d.Match("Monday")
	assert.True(t, ok)
	assert.Equal(t, "Monday", name)
}

func TestNewSkipsEmptyTokens(t *testing.T) {
	d := New([]Entry{{Token: "", Weekday: time.Friday}, {Token: "Fri", Weekday: time.Friday}})
	assert.Equal(t, 1, d.Len())

	_, ok := d.Match("anything at all")
	assert.False(t, ok)
}

func TestParseWeekday(t *testing.T) {
	wd, ok := ParseWeekday("monday")
	assert.True(t, ok)
	assert.Equal(t, time.Monday, wd)

	wd, ok = ParseWeekday("SATURDAY")
	assert.True(t, ok)
	assert.Equal(t, time.Saturday, wd)

	_, ok = ParseWeekday(" Monday")
	assert.False(t, ok)

	_, ok = ParseWeekday("Lundi")
	assert.False(t, ok)
}
