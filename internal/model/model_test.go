package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeeklySlotClock(t *testing.T) {
	s := WeeklySlot{Day: "Monday", Start: 8 * time.Hour, End: 8*time.Hour + SlotDuration}
	assert.Equal(t, "8:00", s.StartClock())
	assert.Equal(t, "8:30", s.EndClock())

	late := WeeklySlot{Start: 22*time.Hour + 30*time.Minute, End: 23 * time.Hour}
	assert.Equal(t, "22:30", late.StartClock())
	assert.Equal(t, "23:00", late.EndClock())
}
