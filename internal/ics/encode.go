package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "icalgen/internal/log"
	"icalgen/internal/model"
)

const (
	// DefaultProductID is written as PRODID.
	DefaultProductID = "-//icalgen//Weekly Schedule//EN"

	// floatingLayout is a local DATE-TIME without a zone suffix.
	floatingLayout = "20060102T150405"

	// propAllDayMarker is the de facto property calendar clients read for an
	// explicit all-day flag.
	propAllDayMarker = ical.ComponentProperty("X-MICROSOFT-CDO-ALLDAYEVENT")
)

// Encoder serializes dated events into a VCALENDAR document.
//
// Clock and NewUID only feed DTSTAMP/CREATED and UID; everything else in
// the output is a function of the input events.
type Encoder struct {
	ProductID string
	Clock     func() time.Time
	NewUID    func() string
}

// NewEncoder returns an Encoder using the wall clock and random UUIDs.
func NewEncoder() *Encoder {
	return &Encoder{
		ProductID: DefaultProductID,
		Clock:     time.Now,
		NewUID:    newUID,
	}
}

// Encode is NewEncoder().Encode.
func Encode(events []model.DatedEvent) string {
	return NewEncoder().Encode(events)
}

// Encode builds one VEVENT per event. DTSTART/DTEND are floating local
// date-times truncated to the minute; each event gets its own UID.
func (e *Encoder) Encode(events []model.DatedEvent) string {
	return e.Calendar(events).Serialize()
}

// Calendar builds the calendar object without serializing it.
func (e *Encoder) Calendar(events []model.DatedEvent) *ical.Calendar {
	clock := e.Clock
	if clock == nil {
		clock = time.Now
	}
	nextUID := e.NewUID
	if nextUID == nil {
		nextUID = newUID
	}
	productID := e.ProductID
	if productID == "" {
		productID = DefaultProductID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	stamp := clock().UTC()
	for _, ev := range events {
		vevent := cal.AddEvent(nextUID())
		vevent.SetDtStampTime(stamp)
		vevent.SetCreatedTime(stamp)
		vevent.SetProperty(ical.ComponentPropertyDtStart, formatFloating(ev.Start), ical.WithValue(string(ical.ValueDataTypeDateTime)))
		vevent.SetProperty(ical.ComponentPropertyDtEnd, formatFloating(ev.End), ical.WithValue(string(ical.ValueDataTypeDateTime)))
		vevent.SetSummary(ev.Summary)
		vevent.SetProperty(propAllDayMarker, "FALSE")
	}

	appLog.Debug("ics encode completed", "event_count", len(events))
	return cal
}

// formatFloating drops seconds and the zone: only wall-clock fields remain.
func formatFloating(t time.Time) string {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC).Format(floatingLayout)
}

func newUID() string {
	return uuid.NewString() + "@icalgen"
}
