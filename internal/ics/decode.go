package ics

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "icalgen/internal/log"
	"icalgen/internal/model"
)

// DecodedEvent is a VEVENT read back from a document.
type DecodedEvent struct {
	model.DatedEvent

	UID   string
	Stamp time.Time
}

// Decode reads a VCALENDAR and returns its events. Floating and date-only
// values are placed in loc (time.Local if nil); UTC values are converted to
// loc.
//
// Events without a parseable DTSTART are logged and skipped.
func Decode(r io.Reader, loc *time.Location) ([]DecodedEvent, error) {
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics decode failed", err)
		return nil, err
	}

	events := make([]DecodedEvent, 0)
	for _, comp := range cal.Events() {
		ev, derr := decodeVEvent(comp, loc)
		if derr != nil {
			// Log and skip this event, but keep decoding others.
			appLog.Error("ics vevent decode failed", derr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics decode completed", "event_count", len(events))
	return events, nil
}

// DecodeString is Decode over an in-memory document.
func DecodeString(doc string, loc *time.Location) ([]DecodedEvent, error) {
	if doc == "" {
		return nil, errors.New("empty ICS document")
	}
	return Decode(bytes.NewReader([]byte(doc)), loc)
}

func decodeVEvent(ve *ical.VEvent, loc *time.Location) (DecodedEvent, error) {
	var out DecodedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtstamp); p != nil {
		if t, err := parseICSTime(p.Value, loc); err == nil {
			out.Stamp = t
		}
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseICSTime(startProp.Value, loc)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.AllDay = isDateValue(startProp)

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := parseICSTime(endProp.Value, loc)
		if err != nil {
			return out, err
		}
		out.End = end
	} else {
		out.End = out.Start
	}

	if p := ve.GetProperty(propAllDayMarker); p != nil {
		out.AllDay = strings.EqualFold(strings.TrimSpace(p.Value), "TRUE")
	}

	return out, nil
}

// isDateValue reports VALUE=DATE or a YYYYMMDD-only value.
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], string(ical.ValueDataTypeDate)) {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses the basic DATE / DATE-TIME / UTC DATE-TIME forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation(floatingLayout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
