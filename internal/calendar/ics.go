package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmholt/eventscout/internal/storage"
)

// defaultDuration is assumed when an event has no end time of its own.
const defaultDuration = 2 * time.Hour

// GenerateICS renders stored events as an iCalendar document. Events without
// a start time are skipped; a calendar entry nobody can place on a day is
// useless.
func GenerateICS(events []storage.StoredEvent) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//eventscout//eventscout//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")

	now := time.Now().UTC()
	for _, evt := range events {
		if evt.StartsAt == nil {
			continue
		}
		writeEvent(&ics, evt, now)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, evt storage.StoredEvent, stamp time.Time) {
	ics.WriteString("BEGIN:VEVENT\r\n")

	fmt.Fprintf(ics, "UID:%s@eventscout\r\n", evt.ID)
	fmt.Fprintf(ics, "DTSTAMP:%s\r\n", formatICSTime(stamp))

	start := *evt.StartsAt
	fmt.Fprintf(ics, "DTSTART:%s\r\n", formatICSTime(start))
	fmt.Fprintf(ics, "DTEND:%s\r\n", formatICSTime(start.Add(defaultDuration)))

	title := evt.Title
	if evt.Emoji != "" {
		title = evt.Emoji + " " + title
	}
	fmt.Fprintf(ics, "SUMMARY:%s\r\n", escapeICS(title))

	description := evt.Description
	if evt.Cost != "" {
		if description != "" {
			description += "\n"
		}
		description += "Cost: " + evt.Cost
	}
	if description != "" {
		fmt.Fprintf(ics, "DESCRIPTION:%s\r\n", escapeICS(description))
	}

	if location := formatLocation(evt); location != "" {
		fmt.Fprintf(ics, "LOCATION:%s\r\n", escapeICS(location))
	}
	if evt.Latitude != nil && evt.Longitude != nil {
		fmt.Fprintf(ics, "GEO:%f;%f\r\n", *evt.Latitude, *evt.Longitude)
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func formatLocation(evt storage.StoredEvent) string {
	switch {
	case evt.Venue != "" && evt.Address != "":
		return evt.Venue + ", " + evt.Address
	case evt.Venue != "":
		return evt.Venue
	default:
		return evt.Address
	}
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// RFC 5545 text escaping
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
