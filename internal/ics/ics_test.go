package ics_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"calnotes/internal/ics"
	"calnotes/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calnotes//test//EN
X-WR-CALNAME:Team
BEGIN:VEVENT
UID:standup
DTSTAMP:20240301T000000Z
DTSTART:20240315T090000Z
DTEND:20240315T093000Z
SUMMARY:Standup
LOCATION:Room 1
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20240317T090000Z
ORGANIZER;CN=Alice:mailto:alice@x.com
ATTENDEE;CN=Alice:mailto:alice@x.com
ATTENDEE;CN=Bob:MAILTO:bob@x.com
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTAMP:20240301T000000Z
RECURRENCE-ID:20240316T090000Z
DTSTART:20240316T100000Z
DTEND:20240316T103000Z
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:holiday
DTSTAMP:20240301T000000Z
DTSTART;VALUE=DATE:20240315
DTEND;VALUE=DATE:20240316
SUMMARY:Holiday
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
UID:later
DTSTAMP:20240301T000000Z
DTSTART:20240401T090000Z
DTEND:20240401T100000Z
SUMMARY:Out of range
END:VEVENT
END:VCALENDAR
`

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func useUTC(t *testing.T) {
	t.Helper()
	prev := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = prev })
}

var (
	rangeStart = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2024, 3, 18, 23, 59, 59, 0, time.UTC)
)

func TestEvents(t *testing.T) {
	useUTC(t)

	Convey("Given a feed with a recurring series, an override and an all-day event", t, func() {
		cal, err := ics.Parse(strings.NewReader(crlf(feed)))
		So(err, ShouldBeNil)

		events := ics.Events(cal, "team", rangeStart, rangeEnd)

		Convey("Then occurrences in range are returned sorted by start", func() {
			So(events, ShouldHaveLength, 4)
			So(events[0].ID, ShouldEqual, "holiday")
			So(events[1].Start.DateTime, ShouldEqual, "2024-03-15T09:00:00Z")
			So(events[2].Summary, ShouldEqual, "Standup (moved)")
			So(events[2].Start.DateTime, ShouldEqual, "2024-03-16T10:00:00Z")
			So(events[3].Start.DateTime, ShouldEqual, "2024-03-18T09:00:00Z")
		})

		Convey("Then every occurrence carries the calendar id", func() {
			for _, ev := range events {
				So(ev.CalendarID, ShouldEqual, "team")
			}
		})

		Convey("Then expanded instances share the series UID", func() {
			So(events[1].ID, ShouldEqual, "standup")
			So(events[1].RecurringEventID, ShouldEqual, "standup")
			So(events[3].ID, ShouldEqual, "standup")
		})

		Convey("Then all-day events carry dates only", func() {
			So(events[0].Start, ShouldResemble, &models.EventTime{Date: "2024-03-15"})
			So(events[0].End, ShouldResemble, &models.EventTime{Date: "2024-03-16"})
			So(events[0].Status, ShouldEqual, models.StatusCancelled)
		})

		Convey("Then attendees and organizer are mapped from mailto values", func() {
			ev := events[1]
			So(ev.Status, ShouldEqual, models.StatusConfirmed)
			So(ev.Location, ShouldEqual, "Room 1")
			So(ev.Organizer.Email, ShouldEqual, "alice@x.com")
			So(ev.Attendees, ShouldResemble, []models.Participant{
				{Email: "alice@x.com", DisplayName: "Alice", Organizer: true},
				{Email: "bob@x.com", DisplayName: "Bob"},
			})
		})
	})

	Convey("Given an endless series that started years ago", t, func() {
		body := "BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//calnotes//test//EN\n" +
			"BEGIN:VEVENT\nUID:daily\nDTSTAMP:20200101T000000Z\nDTSTART:20200101T080000Z\nDTEND:20200101T081500Z\n" +
			"SUMMARY:Check-in\nRRULE:FREQ=DAILY\nEND:VEVENT\nEND:VCALENDAR\n"
		cal, err := ics.Parse(strings.NewReader(crlf(body)))
		So(err, ShouldBeNil)

		Convey("Then only the occurrences inside the range are produced", func() {
			events := ics.Events(cal, "daily", rangeStart, rangeEnd)
			So(events, ShouldHaveLength, 4)
			So(events[0].Start.DateTime, ShouldEqual, "2024-03-15T08:00:00Z")
			So(events[3].Start.DateTime, ShouldEqual, "2024-03-18T08:00:00Z")
		})
	})

	Convey("Given an empty body", t, func() {
		_, err := ics.Parse(strings.NewReader(""))

		Convey("Then parsing fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSource(t *testing.T) {
	useUTC(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	Convey("Given a feed on disk", t, func() {
		path := filepath.Join(t.TempDir(), "team.ics")
		So(os.WriteFile(path, []byte(crlf(feed)), 0o644), ShouldBeNil)
		src := ics.NewSource(logger, nil, path)

		Convey("Then it lists itself as the only calendar", func() {
			cals, err := src.ListCalendars(ctx)
			So(err, ShouldBeNil)
			So(cals, ShouldResemble, []models.Calendar{{ID: path, Name: "Team", Primary: true}})
		})

		Convey("Then events default their calendar id to the location", func() {
			events, err := src.ListEvents(ctx, "", rangeStart, rangeEnd)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 4)
			So(events[0].CalendarID, ShouldEqual, path)
		})
	})

	Convey("Given a missing file", t, func() {
		src := ics.NewSource(logger, nil, filepath.Join(t.TempDir(), "nope.ics"))

		Convey("Then listing events fails", func() {
			_, err := src.ListEvents(ctx, "", rangeStart, rangeEnd)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a feed served over HTTP", t, func() {
		fail := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = io.WriteString(w, crlf(feed))
		}))
		defer srv.Close()
		src := ics.NewSource(logger, srv.Client(), srv.URL+"/team.ics")

		Convey("Then events are fetched and expanded", func() {
			events, err := src.ListEvents(ctx, "team", rangeStart, rangeEnd)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 4)
		})

		Convey("Then a server error is surfaced", func() {
			fail = true
			_, err := src.ListEvents(ctx, "team", rangeStart, rangeEnd)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "500")
		})
	})
}
