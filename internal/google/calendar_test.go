package google_test

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

	"golang.org/x/oauth2"

	"calnotes/internal/google"
	"calnotes/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

type rewriteTransport struct {
	Transport http.RoundTripper
	Host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.Host
	return t.Transport.RoundTrip(req)
}

const page1 = `{
  "items": [
    {
      "id": "standup_20240315T090000Z",
      "recurringEventId": "standup",
      "status": "confirmed",
      "summary": "Standup",
      "start": {"dateTime": "2024-03-15T10:00:00+01:00", "timeZone": "Europe/Paris"},
      "end": {"dateTime": "2024-03-15T10:30:00+01:00"},
      "organizer": {"email": "alice@x.com", "displayName": "Alice"},
      "attendees": [
        {"email": "alice@x.com", "displayName": "Alice", "organizer": true},
        {"email": "bob@x.com"}
      ]
    }
  ],
  "nextPageToken": "p2"
}`

const page2 = `{
  "items": [
    {
      "id": "holiday",
      "status": "cancelled",
      "summary": "Holiday",
      "start": {"date": "2024-03-15"},
      "end": {"date": "2024-03-16"}
    }
  ]
}`

const calendarList = `{
  "items": [
    {"id": "alice@x.com", "summary": "Alice", "primary": true},
    {"id": "team@group.calendar.google.com", "summary": "Team", "summaryOverride": "My team"}
  ]
}`

func newTestClient(t *testing.T) (*google.CalendarClient, *[]string) {
	t.Helper()
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path+"?"+r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/calendars/primary/events"):
			if r.URL.Query().Get("pageToken") == "p2" {
				_, _ = io.WriteString(w, page2)
				return
			}
			_, _ = io.WriteString(w, page1)
		case strings.HasSuffix(r.URL.Path, "/users/me/calendarList"):
			_, _ = io.WriteString(w, calendarList)
		default:
			http.Error(w, `{"error": {"code": 404, "message": "Not Found"}}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	httpClient := &http.Client{Transport: &rewriteTransport{Transport: http.DefaultTransport, Host: strings.TrimPrefix(srv.URL, "http://")}}
	client, err := google.NewClientFromHTTP(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), httpClient)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, &requests
}

func TestListEvents(t *testing.T) {
	client, requests := newTestClient(t)
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24*time.Hour - time.Millisecond)

	Convey("Given a calendar spread over two pages", t, func() {
		*requests = nil
		events, err := client.ListEvents(context.Background(), "primary", start, end)
		So(err, ShouldBeNil)

		Convey("Then every page is fetched with single events expanded", func() {
			So(*requests, ShouldHaveLength, 2)
			So((*requests)[0], ShouldContainSubstring, "singleEvents=true")
			So((*requests)[0], ShouldContainSubstring, "timeMin=2024-03-15T00%3A00%3A00Z")
			So(events, ShouldHaveLength, 2)
		})

		Convey("Then timed events keep the raw instant and their participants", func() {
			ev := events[0]
			So(ev.ID, ShouldEqual, "standup_20240315T090000Z")
			So(ev.RecurringEventID, ShouldEqual, "standup")
			So(ev.CalendarID, ShouldEqual, "primary")
			So(ev.Status, ShouldEqual, models.StatusConfirmed)
			So(ev.Start, ShouldResemble, &models.EventTime{DateTime: "2024-03-15T10:00:00+01:00", TimeZone: "Europe/Paris"})
			So(ev.Organizer.Email, ShouldEqual, "alice@x.com")
			So(ev.Attendees, ShouldResemble, []models.Participant{
				{Email: "alice@x.com", DisplayName: "Alice", Organizer: true},
				{Email: "bob@x.com"},
			})
		})

		Convey("Then all-day and cancelled events are passed through for the normalizer", func() {
			ev := events[1]
			So(ev.Status, ShouldEqual, models.StatusCancelled)
			So(ev.Start, ShouldResemble, &models.EventTime{Date: "2024-03-15"})
			So(ev.Organizer, ShouldBeNil)
		})
	})

	Convey("Given the API fails", t, func() {
		_, err := client.ListEvents(context.Background(), "broken", start, end)

		Convey("Then the error is surfaced", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to retrieve events")
		})
	})
}

func TestListCalendars(t *testing.T) {
	client, _ := newTestClient(t)

	Convey("Given an account with two calendars", t, func() {
		cals, err := client.ListCalendars(context.Background())
		So(err, ShouldBeNil)

		Convey("Then the user's override name wins over the summary", func() {
			So(cals, ShouldResemble, []models.Calendar{
				{ID: "alice@x.com", Name: "Alice", Primary: true},
				{ID: "team@group.calendar.google.com", Name: "My team"},
			})
		})
	})
}

func TestTokens(t *testing.T) {
	Convey("Given a token directory", t, func() {
		dir := t.TempDir()
		tok := &oauth2.Token{AccessToken: "dummy", TokenType: "Bearer", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
		So(google.SaveToken(google.TokenFile(dir, "work"), tok), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644), ShouldBeNil)

		Convey("Then saved tokens are private to the owner", func() {
			info, err := os.Stat(google.TokenFile(dir, "work"))
			So(err, ShouldBeNil)
			So(info.Mode().Perm(), ShouldEqual, os.FileMode(0o600))
		})

		Convey("Then accounts are discovered from token file names", func() {
			accounts, err := google.GetTokenAccounts(dir)
			So(err, ShouldBeNil)
			So(accounts, ShouldResemble, []string{"work"})
		})

		Convey("Then a client can be built for a known account", func() {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			_, err := google.NewClient(context.Background(), logger, "id", "secret", dir, "work")
			So(err, ShouldBeNil)
		})

		Convey("Then an unknown account asks for the auth command", func() {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			_, err := google.NewClient(context.Background(), logger, "id", "secret", dir, "home")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "run the 'auth' command")
		})
	})
}
