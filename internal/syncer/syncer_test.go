package syncer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"calnotes/internal/metrics"
	"calnotes/internal/models"
	"calnotes/internal/notes"
	"calnotes/internal/selection"
	"calnotes/internal/storage"
	"calnotes/internal/syncer"
	"calnotes/internal/timerange"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeSource struct {
	calendars []models.Calendar
	events    map[string][]models.RawEvent
	fail      error
	asked     []string
}

func (f *fakeSource) ListCalendars(context.Context) ([]models.Calendar, error) {
	return f.calendars, nil
}

func (f *fakeSource) ListEvents(_ context.Context, calendarID string, _, _ time.Time) ([]models.RawEvent, error) {
	f.asked = append(f.asked, calendarID)
	if f.fail != nil {
		return nil, f.fail
	}
	return f.events[calendarID], nil
}

func raw(id, summary, start string) models.RawEvent {
	return models.RawEvent{
		ID:      id,
		Summary: summary,
		Status:  models.StatusConfirmed,
		Start:   &models.EventTime{DateTime: start},
		End:     &models.EventTime{DateTime: start},
	}
}

func TestSync(t *testing.T) {
	prev := time.Local
	time.Local = time.UTC
	t.Cleanup(func() { time.Local = prev })

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	day := timerange.Day(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	Convey("Given a vault with a template and a calendar source", t, func() {
		root := t.TempDir()
		So(os.MkdirAll(filepath.Join(root, "Templates"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "Templates", "meeting.md"), []byte("# {{title}}\n"), 0o644), ShouldBeNil)
		store, err := storage.NewFS(root)
		So(err, ShouldBeNil)

		cancelled := raw("gone", "Cancelled", "2024-03-15T08:00:00Z")
		cancelled.Status = models.StatusCancelled
		src := &fakeSource{
			calendars: []models.Calendar{{ID: "primary", Primary: true}, {ID: "other"}},
			events: map[string][]models.RawEvent{
				"primary": {raw("a", "Standup", "2024-03-15T09:00:00Z"), cancelled, raw("b", "Review", "2024-03-15T14:00:00Z")},
				"team":    {raw("c", "Retro", "2024-03-15T16:00:00Z")},
			},
		}
		m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
		s := syncer.NewSyncer(logger, store, m, src)

		req := syncer.Request{
			Range:        day,
			Folder:       "Meetings",
			TemplatePath: "Templates/meeting.md",
			Policy:       notes.PolicySkip,
			Selection:    selection.All(),
		}

		Convey("When no calendars are named", func() {
			res, err := s.Sync(ctx, req)

			Convey("Then the primary calendar is used and cancelled events are dropped", func() {
				So(err, ShouldBeNil)
				So(src.asked, ShouldResemble, []string{"primary"})
				So(res.Created, ShouldResemble, []string{"2024-03-15 - Standup.md", "2024-03-15 - Review.md"})
			})

			Convey("Then the notes are on disk with their identity", func() {
				data, err := os.ReadFile(filepath.Join(root, "Meetings", "2024-03-15 - Standup.md"))
				So(err, ShouldBeNil)
				So(string(data), ShouldStartWith, "---\ncalendarEventId: a\ncalendarEventStart: 2024-03-15T09:00:00Z\n---\n")
				So(string(data), ShouldEndWith, "# Standup\n")
			})

			Convey("Then a second run skips everything", func() {
				res, err := s.Sync(ctx, req)
				So(err, ShouldBeNil)
				So(res.Created, ShouldBeEmpty)
				So(res.Skipped, ShouldHaveLength, 2)
				So(res.Skipped[0].Reason, ShouldEqual, notes.ReasonAlreadyExists)
			})

			Convey("Then metrics are recorded", func() {
				n, err := testutil.GatherAndCount(m.Registry(), "calnotes_notes_total", "calnotes_events_fetched_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When calendars are named", func() {
			req.Calendars = []string{"primary", "team"}
			res, err := s.Sync(ctx, req)

			Convey("Then each one is read in order", func() {
				So(err, ShouldBeNil)
				So(src.asked, ShouldResemble, []string{"primary", "team"})
				So(res.Created, ShouldHaveLength, 3)
			})
		})

		Convey("When a selection narrows the events", func() {
			req.Selection = selection.Of("b")
			res, err := s.Sync(ctx, req)

			Convey("Then only the selected notes are written", func() {
				So(err, ShouldBeNil)
				So(res.Created, ShouldResemble, []string{"2024-03-15 - Review.md"})
			})
		})

		Convey("When the choice is made after fetching", func() {
			var offered []models.Event
			req.Choose = func(events []models.Event) (selection.Selection, error) {
				offered = events
				return selection.Of(selection.Key(events[0])), nil
			}
			res, err := s.Sync(ctx, req)

			Convey("Then the chooser sees active events and its choice wins", func() {
				So(err, ShouldBeNil)
				So(offered, ShouldHaveLength, 2)
				So(res.Created, ShouldResemble, []string{"2024-03-15 - Standup.md"})
			})
		})

		Convey("When nothing is selected", func() {
			req.Selection = selection.Of("nope")
			res, err := s.Sync(ctx, req)

			Convey("Then nothing is written", func() {
				So(err, ShouldBeNil)
				So(res.Created, ShouldBeEmpty)
				_, statErr := os.Stat(filepath.Join(root, "Meetings"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the template is missing", func() {
			req.TemplatePath = "Templates/missing.md"
			_, err := s.Sync(ctx, req)

			Convey("Then the run fails before fetching", func() {
				So(errors.Is(err, notes.ErrTemplateNotFound), ShouldBeTrue)
				So(src.asked, ShouldBeEmpty)
			})
		})

		Convey("When no template is configured", func() {
			req.TemplatePath = ""
			_, err := s.Sync(ctx, req)

			Convey("Then the run fails", func() {
				So(errors.Is(err, notes.ErrNoTemplate), ShouldBeTrue)
			})
		})

		Convey("When the source fails", func() {
			src.fail = errors.New("401 unauthorized")
			_, err := s.Sync(ctx, req)

			Convey("Then the error is surfaced and nothing is written", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "401 unauthorized")
				_, statErr := os.Stat(filepath.Join(root, "Meetings"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}
