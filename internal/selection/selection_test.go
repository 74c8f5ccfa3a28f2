package selection_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"calnotes/internal/models"
	"calnotes/internal/selection"

	. "github.com/smartystreets/goconvey/convey"
)

var events = []models.Event{
	{ID: "a", Title: "Standup", Date: "2024-03-15", StartTime: "09:00", StartISO: "2024-03-15T09:00:00Z"},
	{ID: "b", Title: "Holiday", Date: "2024-03-15", AllDay: true, StartISO: "2024-03-15"},
	{ID: "a", Title: "Standup", Date: "2024-03-16", StartTime: "09:00", StartISO: "2024-03-16T09:00:00Z"},
	{ID: "c", Title: "Review", Date: "2024-03-16", StartTime: "14:00", StartISO: "2024-03-16T14:00:00Z"},
}

func ids(evs []models.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID+"|"+ev.StartISO)
	}
	return out
}

func TestSelection(t *testing.T) {
	Convey("Given the three kinds of selection", t, func() {
		Convey("All keeps everything", func() {
			So(selection.All().Apply(events), ShouldHaveLength, 4)
			So(selection.All().IsAll(), ShouldBeTrue)
		})

		Convey("The zero value keeps nothing", func() {
			So(selection.Selection{}.Apply(events), ShouldBeEmpty)
		})

		Convey("An event ID selects every instance of a series", func() {
			got := selection.Of("a").Apply(events)
			So(ids(got), ShouldResemble, []string{"a|2024-03-15T09:00:00Z", "a|2024-03-16T09:00:00Z"})
		})

		Convey("An occurrence key selects one instance", func() {
			got := selection.Of(selection.Key(events[2])).Apply(events)
			So(ids(got), ShouldResemble, []string{"a|2024-03-16T09:00:00Z"})
		})
	})

	Convey("Given an existing selection", t, func() {
		sel := selection.Of("c")

		Convey("Applying it does not alter the input", func() {
			in := append([]models.Event(nil), events...)
			_ = sel.Apply(in)
			So(in, ShouldResemble, events)
			So(sel.Len(), ShouldEqual, 1)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given user input", t, func() {
		Convey("Empty and 'all' select everything", func() {
			for _, in := range []string{"", "  ", "all", "ALL"} {
				sel, err := selection.Parse(in, events)
				So(err, ShouldBeNil)
				So(sel.IsAll(), ShouldBeTrue)
			}
		})

		Convey("Numbers and ranges pick single occurrences", func() {
			sel, err := selection.Parse("1, 3-4", events)
			So(err, ShouldBeNil)
			So(ids(sel.Apply(events)), ShouldResemble, []string{
				"a|2024-03-15T09:00:00Z",
				"a|2024-03-16T09:00:00Z",
				"c|2024-03-16T14:00:00Z",
			})
		})

		Convey("Out of range and malformed input is rejected", func() {
			for _, in := range []string{"0", "5", "2-9", "3-1", "x", "1-y", ","} {
				_, err := selection.Parse(in, events)
				So(errors.Is(err, selection.ErrInvalidChoice), ShouldBeTrue)
			}
		})
	})
}

func TestPrompt(t *testing.T) {
	Convey("Given an interactive session", t, func() {
		var out bytes.Buffer

		Convey("The events are listed and an invalid answer is asked again", func() {
			sel, err := selection.Prompt(strings.NewReader("9\n2\n"), &out, events)
			So(err, ShouldBeNil)
			So(ids(sel.Apply(events)), ShouldResemble, []string{"b|2024-03-15"})
			So(out.String(), ShouldContainSubstring, "  1. 2024-03-15 09:00  Standup")
			So(out.String(), ShouldContainSubstring, "  2. 2024-03-15  Holiday")
			So(out.String(), ShouldContainSubstring, "out of range")
		})

		Convey("Running out of input is an error", func() {
			_, err := selection.Prompt(strings.NewReader(""), &out, events)
			So(errors.Is(err, selection.ErrInvalidChoice), ShouldBeTrue)
		})
	})
}
