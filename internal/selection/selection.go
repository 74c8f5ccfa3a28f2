// Package selection holds the subset of fetched events a run should turn into
// notes. A Selection is a value: narrowing it returns a new one.
package selection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"calnotes/internal/models"
)

// ErrInvalidChoice is returned by Parse for input that names no valid events.
var ErrInvalidChoice = errors.New("invalid selection")

// Selection is an immutable set of chosen events. The zero value selects nothing.
type Selection struct {
	all  bool
	keys map[string]struct{}
}

// All selects every event.
func All() Selection {
	return Selection{all: true}
}

// Of selects events by key. A key is either an event ID, which matches every
// instance of a recurring series, or Key(event), which matches one instance.
func Of(keys ...string) Selection {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return Selection{keys: set}
}

// Key identifies one event occurrence.
func Key(ev models.Event) string {
	return ev.ID + "@" + ev.StartISO
}

// IsAll reports whether the selection selects every event.
func (s Selection) IsAll() bool {
	return s.all
}

// Len returns the number of explicit keys. It is zero for All.
func (s Selection) Len() int {
	return len(s.keys)
}

// Contains reports whether ev is selected.
func (s Selection) Contains(ev models.Event) bool {
	if s.all {
		return true
	}
	if _, ok := s.keys[ev.ID]; ok {
		return true
	}
	_, ok := s.keys[Key(ev)]
	return ok
}

// Apply returns the selected events in their original order.
func (s Selection) Apply(events []models.Event) []models.Event {
	if s.all {
		return events
	}
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if s.Contains(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Parse turns "1,3-5", "all" or an empty string (all) into a selection over
// events, numbered from 1.
func Parse(input string, events []models.Event) (Selection, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		return All(), nil
	}

	picked := make(map[int]struct{})
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := bounds(part)
		if err != nil {
			return Selection{}, err
		}
		if lo < 1 || hi > len(events) || lo > hi {
			return Selection{}, fmt.Errorf("%w: %q is out of range 1-%d", ErrInvalidChoice, part, len(events))
		}
		for i := lo; i <= hi; i++ {
			picked[i] = struct{}{}
		}
	}
	if len(picked) == 0 {
		return Selection{}, fmt.Errorf("%w: %q", ErrInvalidChoice, input)
	}

	idx := make([]int, 0, len(picked))
	for i := range picked {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	keys := make([]string, 0, len(idx))
	for _, i := range idx {
		keys = append(keys, Key(events[i-1]))
	}
	return Of(keys...), nil
}

func bounds(part string) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidChoice, part)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidChoice, part)
	}
	return lo, hi, nil
}

// Prompt lists events on w and reads the user's choice from r. It asks again
// after an invalid answer and gives up when r is exhausted.
func Prompt(r io.Reader, w io.Writer, events []models.Event) (Selection, error) {
	for i, ev := range events {
		when := ev.Date
		if !ev.AllDay && ev.StartTime != "" {
			when += " " + ev.StartTime
		}
		fmt.Fprintf(w, "%3d. %s  %s\n", i+1, when, ev.Title)
	}

	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "Select events (e.g. 1,3-5; empty for all): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return Selection{}, fmt.Errorf("failed to read selection: %w", err)
			}
			return Selection{}, fmt.Errorf("%w: no answer", ErrInvalidChoice)
		}
		sel, err := Parse(scanner.Text(), events)
		if err == nil {
			return sel, nil
		}
		fmt.Fprintln(w, err)
	}
}
