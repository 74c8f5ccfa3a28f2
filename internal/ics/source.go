package ics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"calnotes/internal/models"
)

const propCalendarName = "X-WR-CALNAME"

// Source exposes a single .ics file or http(s) feed as one calendar.
type Source struct {
	location   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSource creates a source for a local path or an http(s) URL.
func NewSource(logger *slog.Logger, httpClient *http.Client, location string) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Source{location: location, httpClient: httpClient, logger: logger}
}

// ListCalendars returns the feed itself. Its ID is the location.
func (s *Source) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	cal, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	name := ""
	if p := cal.Props.Get(propCalendarName); p != nil {
		name = strings.TrimSpace(p.Value)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(s.location), filepath.Ext(s.location))
	}
	return []models.Calendar{{ID: s.location, Name: name, Primary: true}}, nil
}

// ListEvents returns the occurrences within [start, end]. calendarID is
// recorded on each event; the feed only ever holds one calendar.
func (s *Source) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.RawEvent, error) {
	cal, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if calendarID == "" {
		calendarID = s.location
	}
	events := Events(cal, calendarID, start, end)
	s.logger.Debug("Parsed ICS feed", "location", s.location, "events", len(events))
	return events, nil
}

func (s *Source) fetch(ctx context.Context) (*ical.Calendar, error) {
	body, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Parse(body)
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("unable to open ICS file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build ICS request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch ICS feed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unable to fetch ICS feed: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}
