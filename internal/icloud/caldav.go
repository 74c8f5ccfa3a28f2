// Package icloud reads events from a CalDAV server. iCloud is the default
// endpoint, but any CalDAV server (Fastmail, Nextcloud, Radicale) works.
package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"calnotes/internal/ics"
	"calnotes/internal/models"
)

const (
	iCloudCalDAVEndpoint = "https://caldav.icloud.com/"
)

// CalDAVClient is a client for reading events from a CalDAV server.
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	endpoint     string
}

// NewClient creates a CalDAVClient. httpClient is expected to carry the
// credentials (see internal/httpauth); an empty endpoint means iCloud.
func NewClient(logger *slog.Logger, httpClient *http.Client, endpoint string) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = iCloudCalDAVEndpoint
	}
	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return &CalDAVClient{caldavClient: caldavClient, logger: logger, endpoint: endpoint}, nil
}

// ListCalendars discovers the user's calendars. IDs are collection paths.
func (c *CalDAVClient) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	calendars, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	return toCalendars(calendars), nil
}

// ListEvents returns the event occurrences of a calendar within [start, end].
// calendarID is either a collection path or a calendar display name.
func (c *CalDAVClient) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.RawEvent, error) {
	calendarPath := calendarID
	if !strings.HasPrefix(calendarID, "/") {
		p, err := c.findCalendar(ctx, calendarID)
		if err != nil {
			return nil, fmt.Errorf("could not find calendar '%s': %w", calendarID, err)
		}
		calendarPath = p
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}
	objects, err := c.caldavClient.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar %s: %w", calendarPath, err)
	}
	events := eventsFromObjects(objects, calendarID, start, end)
	c.logger.Debug("Fetched CalDAV events", "calendar", calendarPath, "objects", len(objects), "events", len(events))
	return events, nil
}

// findCalendar returns the path of the calendar with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	calendars, err := c.discover(ctx)
	if err != nil {
		return "", err
	}
	return pathByName(calendars, name)
}

func (c *CalDAVClient) discover(ctx context.Context) ([]caldav.Calendar, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}
	return calendars, nil
}

func pathByName(calendars []caldav.Calendar, name string) (string, error) {
	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

func toCalendars(calendars []caldav.Calendar) []models.Calendar {
	out := make([]models.Calendar, 0, len(calendars))
	for i, cal := range calendars {
		name := cal.Name
		if name == "" {
			name = cal.Path
		}
		// CalDAV has no notion of a primary calendar; the first one stands in.
		out = append(out, models.Calendar{ID: cal.Path, Name: name, Primary: i == 0})
	}
	return out
}

func eventsFromObjects(objects []caldav.CalendarObject, calendarID string, start, end time.Time) []models.RawEvent {
	var out []models.RawEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		out = append(out, ics.Events(obj.Data, calendarID, start, end)...)
	}
	return out
}
