// Package syncer runs one note generation pass: fetch events for a time range,
// normalize them, narrow them to the selection and write their notes.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"calnotes/internal/metrics"
	"calnotes/internal/models"
	"calnotes/internal/normalize"
	"calnotes/internal/notes"
	"calnotes/internal/selection"
	"calnotes/internal/timerange"
)

// CalendarSource supplies raw events and calendar metadata.
type CalendarSource interface {
	ListCalendars(ctx context.Context) ([]models.Calendar, error)
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.RawEvent, error)
}

// Request describes one run.
type Request struct {
	Range timerange.Range
	// Calendars to read from every source. Empty means each source's primary
	// calendars.
	Calendars    []string
	Folder       string
	TemplatePath string
	Policy       notes.Policy
	// Selection narrows the fetched events. Use selection.All() for everything.
	Selection selection.Selection
	// Choose, when set, replaces Selection with a choice made after fetching,
	// e.g. an interactive prompt.
	Choose func(events []models.Event) (selection.Selection, error)
}

// Syncer orchestrates note generation from calendar sources into a store.
type Syncer struct {
	logger  *slog.Logger
	sources []CalendarSource
	store   notes.Storage
	metrics *metrics.Manager
}

// NewSyncer creates a new Syncer. m may be nil.
func NewSyncer(logger *slog.Logger, store notes.Storage, m *metrics.Manager, sources ...CalendarSource) *Syncer {
	return &Syncer{logger: logger, sources: sources, store: store, metrics: m}
}

// Sync performs a full generation run. Configuration problems and fetch
// failures abort the run before anything is written; per-note failures are
// reported in the result.
func (s *Syncer) Sync(ctx context.Context, req Request) (res notes.Result, err error) {
	logger := s.logger.With("run", uuid.NewString())
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRun(started, err)
		}
	}()

	logger.Info("Starting generation run.", "start", req.Range.Start, "end", req.Range.End, "folder", req.Folder, "policy", req.Policy)

	template, err := notes.LoadTemplate(ctx, s.store, req.TemplatePath)
	if err != nil {
		return notes.Result{}, err
	}

	raws, err := s.fetchAll(ctx, logger, req)
	if err != nil {
		return notes.Result{}, fmt.Errorf("failed to fetch events: %w", err)
	}

	events := normalize.NormalizeAll(raws)
	logger.Info("Fetched events.", "raw", len(raws), "active", len(events))

	sel := req.Selection
	if req.Choose != nil && len(events) > 0 {
		if sel, err = req.Choose(events); err != nil {
			return notes.Result{}, fmt.Errorf("failed to select events: %w", err)
		}
	}
	events = sel.Apply(events)
	if len(events) == 0 {
		logger.Info("No events selected, nothing to write.")
		return notes.Result{Created: []string{}, Skipped: []notes.Skipped{}}, nil
	}

	res, err = notes.NewWriter(logger, s.store).WriteMany(ctx, events, template, req.Folder, req.Policy)
	if err != nil {
		return res, fmt.Errorf("failed to write notes: %w", err)
	}
	s.record(res)

	logger.Info("Generation run finished.", "created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}

// fetchAll retrieves events from every source. Any failure fails the run.
func (s *Syncer) fetchAll(ctx context.Context, logger *slog.Logger, req Request) ([]models.RawEvent, error) {
	var all []models.RawEvent
	for _, src := range s.sources {
		ids := req.Calendars
		if len(ids) == 0 {
			primary, err := primaryCalendars(ctx, src)
			if err != nil {
				return nil, err
			}
			ids = primary
		}

		for _, calID := range ids {
			events, err := src.ListEvents(ctx, calID, req.Range.Start, req.Range.End)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: %w", calID, err)
			}
			logger.Debug("Fetched calendar.", "calendarID", calID, "count", len(events))
			if s.metrics != nil {
				s.metrics.RecordEventsFetched(calID, len(events))
			}
			all = append(all, events...)
		}
	}
	return all, nil
}

func primaryCalendars(ctx context.Context, src CalendarSource) ([]string, error) {
	cals, err := src.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range cals {
		if c.Primary {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *Syncer) record(res notes.Result) {
	if s.metrics == nil {
		return
	}
	for _, out := range res.Outcomes {
		switch {
		case out.Err != nil:
			s.metrics.RecordNote(metrics.OutcomeFailed)
		case out.Status == notes.StatusCreated:
			s.metrics.RecordNote(metrics.OutcomeCreated)
		default:
			s.metrics.RecordNote(metrics.OutcomeSkipped)
		}
	}
}
