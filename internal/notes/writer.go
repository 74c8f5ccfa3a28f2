package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"calnotes/internal/filename"
	"calnotes/internal/identity"
	"calnotes/internal/models"
)

const (
	noteExt     = ".md"
	maxSuffixes = 10000
)

// ErrNoFreeName is returned when suffix probing runs out of candidates.
var ErrNoFreeName = errors.New("no free suffixed filename")

// Writer writes event notes into a folder of a Storage.
// Writes are strictly sequential so that each event sees the notes written for
// the events before it.
type Writer struct {
	store  Storage
	logger *slog.Logger
}

// NewWriter creates a Writer on top of store.
func NewWriter(logger *slog.Logger, store Storage) *Writer {
	return &Writer{store: store, logger: logger}
}

// WriteOne writes the note for a single event. On a write failure the
// returned outcome carries the path that was being written.
func (w *Writer) WriteOne(ctx context.Context, ev models.Event, template, folder string, policy Policy) (Outcome, error) {
	idx, err := w.scan(ctx, folder)
	if err != nil {
		return Outcome{}, err
	}
	return w.write(ctx, idx, ev, template, folder, policy)
}

// WriteMany writes notes for events in order. A failure on one event is
// recorded as a skipped outcome carrying the error and the batch continues.
// Only a failure to scan the folder aborts the batch.
func (w *Writer) WriteMany(ctx context.Context, events []models.Event, template, folder string, policy Policy) (Result, error) {
	res := Result{Created: []string{}, Skipped: []Skipped{}}

	idx, err := w.scan(ctx, folder)
	if err != nil {
		return res, err
	}

	for _, ev := range events {
		out, err := w.write(ctx, idx, ev, template, folder, policy)
		if err != nil {
			w.logger.Error("Failed to write note", "title", ev.Title, "id", ev.ID, "path", out.Path, "error", err)
			target := out.Path
			if target == "" {
				target = path.Join(folder, filename.Generate(ev.Date, ev.Title))
			}
			out = Outcome{
				Status:   StatusSkipped,
				Filename: path.Base(target),
				Path:     target,
				Reason:   err.Error(),
				Err:      err,
			}
		}

		res.Outcomes = append(res.Outcomes, out)
		switch out.Status {
		case StatusCreated:
			res.Created = append(res.Created, out.Filename)
		default:
			res.Skipped = append(res.Skipped, Skipped{Filename: out.Filename, Reason: out.Reason})
		}
	}
	return res, nil
}

func (w *Writer) write(ctx context.Context, idx *index, ev models.Event, template, folder string, policy Policy) (Outcome, error) {
	block := BlockFor(ev)
	content := Content(ev, template)

	if existing, ok := idx.lookup(block); ok {
		switch policy {
		case PolicySkip:
			w.logger.Debug("Note already exists, skipping.", "title", ev.Title, "path", existing)
			return skipped(existing, ReasonAlreadyExists), nil
		case PolicyOverwrite:
			return w.modify(ctx, idx, existing, block, content)
		}
		// Suffix: place a new note by filename, regardless of the match.
	}

	target := path.Join(folder, filename.Generate(ev.Date, ev.Title))
	taken, err := w.store.Exists(ctx, target)
	if err != nil {
		return Outcome{Path: target}, fmt.Errorf("failed to check %s: %w", target, err)
	}
	if taken {
		switch policy {
		case PolicySkip:
			w.logger.Debug("File name already taken, skipping.", "title", ev.Title, "path", target)
			return skipped(target, ReasonFileExists), nil
		case PolicyOverwrite:
			return w.modify(ctx, idx, target, block, content)
		default:
			if target, err = w.freeSuffixed(ctx, folder, ev); err != nil {
				return Outcome{Path: target}, err
			}
		}
	}

	if err := w.store.Create(ctx, target, content); err != nil {
		return Outcome{Path: target}, fmt.Errorf("failed to create %s: %w", target, err)
	}
	idx.put(target, block)
	w.logger.Info("Created note.", "title", ev.Title, "path", target)
	return created(target), nil
}

func (w *Writer) modify(ctx context.Context, idx *index, p string, block identity.Block, content string) (Outcome, error) {
	if err := w.store.Modify(ctx, p, content); err != nil {
		return Outcome{Path: p}, fmt.Errorf("failed to overwrite %s: %w", p, err)
	}
	idx.put(p, block)
	w.logger.Info("Overwrote note.", "path", p)
	return created(p), nil
}

// freeSuffixed probes "(1)", "(2)", ... until a name is unoccupied. On
// failure it returns the last candidate probed.
func (w *Writer) freeSuffixed(ctx context.Context, folder string, ev models.Event) (string, error) {
	var candidate string
	for n := 1; n <= maxSuffixes; n++ {
		candidate = path.Join(folder, filename.GenerateWithSuffix(ev.Date, ev.Title, n))
		taken, err := w.store.Exists(ctx, candidate)
		if err != nil {
			return candidate, fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return candidate, fmt.Errorf("%w for %q after %d attempts", ErrNoFreeName, ev.Title, maxSuffixes)
}

// scan reads every note directly inside folder and indexes its identity.
// Unreadable notes are logged and ignored.
func (w *Writer) scan(ctx context.Context, folder string) (*index, error) {
	children, err := w.store.List(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %q: %w", folder, err)
	}

	idx := newIndex()
	for _, p := range children {
		if !strings.EqualFold(path.Ext(p), noteExt) {
			continue
		}
		text, err := w.store.Read(ctx, p)
		if err != nil {
			w.logger.Warn("Could not read note while scanning, ignoring it.", "path", p, "error", err)
			continue
		}
		if block, ok := identity.Decode(text); ok {
			idx.put(p, block)
		}
	}
	w.logger.Debug("Scanned folder for existing notes.", "folder", folder, "files", len(children), "identified", len(idx.byPath))
	return idx, nil
}

func created(p string) Outcome {
	return Outcome{Status: StatusCreated, Filename: path.Base(p), Path: p}
}

func skipped(p, reason string) Outcome {
	return Outcome{Status: StatusSkipped, Filename: path.Base(p), Path: p, Reason: reason}
}

// index maps identity blocks to the notes carrying them, in discovery order.
type index struct {
	byBlock map[identity.Block][]string
	byPath  map[string]identity.Block
}

func newIndex() *index {
	return &index{
		byBlock: make(map[identity.Block][]string),
		byPath:  make(map[string]identity.Block),
	}
}

func (i *index) lookup(b identity.Block) (string, bool) {
	paths := i.byBlock[b]
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// put records that p now carries b, dropping whatever p carried before.
func (i *index) put(p string, b identity.Block) {
	if old, ok := i.byPath[p]; ok {
		paths := i.byBlock[old]
		for n, q := range paths {
			if q == p {
				i.byBlock[old] = append(paths[:n:n], paths[n+1:]...)
				break
			}
		}
	}
	i.byPath[p] = b
	for _, q := range i.byBlock[b] {
		if q == p {
			return
		}
	}
	i.byBlock[b] = append(i.byBlock[b], p)
}
