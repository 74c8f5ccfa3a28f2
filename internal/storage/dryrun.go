package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// DryRun layers an in-memory overlay over a store. Reads fall through to the
// underlying store, writes only land in the overlay and are logged, so a dry run
// still detects duplicates between events of the same batch.
type DryRun struct {
	base    Store
	logger  *slog.Logger
	overlay map[string]string
}

// NewDryRun wraps base; base is never written to.
func NewDryRun(logger *slog.Logger, base Store) *DryRun {
	return &DryRun{base: base, logger: logger, overlay: make(map[string]string)}
}

func (d *DryRun) Exists(ctx context.Context, p string) (bool, error) {
	if _, ok := d.overlay[clean(p)]; ok {
		return true, nil
	}
	return d.base.Exists(ctx, p)
}

func (d *DryRun) Read(ctx context.Context, p string) (string, error) {
	if text, ok := d.overlay[clean(p)]; ok {
		return text, nil
	}
	return d.base.Read(ctx, p)
}

func (d *DryRun) Create(ctx context.Context, p, text string) error {
	ok, err := d.Exists(ctx, p)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s: %w", p, ErrExist)
	}
	d.logger.Info("[DRY RUN] Would create note", "path", p, "bytes", len(text))
	d.overlay[clean(p)] = text
	return nil
}

func (d *DryRun) Modify(ctx context.Context, p, text string) error {
	ok, err := d.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	d.logger.Info("[DRY RUN] Would overwrite note", "path", p, "bytes", len(text))
	d.overlay[clean(p)] = text
	return nil
}

func (d *DryRun) List(ctx context.Context, folder string) ([]string, error) {
	children, err := d.base.List(ctx, folder)
	if err != nil {
		return nil, err
	}
	dir := clean(folder)
	seen := make(map[string]struct{}, len(children))
	for _, c := range children {
		seen[clean(c)] = struct{}{}
	}
	for p := range d.overlay {
		if parent(p) != dir {
			continue
		}
		if _, ok := seen[p]; !ok {
			children = append(children, p)
		}
	}
	sort.Strings(children)
	return children, nil
}

// Pending returns the paths the dry run would have written.
func (d *DryRun) Pending() []string {
	out := make([]string, 0, len(d.overlay))
	for p := range d.overlay {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
