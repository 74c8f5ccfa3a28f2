package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Configuration errors, checked before any note is written.
var (
	ErrNoTemplate       = errors.New("no note template configured")
	ErrTemplateNotFound = errors.New("note template not found")
)

// LoadTemplate reads the template at p from store.
func LoadTemplate(ctx context.Context, store Storage, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrNoTemplate
	}
	ok, err := store.Exists(ctx, p)
	if err != nil {
		return "", fmt.Errorf("failed to check template %s: %w", p, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, p)
	}
	text, err := store.Read(ctx, p)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", p, err)
	}
	return text, nil
}
