package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/emersion/go-webdav"
)

const propfindResourceType = `<?xml version="1.0" encoding="utf-8"?><propfind xmlns="DAV:"><prop><resourcetype/></prop></propfind>`

// WebDAV stores notes on a WebDAV share (Nextcloud, ownCloud, a vault synced
// over WebDAV, ...). Paths are relative to the endpoint.
type WebDAV struct {
	client     *webdav.Client
	httpClient *http.Client
	endpoint   *url.URL
	logger     *slog.Logger
}

// NewWebDAV creates a store for the share at endpoint using httpClient, which
// is expected to carry authentication (see internal/httpauth).
func NewWebDAV(logger *slog.Logger, httpClient *http.Client, endpoint string) (*WebDAV, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid webdav endpoint: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	client, err := webdav.NewClient(httpClient, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}
	return &WebDAV{client: client, httpClient: httpClient, endpoint: u, logger: logger}, nil
}

// Exists issues a depth 0 PROPFIND itself rather than going through the
// client, so that a missing resource (404) can be told apart from a failure.
// It works for files and collections alike.
func (s *WebDAV) Exists(ctx context.Context, p string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", s.endpoint.JoinPath(clean(p)).String(), strings.NewReader(propfindResourceType))
	if err != nil {
		return false, err
	}
	req.Header.Set("Depth", "0")
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode/100 == 2:
		return true, nil
	default:
		return false, fmt.Errorf("failed to stat %s: unexpected status %s", p, resp.Status)
	}
}

// Read downloads the file at p.
func (s *WebDAV) Read(ctx context.Context, p string) (string, error) {
	rc, err := s.client.Open(ctx, clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return string(b), nil
}

// Create uploads a new file, creating missing parent collections. The upload
// is conditional on nothing being at p, so a file that appears after the
// existence check is not overwritten.
func (s *WebDAV) Create(ctx context.Context, p, text string) error {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s: %w", p, ErrExist)
	}
	if err := s.mkdirAll(ctx, path.Dir(clean(p))); err != nil {
		return err
	}
	return s.put(ctx, p, text, "If-None-Match", ErrExist)
}

// Modify replaces an existing file. The upload is conditional on a file being
// at p.
func (s *WebDAV) Modify(ctx context.Context, p, text string) error {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	return s.put(ctx, p, text, "If-Match", ErrNotExist)
}

// Version returns the ETag of the file at p, or its modification time and
// size when the server sends no ETag.
func (s *WebDAV) Version(ctx context.Context, p string) (string, error) {
	fi, err := s.client.Stat(ctx, clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if fi.ETag != "" {
		return fi.ETag, nil
	}
	return fmt.Sprintf("%d-%d", fi.ModTime.UnixNano(), fi.Size), nil
}

// List returns the files directly inside folder. A missing folder is empty.
func (s *WebDAV) List(ctx context.Context, folder string) ([]string, error) {
	dir := clean(folder)
	if ok, err := s.Exists(ctx, dir); err != nil {
		return nil, err
	} else if !ok {
		return nil, nil
	}

	infos, err := s.client.ReadDir(ctx, dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	out := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir {
			continue
		}
		out = append(out, path.Join(dir, path.Base(fi.Path)))
	}
	sort.Strings(out)
	return out, nil
}

// put uploads text to p with the precondition header set to "*". A 412
// response is reported as failed.
func (s *WebDAV) put(ctx context.Context, p, text, precondition string, failed error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint.JoinPath(clean(p)).String(), strings.NewReader(text))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	req.Header.Set(precondition, "*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", p, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return fmt.Errorf("%s: %w", p, failed)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("failed to upload %s: unexpected status %s", p, resp.Status)
	}
	s.logger.Debug("Uploaded file to WebDAV.", "path", p, "bytes", len(text))
	return nil
}

func (s *WebDAV) mkdirAll(ctx context.Context, dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	ok, err := s.Exists(ctx, dir)
	if err != nil || ok {
		return err
	}
	if err := s.mkdirAll(ctx, path.Dir(dir)); err != nil {
		return err
	}
	if err := s.client.Mkdir(ctx, dir); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", dir, err)
	}
	return nil
}
