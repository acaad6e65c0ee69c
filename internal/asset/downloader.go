// Package asset downloads discovered image and video URLs to local files.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/falconeye/internal/fetch"
)

// ErrMalformedTarget is returned when no usable file name can be derived from a URL
var ErrMalformedTarget = errors.New("malformed download target")

// Streamer streams the body of a URL into a destination opened on demand
type Streamer interface {
	Stream(ctx context.Context, rawURL string, open func() (io.WriteCloser, error)) (int64, error)
}

// Reference is a discovered asset URL and the file name it is saved under
type Reference struct {
	URL      string
	FileName string
}

// NewReference derives the local file name for rawURL
func NewReference(rawURL string) Reference {
	return Reference{URL: rawURL, FileName: FileName(rawURL)}
}

// FileName returns the last path segment of rawURL with any query string
// removed. A URL ending in "/" yields "".
func FileName(rawURL string) string {
	p, _, _ := strings.Cut(rawURL, "?")
	return p[strings.LastIndex(p, "/")+1:]
}

// Outcome is the result of downloading one reference
type Outcome struct {
	Reference
	Path  string // destination path, set even on failure when the name is valid
	Bytes int64
	Err   error
}

// OK reports whether the download succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ErrorKind classifies the failure for reporting
func (o Outcome) ErrorKind() string {
	switch {
	case o.Err == nil:
		return ""
	case errors.Is(o.Err, ErrMalformedTarget):
		return "malformed_target"
	case fetch.KindOf(o.Err) != "":
		return string(fetch.KindOf(o.Err))
	default:
		return "io_error"
	}
}

// Downloader saves assets into a directory
type Downloader struct {
	streamer Streamer
	workers  int
}

// NewDownloader creates a downloader running up to workers downloads at once.
// workers below 1 means sequential.
func NewDownloader(streamer Streamer, workers int) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{streamer: streamer, workers: workers}
}

// Download saves every URL into dir, creating dir and its parents first.
// The returned outcomes are in the order of urls. A failing URL never stops
// the others; the error return is reserved for dir itself being unusable.
//
// URLs that map to the same file name overwrite each other; they are fetched
// one after another in input order so the last one wins.
func (d *Downloader) Download(ctx context.Context, urls []string, dir string) ([]Outcome, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	outcomes := make([]Outcome, len(urls))
	groups := make(map[string][]int)
	var order []string

	for i, u := range urls {
		ref := NewReference(u)
		outcomes[i].Reference = ref

		if !validFileName(ref.FileName) {
			outcomes[i].Err = fmt.Errorf("%w: no file name in %q", ErrMalformedTarget, u)
			slog.Error("Cannot download asset", "url", u, "error", outcomes[i].Err)
			continue
		}

		outcomes[i].Path = filepath.Join(dir, ref.FileName)
		if _, exists := groups[ref.FileName]; exists {
			slog.Warn("Asset file name collision, later download overwrites earlier",
				"file", ref.FileName, "url", u)
		} else {
			order = append(order, ref.FileName)
		}
		groups[ref.FileName] = append(groups[ref.FileName], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, name := range order {
		indices := groups[name]
		g.Go(func() error {
			for _, i := range indices {
				outcomes[i].Bytes, outcomes[i].Err = d.save(gctx, outcomes[i].URL, outcomes[i].Path)
			}
			// Failures stay in the outcome so siblings keep running
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (d *Downloader) save(ctx context.Context, rawURL, path string) (int64, error) {
	slog.Info("Downloading asset", "url", rawURL)

	created := false
	n, err := d.streamer.Stream(ctx, rawURL, func() (io.WriteCloser, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		created = true
		return f, nil
	})
	if err != nil {
		if created {
			_ = os.Remove(path)
		}
		attrs := []any{"url", rawURL, "error", err}
		var fe *fetch.Error
		if errors.As(err, &fe) {
			attrs = append(attrs, "kind", fe.Kind, "cause", fe.Cause())
		}
		slog.Error("Failed to download asset", attrs...)
		return 0, err
	}

	slog.Info("Asset saved", "url", rawURL, "path", path, "bytes", n)
	return n, nil
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
