// Package scraper ties the pieces together: it loads markup from a URL, a
// file or stdin, runs one extraction rule over it, optionally downloads the
// discovered assets and records the run in a journal.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/falconeye/internal/asset"
	"github.com/masahif/falconeye/internal/extract"
	"github.com/masahif/falconeye/internal/fetch"
	"github.com/masahif/falconeye/internal/parser"
)

// ErrUnknownRule is returned for a rule kind the processor does not know
var ErrUnknownRule = errors.New("unknown extraction rule")

// StdinSource is the source name that reads markup from stdin
const StdinSource = "-"

// Processor runs extraction rules against sources
type Processor struct {
	fetcher    PageFetcher
	downloader AssetDownloader
	journal    Journal
	stdin      io.Reader
}

// Option configures a Processor
type Option func(*Processor)

// WithJournal records every run in j
func WithJournal(j Journal) Option {
	return func(p *Processor) {
		p.journal = j
	}
}

// WithStdin replaces os.Stdin as the reader for the "-" source
func WithStdin(r io.Reader) Option {
	return func(p *Processor) {
		p.stdin = r
	}
}

// NewProcessor creates a new processor
func NewProcessor(fetcher PageFetcher, downloader AssetDownloader, opts ...Option) *Processor {
	p := &Processor{
		fetcher:    fetcher,
		downloader: downloader,
		stdin:      os.Stdin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load returns the markup of source: "-" reads stdin, anything containing
// "://" is fetched, everything else is read as a file.
func (p *Processor) Load(ctx context.Context, source string) (string, error) {
	switch {
	case source == StdinSource:
		data, err := io.ReadAll(p.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil

	case strings.Contains(source, "://"):
		resp, err := p.fetcher.Fetch(ctx, source)
		if err != nil {
			return "", err
		}
		slog.Debug("Fetched page", "url", source, "final_url", resp.FinalURL,
			"bytes", len(resp.Body), "ttfb", resp.Metrics.TTFB, "download_time", resp.Metrics.DownloadTime)
		return resp.Text(), nil

	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return "", fmt.Errorf("failed to read markup file: %w", err)
		}
		return string(data), nil
	}
}

// Process loads source, applies rule and downloads assets when the rule asks
// for it. Not-found outcomes are reported through Result.NotFound, not as
// errors; download failures are reported in Result.Assets. The returned
// error covers load failures and rejected input, and Result is non-nil even then.
func (p *Processor) Process(ctx context.Context, source string, rule Rule) (*Result, error) {
	result := &Result{
		RunID:  uuid.NewString(),
		Source: source,
		Rule:   rule,
		Values: []string{},
	}
	run := &RunRecord{
		ID:        result.RunID,
		Source:    source,
		Rule:      string(rule.Kind),
		Selector:  rule.Selector(),
		StartedAt: time.Now().UTC(),
	}

	markup, err := p.Load(ctx, source)
	if err != nil {
		p.logLoadError(source, err)
		p.finish(run, result, err)
		return result, err
	}

	values, err := Apply(parser.Parse(markup), rule)
	if errors.Is(err, extract.ErrNotFound) {
		result.NotFound = true
	} else if err != nil {
		p.finish(run, result, err)
		return result, err
	}
	result.Values = values

	if rule.DownloadDir != "" && (rule.Kind == RuleImages || rule.Kind == RuleVideos) {
		outcomes, err := p.downloader.Download(ctx, values, rule.DownloadDir)
		if err != nil {
			slog.Error("Skipping downloads", "dir", rule.DownloadDir, "error", err)
			result.DownloadErr = err
		}
		result.Assets = outcomes
	}

	p.finish(run, result, nil)
	return result, nil
}

// Apply runs rule against doc. Id rules return a single value on success and
// an empty slice with extract.ErrNotFound when nothing matched.
func Apply(doc *parser.Document, rule Rule) ([]string, error) {
	switch rule.Kind {
	case RuleAttribute:
		return extract.Attribute(doc, rule.Tag, rule.Attr)
	case RuleTextByTag:
		return extract.TextByTag(doc, rule.Tag)
	case RuleTextByClass:
		return extract.TextByClass(doc, rule.Class)
	case RuleTextByID:
		return single(extract.TextByID(doc, rule.ID))
	case RuleLinks:
		return extract.Links(doc)
	case RuleLinkByID:
		return single(extract.LinkByID(doc, rule.ID))
	case RuleImages:
		return extract.Images(doc)
	case RuleVideos:
		return extract.Videos(doc, rule.Providers...)
	default:
		return []string{}, fmt.Errorf("%w: %q", ErrUnknownRule, rule.Kind)
	}
}

func single(value string, err error) ([]string, error) {
	if err != nil {
		return []string{}, err
	}
	return []string{value}, nil
}

func (p *Processor) logLoadError(source string, err error) {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		slog.Error("Failed to download page", "url", source, "kind", fe.Kind,
			"status_code", fe.StatusCode, "cause", fe.Cause(), "error", err)
		return
	}
	slog.Error("Failed to load markup", "source", source, "error", err)
}

// finish records the run in the journal. Journal failures are logged only.
func (p *Processor) finish(run *RunRecord, result *Result, err error) {
	run.FinishedAt = time.Now().UTC()
	run.ResultCount = len(result.Values)

	switch {
	case err != nil:
		run.Status = StatusFailed
		run.ErrorType = errorType(err)
		run.ErrorMessage = err.Error()
	case result.NotFound:
		run.Status = StatusNotFound
	default:
		run.Status = StatusCompleted
	}

	if p.journal == nil {
		return
	}

	if jerr := p.journal.SaveRun(run); jerr != nil {
		slog.Warn("Failed to record run", "run_id", run.ID, "error", jerr)
		return
	}

	if err != nil && fetch.KindOf(err) != "" {
		rec := &ErrorRecord{
			RunID:        run.ID,
			Source:       run.Source,
			ErrorType:    run.ErrorType,
			ErrorMessage: run.ErrorMessage,
			OccurredAt:   run.FinishedAt,
		}
		if jerr := p.journal.SaveError(rec); jerr != nil {
			slog.Warn("Failed to record fetch error", "run_id", run.ID, "error", jerr)
		}
	}

	if len(result.Assets) > 0 {
		if jerr := p.journal.SaveAssets(assetRecords(run.ID, result.Assets)); jerr != nil {
			slog.Warn("Failed to record assets", "run_id", run.ID, "error", jerr)
		}
	}
}

func assetRecords(runID string, outcomes []asset.Outcome) []*AssetRecord {
	now := time.Now().UTC()
	records := make([]*AssetRecord, 0, len(outcomes))
	for _, o := range outcomes {
		rec := &AssetRecord{
			RunID:        runID,
			URL:          o.URL,
			FileName:     o.FileName,
			Path:         o.Path,
			Bytes:        o.Bytes,
			Status:       AssetSaved,
			DownloadedAt: now,
		}
		if !o.OK() {
			rec.Status = AssetFailed
			rec.ErrorType = o.ErrorKind()
			rec.ErrorMessage = o.Err.Error()
		}
		records = append(records, rec)
	}
	return records
}

func errorType(err error) string {
	if kind := fetch.KindOf(err); kind != "" {
		return string(kind)
	}
	var ee *extract.Error
	if errors.As(err, &ee) {
		return string(ee.Kind)
	}
	if errors.Is(err, ErrUnknownRule) {
		return string(extract.KindInvalidInput)
	}
	return "io_error"
}
