// Package fetch retrieves page markup and binary assets over HTTP.
// Every failure is returned as an *Error carrying one of a small set of kinds
// so callers can degrade to an empty result without inspecting transport details.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds how long a page fetch may take, and how long an asset
// download may wait for headers or go without receiving data.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent is sent when no other User-Agent is configured
const DefaultUserAgent = "FalconEye/1.0"

// Fetcher handles HTTP requests with a fixed timeout
type Fetcher struct {
	client    *http.Client
	transport http.RoundTripper
	userAgent string
	timeout   time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithTimeout sets the request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTransport replaces the default transport
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// Metrics contains timing information for a request
type Metrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
}

// Response is a successfully fetched page
type Response struct {
	URL         string
	FinalURL    string // After following redirects
	StatusCode  int
	ContentType string
	Body        []byte
	Metrics     Metrics
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// NewFetcher creates a new fetcher
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.transport == nil {
		f.transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: f.timeout,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   f.timeout,
			ResponseHeaderTimeout: f.timeout,
		}
	}

	f.client = &http.Client{
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return f
}

// Timeout returns the configured timeout
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// ValidateURL checks that rawURL is an absolute http or https URL
func ValidateURL(rawURL string) error {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return &Error{
			Kind: KindInvalidURL,
			URL:  rawURL,
			Err:  fmt.Errorf("URL has to be prefixed with 'http://' or 'https://'"),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}
	if u.Host == "" {
		return &Error{Kind: KindInvalidURL, URL: rawURL, Err: fmt.Errorf("missing host")}
	}

	return nil
}

// Fetch retrieves the page at rawURL. The whole request, body included, must
// complete within the configured timeout. Any non-2xx status is an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var firstByteTime time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}

	startTime := time.Now()
	resp, err := f.do(httptrace.WithClientTrace(ctx, trace), rawURL,
		"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	var metrics Metrics
	if !firstByteTime.IsZero() {
		metrics.TTFB = firstByteTime.Sub(startTime)
	}
	metrics.DownloadTime = time.Since(startTime)

	return &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Metrics:     metrics,
	}, nil
}

// Stream copies the body at rawURL into the writer returned by open. open is
// only called once a 2xx response has been received, so a failed request never
// creates the destination. The wait for response headers and every gap
// between body reads are bounded by the timeout; a stalled transfer fails
// with KindTimeout.
func (f *Fetcher) Stream(ctx context.Context, rawURL string, open func() (io.WriteCloser, error)) (int64, error) {
	if err := ValidateURL(rawURL); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := f.do(ctx, rawURL, "*/*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	w, err := open()
	if err != nil {
		return 0, err
	}

	body := newIdleReader(resp.Body, f.timeout, cancel)
	n, err := io.Copy(w, body)
	body.stop()
	closeErr := w.Close()
	if err != nil {
		if body.expired() {
			return n, &Error{Kind: KindTimeout, URL: rawURL, Err: fmt.Errorf("no data received for %s", f.timeout)}
		}
		return n, classify(rawURL, err)
	}
	if closeErr != nil {
		return n, closeErr
	}

	return n, nil
}

// idleReader cancels the request when no data arrives within timeout
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.fired.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.fired.Load() {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}

func (ir *idleReader) expired() bool {
	return ir.fired.Load()
}

// Close releases idle connections
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func (f *Fetcher) do(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	return resp, nil
}
