// Package httputil provides the fetch primitive used by extractor plugins,
// a hardened HTTP client behind it, and URL sanitization utilities.
package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tuber/internal/media"
)

const (
	// DefaultUserAgent is sent unless the configuration overrides it.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/121.0"

	// DefaultMaxBody caps how much of a response body is read.
	DefaultMaxBody = 10 * 1024 * 1024

	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON = "application/json"
	acceptAny  = "*/*"
)

// Request describes one HTTP request issued by a plugin. An empty
// Method means GET.
type Request struct {
	Method      string
	URL         string
	Accept      string
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// method returns the request method, defaulting to GET.
func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// HTMLRequest returns a request for a web page.
func HTMLRequest(url string) *Request {
	return &Request{URL: url, Accept: acceptHTML}
}

// JSONRequest returns a request for a JSON API endpoint.
func JSONRequest(url string) *Request {
	return &Request{URL: url, Accept: acceptJSON}
}

// ManifestRequest returns a request for an HLS or DASH manifest.
func ManifestRequest(url string) *Request {
	return &Request{URL: url, Accept: acceptAny}
}

// PostJSONRequest returns a POST of a JSON document to an API endpoint.
// contentType defaults to application/json.
func PostJSONRequest(url, contentType string, body []byte) *Request {
	if contentType == "" {
		contentType = acceptJSON
	}
	return &Request{Method: http.MethodPost, URL: url, Accept: acceptJSON, Body: body, ContentType: contentType}
}

// HeadRequest returns a request for the headers of url only.
func HeadRequest(url string) *Request {
	return &Request{Method: http.MethodHead, URL: url, Accept: acceptAny}
}

// Response is a fully read, successful response.
type Response struct {
	URL    string // final URL after redirects
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher is the network primitive plugins use. Implementations must
// honor ctx cancellation and report failures as media.KindFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// CancelNotifier is implemented by fetchers that want to be told when a
// request was aborted by cancellation before it completed.
type CancelNotifier interface {
	FetchCanceled(req *Request)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NewClient creates a hardened HTTP client with secure defaults.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  false,
			MaxIdleConnsPerHost: 5,
		},
	}
}

// HTTPFetcher is the default Fetcher backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	log       *logrus.Entry
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

func WithClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithMaxBody(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

func WithLogger(l *logrus.Entry) FetcherOption {
	return func(f *HTTPFetcher) { f.log = l }
}

// NewFetcher returns an HTTPFetcher with a 30s hardened client.
func NewFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    NewClient(0),
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBody,
		log:       logrus.WithField("component", "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs the request with browser-like headers.
func (f *HTTPFetcher) Fetch(ctx context.Context, r *Request) (*Response, error) {
	if err := ValidateURL(r.URL); err != nil {
		return nil, media.WrapError(media.KindFetchFailed, err, "invalid URL")
	}

	var reqBody io.Reader
	if len(r.Body) > 0 {
		reqBody = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method(), r.URL, reqBody)
	if err != nil {
		return nil, media.WrapError(media.KindFetchFailed, err, "creating request")
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	accept := r.Accept
	if accept == "" {
		accept = acceptAny
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	f.log.WithFields(logrus.Fields{"method": req.Method, "url": r.URL}).Debug("fetching")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, media.WrapError(media.KindFetchFailed, ctxErr, r.URL)
		}
		return nil, media.WrapError(media.KindFetchFailed, err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, media.Errorf(media.KindFetchFailed, "unexpected status %d for %s %s", resp.StatusCode, req.Method, r.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, media.WrapError(media.KindFetchFailed, err, "reading response")
	}
	if int64(len(body)) > f.maxBody {
		return nil, media.Errorf(media.KindFetchFailed, "response exceeds %d bytes: %s", f.maxBody, r.URL)
	}

	return &Response{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

// FetchCanceled logs an aborted request.
func (f *HTTPFetcher) FetchCanceled(r *Request) {
	f.log.WithField("url", r.URL).Debug("fetch canceled")
}

// IsCanceled reports whether err came from context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
