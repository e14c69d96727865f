// Package client is the public entry point of tuber. A Client turns a
// URI (or a bare YouTube video id) into a MediaInfo describing every
// playable stream of the referenced video.
//
//	c, err := client.New()
//	info, err := c.FetchMediaInfo(ctx, "https://youtu.be/dQw4w9WgXcQ")
package client

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tuber/internal/config"
	"tuber/internal/engine"
	"tuber/internal/extract"
	"tuber/internal/httputil"
	"tuber/internal/media"
)

type (
	MediaInfo  = media.MediaInfo
	Stream     = media.Stream
	Subtitle   = media.Subtitle
	Pending    = engine.Pending
	Completion = engine.Completion
	Extractor  = extract.Extractor
)

// Errors returned by the client; match them with errors.Is.
var (
	ErrInvalidArgument     = media.ErrInvalidArgument
	ErrNoMatchingExtractor = media.ErrNoMatchingExtractor
	ErrAmbiguousExtractor  = media.ErrAmbiguousExtractor
	ErrFetchFailed         = media.ErrFetchFailed
	ErrManifestParse       = media.ErrManifestParse
	ErrExtractionFailed    = media.ErrExtractionFailed
	ErrCanceled            = engine.ErrCanceled
)

// Client resolves media URIs. It is safe for concurrent use.
type Client struct {
	cfg    *config.Config
	fetch  httputil.Fetcher
	reg    *extract.Registry
	log    *logrus.Entry
	obs    engine.Observer
	engine *engine.Engine
}

// Option configures a Client.
type Option func(*Client)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithFetcher replaces the HTTP fetcher every plugin goes through.
func WithFetcher(f httputil.Fetcher) Option {
	return func(c *Client) { c.fetch = f }
}

// WithRegistry replaces the built-in plugin set.
func WithRegistry(r *extract.Registry) Option {
	return func(c *Client) { c.reg = r }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l }
}

// WithObserver reports the state transitions of every resolution.
func WithObserver(o engine.Observer) Option {
	return func(c *Client) { c.obs = o }
}

// New builds a Client. Without options it uses the default configuration,
// a real HTTP fetcher and the built-in plugins.
func New(opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.cfg == nil {
		c.cfg = config.Default()
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}

	timeout, err := c.cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	if c.fetch == nil {
		c.fetch = httputil.NewFetcher(
			httputil.WithClient(httputil.NewClient(timeout)),
			httputil.WithUserAgent(c.cfg.UserAgent),
			httputil.WithMaxBody(c.cfg.MaxBodyBytes()),
			httputil.WithLogger(c.log.WithField("component", "fetch")),
		)
	}
	if c.reg == nil {
		c.reg = extract.NewDefault(c.cfg)
	}

	c.engine = engine.New(c.reg, c.fetch,
		engine.WithTimeout(timeout),
		engine.WithLogger(c.log.WithField("component", "engine")),
		engine.WithObserver(c.obs),
	)
	return c, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config { return c.cfg }

// Fetcher returns the fetcher plugins use, for follow-up downloads such
// as subtitles.
func (c *Client) Fetcher() httputil.Fetcher { return c.fetch }

// Plugins lists the registered plugins, highest priority first.
func (c *Client) Plugins() []Extractor { return c.reg.List() }

// Register adds a plugin to the client's registry.
func (c *Client) Register(ext Extractor) error { return c.reg.Register(ext) }

// FetchMediaInfo resolves uri, blocking until it is done or ctx ends.
func (c *Client) FetchMediaInfo(ctx context.Context, uri string) (*MediaInfo, error) {
	return c.engine.Resolve(ctx, uri)
}

// FetchMediaInfoAsync starts resolving uri in the background. Invalid
// input fails here and nothing is started.
func (c *Client) FetchMediaInfoAsync(ctx context.Context, uri string) (*Pending, error) {
	return c.engine.Start(ctx, uri)
}

// FetchMediaInfoFinish waits for a resolution started with
// FetchMediaInfoAsync.
func (c *Client) FetchMediaInfoFinish(ctx context.Context, p *Pending) (*MediaInfo, error) {
	if p == nil {
		return nil, media.Errorf(media.KindInvalidArgument, "nil pending resolution")
	}
	return p.Wait(ctx)
}
