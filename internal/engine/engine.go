// Package engine drives one resolution from a URI to a MediaInfo: it
// picks the plugin, runs it against a staged fetcher and classifies the
// outcome. The blocking and the asynchronous entry points share one code
// path, so they always produce the same result for the same input.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tuber/internal/extract"
	"tuber/internal/httputil"
	"tuber/internal/media"
)

// State is a step of a resolution.
type State int

const (
	StateMatching State = iota
	StateFetching
	StateParsing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateMatching:
		return "matching"
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer is told about every state transition of a resolution. It runs
// on the resolving goroutine and must not block.
type Observer func(resolution string, s State)

// youtubeIDPattern matches a bare YouTube video id.
var youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Engine resolves URIs. It is safe for concurrent use; each resolution
// has its own state.
type Engine struct {
	reg      *extract.Registry
	fetch    httputil.Fetcher
	timeout  time.Duration
	log      *logrus.Entry
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds every resolution. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New returns an engine resolving through reg with fetch as the only
// network access.
func New(reg *extract.Registry, fetch httputil.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		fetch: fetch,
		log:   logrus.WithField("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NormalizeURI validates raw and turns a bare 11 character YouTube id
// into a watch URL. It never does I/O.
func NormalizeURI(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, media.Errorf(media.KindInvalidArgument, "empty URI")
	}
	if youtubeIDPattern.MatchString(raw) {
		raw = "https://www.youtube.com/watch?v=" + raw
	}
	if err := httputil.ValidateURL(raw); err != nil {
		return nil, media.WrapError(media.KindInvalidArgument, err, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, media.WrapError(media.KindInvalidArgument, err, raw)
	}
	return u, nil
}

// Resolve runs a resolution to completion on the calling goroutine.
func (e *Engine) Resolve(ctx context.Context, raw string) (*media.MediaInfo, error) {
	u, err := NormalizeURI(raw)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, u)
}

// Start begins a resolution in the background. Invalid input is
// reported here, before anything is started.
func (e *Engine) Start(ctx context.Context, raw string) (*Pending, error) {
	u, err := NormalizeURI(raw)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pending{done: make(chan Completion, 1), cancel: cancel}
	go func() {
		defer cancel()
		info, err := e.run(ctx, u)
		p.finish(ctx, info, err)
	}()
	return p, nil
}

func (e *Engine) run(ctx context.Context, u *url.URL) (info *media.MediaInfo, err error) {
	id := uuid.NewString()
	log := e.log.WithFields(logrus.Fields{"resolution": id, "uri": u.String()})
	tr := &tracker{id: id, observer: e.observer}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if err != nil {
			tr.set(StateFailed)
			log.WithError(err).Debug("resolution failed")
			return
		}
		tr.set(StateDone)
		for _, w := range info.Warnings() {
			log.Warn(w)
		}
		log.WithField("streams", len(info.Streams())+len(info.AdaptiveStreams())).Debug("resolution done")
	}()

	tr.set(StateMatching)
	ext, err := e.reg.Resolve(u)
	if err != nil {
		return nil, err
	}
	log = log.WithField("plugin", ext.Name())
	log.Debug("resolving")

	sf := &stagedFetcher{next: e.fetch, tr: tr}
	info, err = safeExtract(ctx, ext, u, sf)
	if err != nil {
		return nil, classify(ctx, ext, err)
	}
	if info == nil {
		return nil, media.Errorf(media.KindExtractionFailed, "plugin %s returned no media info", ext.Name())
	}
	return info, nil
}

// safeExtract runs the plugin, turning a panic into an ExtractionFailed error.
func safeExtract(ctx context.Context, ext extract.Extractor, u *url.URL, fetch httputil.Fetcher) (info *media.MediaInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = media.Errorf(media.KindExtractionFailed, "plugin %s panicked: %v", ext.Name(), r)
		}
	}()
	return ext.Extract(ctx, u, fetch)
}

// classify maps a plugin error onto the error taxonomy.
func classify(ctx context.Context, ext extract.Extractor, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if media.KindOf(err) == media.KindFetchFailed {
			return err
		}
		return media.WrapError(media.KindFetchFailed, ctxErr, "resolution aborted")
	}
	if media.KindOf(err) != media.KindUnknown {
		return err
	}
	return media.WrapError(media.KindExtractionFailed, err, "plugin "+ext.Name())
}

// tracker reports the state transitions of one resolution.
type tracker struct {
	id       string
	observer Observer
}

func (t *tracker) set(s State) {
	if t.observer != nil {
		t.observer(t.id, s)
	}
}

// stagedFetcher is the fetcher plugins see. It moves the resolution
// between Fetching and Parsing and tells a CancelNotifier about every
// request that cancellation cut short.
type stagedFetcher struct {
	next httputil.Fetcher
	tr   *tracker
}

func (f *stagedFetcher) Fetch(ctx context.Context, req *httputil.Request) (*httputil.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, media.WrapError(media.KindFetchFailed, err, req.URL)
	}

	f.tr.set(StateFetching)
	defer f.tr.set(StateParsing)

	resp, err := f.next.Fetch(ctx, req)
	if err != nil {
		// A fetch that completed before the context ended was not canceled.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if n, ok := f.next.(httputil.CancelNotifier); ok {
				n.FetchCanceled(req)
			}
			if media.KindOf(err) != media.KindFetchFailed {
				return nil, media.WrapError(media.KindFetchFailed, ctxErr, req.URL)
			}
		}
		return nil, err
	}
	return resp, nil
}
