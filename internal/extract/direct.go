package extract

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

// DirectManifest resolves URLs that point straight at an HLS playlist or
// a DASH MPD.
type DirectManifest struct{}

func NewDirectManifest() *DirectManifest { return &DirectManifest{} }

func (d *DirectManifest) Name() string  { return "manifest" }
func (d *DirectManifest) Priority() int { return -10 }

func (d *DirectManifest) Match(u *url.URL) bool {
	return isHTTP(u) && manifestKind(u) != media.ManifestUnknown
}

func (d *DirectManifest) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	name := path.Base(u.Path)
	b := media.NewBuilder().
		SetID(strings.TrimSuffix(name, path.Ext(name))).
		SetTitle(name)

	res, err := fetchManifest(ctx, fetch, u.String(), manifestKind(u))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	b.SetDuration(res.Duration)
	b.AddAdaptiveStream(res.Streams...)
	b.Warn(res.Warnings...)

	return b.Build(), nil
}
