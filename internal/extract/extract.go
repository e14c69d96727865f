// Package extract turns web page URIs into MediaInfo through site
// specific plugins, and picks the plugin responsible for a URI.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"tuber/internal/httputil"
	"tuber/internal/manifest"
	"tuber/internal/media"
)

// Extractor resolves URIs of one site or site family.
type Extractor interface {
	// Name identifies the plugin in the registry, logs and config.
	Name() string

	// Priority breaks ties when several plugins match a URI; highest wins.
	Priority() int

	// Match reports whether the plugin handles u. It must not do I/O.
	Match(u *url.URL) bool

	// Extract fetches whatever the site needs through fetch and builds
	// the MediaInfo. Every network access goes through fetch.
	Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error)
}

// fetchJSON GETs rawURL and decodes its JSON body into v.
func fetchJSON(ctx context.Context, fetch httputil.Fetcher, rawURL string, v any) error {
	return doJSON(ctx, fetch, httputil.JSONRequest(rawURL), v)
}

// postJSON POSTs body encoded as JSON and decodes the response into v.
func postJSON(ctx context.Context, fetch httputil.Fetcher, rawURL, contentType string, headers map[string]string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return media.WrapError(media.KindExtractionFailed, err, "encoding request for "+rawURL)
	}
	req := httputil.PostJSONRequest(rawURL, contentType, data)
	req.Headers = headers
	return doJSON(ctx, fetch, req, v)
}

func doJSON(ctx context.Context, fetch httputil.Fetcher, req *httputil.Request, v any) error {
	resp, err := fetch.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return media.WrapError(media.KindExtractionFailed, err, "decoding "+req.URL)
	}
	return nil
}

// fetchManifest GETs a manifest and parses it. When kind is unknown the
// format is sniffed from the body.
func fetchManifest(ctx context.Context, fetch httputil.Fetcher, rawURL string, kind media.ManifestType) (*manifest.Result, error) {
	resp, err := fetch.Fetch(ctx, httputil.ManifestRequest(rawURL))
	if err != nil {
		return nil, err
	}

	if kind == media.ManifestUnknown {
		kind = sniffManifest(resp.Body)
	}

	switch kind {
	case media.HLS:
		return manifest.ParseHLS(resp.Body, resp.URL)
	case media.DASH:
		return manifest.ParseDASH(resp.Body, resp.URL)
	default:
		return nil, media.NewManifestError("unknown", "document is neither HLS nor DASH")
	}
}

func sniffManifest(body []byte) media.ManifestType {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\ufeff")))
	switch {
	case bytes.HasPrefix(trimmed, []byte("#EXTM3U")):
		return media.HLS
	case bytes.Contains(trimmed[:min(len(trimmed), 1024)], []byte("<MPD")):
		return media.DASH
	default:
		return media.ManifestUnknown
	}
}

// manifestKind guesses the manifest type from a URL path extension.
func manifestKind(u *url.URL) media.ManifestType {
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8":
		return media.HLS
	case ".mpd":
		return media.DASH
	default:
		return media.ManifestUnknown
	}
}

// addManifest parses a manifest into the builder's adaptive streams,
// carrying over its warnings.
func addManifest(ctx context.Context, b *media.Builder, fetch httputil.Fetcher, rawURL string, kind media.ManifestType) error {
	res, err := fetchManifest(ctx, fetch, rawURL, kind)
	if err != nil {
		return err
	}
	b.AddAdaptiveStream(res.Streams...)
	b.Warn(res.Warnings...)
	return nil
}

// pathID returns the first path segment following one of prefixes.
func pathID(u *url.URL, prefixes ...string) string {
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(u.Path, p)
		if !ok {
			continue
		}
		id, _, _ := strings.Cut(rest, "/")
		if id != "" {
			return id
		}
	}
	return ""
}

func isHTTP(u *url.URL) bool {
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
