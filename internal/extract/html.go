package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"tuber/internal/httputil"
	"tuber/internal/manifest"
	"tuber/internal/media"
)

// HTML is the fallback plugin. It scrapes a page for Open Graph video
// metadata and <video> elements.
type HTML struct{}

func NewHTML() *HTML { return &HTML{} }

func (h *HTML) Name() string  { return "html" }
func (h *HTML) Priority() int { return -100 }

func (h *HTML) Match(u *url.URL) bool { return isHTTP(u) }

// pageSource is one media reference found in a page.
type pageSource struct {
	URL    string
	Type   string
	Width  uint
	Height uint
}

func (h *HTML) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	resp, err := fetch.Fetch(ctx, httputil.HTMLRequest(u.String()))
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, media.WrapError(media.KindExtractionFailed, err, "parsing page")
	}

	b := media.NewBuilder().
		SetTitle(pageTitle(doc)).
		SetDescription(metaContent(doc, "og:description", "description")).
		SetID(path.Base(u.Path))

	sources := lo.UniqBy(pageSources(doc), func(s pageSource) string { return s.URL })
	if len(sources) == 0 {
		return nil, media.Errorf(media.KindExtractionFailed, "no video found on %s", u)
	}

	for _, src := range sources {
		uri, err := httputil.ResolveURL(resp.URL, src.URL)
		if err != nil {
			b.Warnf("html: skipping source %q: %v", src.URL, err)
			continue
		}

		if kind := sourceManifestKind(uri, src.Type); kind != media.ManifestUnknown {
			if err := addManifest(ctx, b, fetch, uri, kind); err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				b.Warnf("html: skipping manifest %s: %v", uri, err)
			}
			continue
		}

		mime, video, audio := manifest.ParseMimeCodecs(src.Type)
		s, err := media.NewStream(uri,
			media.WithMimeType(mime),
			media.WithVideoCodec(video),
			media.WithAudioCodec(audio),
			media.WithResolution(src.Width, src.Height),
		)
		if err != nil {
			b.Warnf("html: skipping source %s: %v", uri, err)
			continue
		}
		b.AddStream(s)
	}

	return b.Build(), nil
}

func pageTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// metaContent returns the content of the first <meta> whose property or
// name is one of keys.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)).First()
		if c := strings.TrimSpace(sel.AttrOr("content", "")); c != "" {
			return c
		}
	}
	return ""
}

// pageSources collects og:video metadata and <video> sources in document order.
func pageSources(doc *goquery.Document) []pageSource {
	var sources []pageSource

	og := metaContent(doc, "og:video:secure_url", "og:video:url", "og:video")
	if og != "" {
		sources = append(sources, pageSource{
			URL:    og,
			Type:   metaContent(doc, "og:video:type"),
			Width:  atou(metaContent(doc, "og:video:width")),
			Height: atou(metaContent(doc, "og:video:height")),
		})
	}

	doc.Find("video").Each(func(_ int, v *goquery.Selection) {
		width := atou(v.AttrOr("width", ""))
		height := atou(v.AttrOr("height", ""))

		if src := strings.TrimSpace(v.AttrOr("src", "")); src != "" {
			sources = append(sources, pageSource{URL: src, Type: v.AttrOr("type", ""), Width: width, Height: height})
		}
		v.Find("source").Each(func(_ int, s *goquery.Selection) {
			src := strings.TrimSpace(s.AttrOr("src", ""))
			if src == "" {
				return
			}
			sources = append(sources, pageSource{URL: src, Type: s.AttrOr("type", ""), Width: width, Height: height})
		})
	})

	return sources
}

func sourceManifestKind(uri, typ string) media.ManifestType {
	switch strings.ToLower(strings.TrimSpace(strings.Split(typ, ";")[0])) {
	case "application/x-mpegurl", "application/vnd.apple.mpegurl", "audio/mpegurl":
		return media.HLS
	case "application/dash+xml":
		return media.DASH
	}
	u, err := url.Parse(uri)
	if err != nil {
		return media.ManifestUnknown
	}
	return manifestKind(u)
}

func atou(s string) uint {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint(n)
}
