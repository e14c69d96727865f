package extract

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/net/publicsuffix"

	"tuber/internal/httputil"
	"tuber/internal/manifest"
	"tuber/internal/media"
)

const pipedFormat3GP = "v3GPP"

// Piped resolves YouTube videos opened on a Piped frontend through the
// matching Piped API instance.
type Piped struct {
	hosts    []string
	apiHosts []string
}

// NewPiped returns the plugin for the given frontend hosts. Each frontend
// is served by the API host sharing its registrable domain, or by the
// first API host when none does.
func NewPiped(hosts, apiHosts []string) *Piped {
	clean := func(hs []string) []string {
		return lo.Uniq(lo.Compact(lo.Map(hs, func(h string, _ int) string {
			return strings.ToLower(strings.TrimSpace(h))
		})))
	}
	return &Piped{hosts: clean(hosts), apiHosts: clean(apiHosts)}
}

func (p *Piped) Name() string  { return "piped" }
func (p *Piped) Priority() int { return 0 }

func (p *Piped) Match(u *url.URL) bool {
	return isHTTP(u) && len(p.apiHosts) > 0 && httputil.HostIn(u, p.hosts...) && youtubeID(u) != ""
}

// apiHost picks the API instance for the frontend u points at.
func (p *Piped) apiHost(u *url.URL) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(httputil.CanonicalHost(u))
	if err == nil {
		for _, h := range p.apiHosts {
			if d, err := publicsuffix.EffectiveTLDPlusOne(h); err == nil && d == domain {
				return h
			}
		}
	}
	return p.apiHosts[0]
}

type pipedVideo struct {
	Error        string          `json:"error"`
	Message      string          `json:"message"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Duration     int64           `json:"duration"`
	Livestream   bool            `json:"livestream"`
	HLS          string          `json:"hls"`
	VideoStreams []pipedStream   `json:"videoStreams"`
	AudioStreams []pipedStream   `json:"audioStreams"`
	Subtitles    []pipedSubtitle `json:"subtitles"`
}

type pipedStream struct {
	URL        string `json:"url"`
	Format     string `json:"format"`
	MimeType   string `json:"mimeType"`
	Codec      string `json:"codec"`
	VideoOnly  bool   `json:"videoOnly"`
	Bitrate    uint   `json:"bitrate"`
	Width      uint   `json:"width"`
	Height     uint   `json:"height"`
	FPS        uint   `json:"fps"`
	InitStart  uint64 `json:"initStart"`
	InitEnd    uint64 `json:"initEnd"`
	IndexStart uint64 `json:"indexStart"`
	IndexEnd   uint64 `json:"indexEnd"`
}

type pipedSubtitle struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func (p *Piped) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	id := youtubeID(u)
	api := httputil.BuildURL("https://"+p.apiHost(u), "streams", id)

	var video pipedVideo
	if err := fetchJSON(ctx, fetch, api, &video); err != nil {
		return nil, fmt.Errorf("piped video %s: %w", id, err)
	}
	if video.Error != "" {
		return nil, media.Errorf(media.KindExtractionFailed, "piped video %s: %s", id,
			lo.Ternary(video.Message != "", video.Message, video.Error))
	}

	b := media.NewBuilder().
		SetID(id).
		SetTitle(video.Title).
		SetDescription(video.Description).
		SetDuration(time.Duration(video.Duration) * time.Second)

	for _, s := range video.Subtitles {
		if httputil.ValidateURL(s.URL) != nil {
			continue
		}
		b.AddSubtitle(media.Subtitle{Language: s.Code, Label: s.Name, URL: s.URL})
	}

	if video.Livestream && video.HLS != "" {
		if err := addManifest(ctx, b, fetch, video.HLS, media.HLS); err != nil {
			return nil, fmt.Errorf("piped live playlist: %w", err)
		}
		return b.Build(), nil
	}

	for _, s := range video.VideoStreams {
		if s.Format == pipedFormat3GP {
			continue
		}
		st, err := s.stream(false)
		if err != nil {
			b.Warnf("piped: skipping video stream: %v", err)
			continue
		}
		if s.VideoOnly {
			b.AddAdaptiveStream(st)
		} else {
			b.AddStream(st)
		}
	}
	for _, s := range video.AudioStreams {
		st, err := s.stream(true)
		if err != nil {
			b.Warnf("piped: skipping audio stream: %v", err)
			continue
		}
		b.AddAdaptiveStream(st)
	}

	if b.StreamCount() == 0 {
		return nil, media.Errorf(media.KindExtractionFailed, "piped video %s: no playable streams", id)
	}
	return b.Build(), nil
}

// stream maps one stream entry. Adaptive entries carry their byte ranges
// and are addressed through a generated DASH manifest.
func (s pipedStream) stream(audioOnly bool) (*media.Stream, error) {
	if err := httputil.ValidateURL(s.URL); err != nil {
		return nil, err
	}

	mime := media.ParseMimeType(s.MimeType)
	opts := []media.StreamOption{
		media.WithMimeType(mime),
		media.WithBitrate(s.Bitrate),
	}
	if itag, err := strconv.ParseUint(queryOf(s.URL).Get("itag"), 10, 32); err == nil {
		opts = append(opts, media.WithItag(uint(itag)))
	}

	switch {
	case audioOnly:
		opts = append(opts, media.WithAudioCodec(s.Codec))
	case s.VideoOnly:
		opts = append(opts, media.WithVideoCodec(s.Codec))
	default:
		video, audio := manifest.SplitCodecs(s.Codec)
		opts = append(opts,
			media.WithVideoCodec(lo.Ternary(video != "", video, "avc1")),
			media.WithAudioCodec(lo.Ternary(audio != "", audio, "mp4a")),
		)
	}

	if !audioOnly && (s.Width > 0 || s.Height > 0) {
		opts = append(opts, media.WithResolution(s.Width, s.Height))
		if s.FPS > 0 {
			opts = append(opts, media.WithFPS(media.Rational{Num: uint32(s.FPS), Den: 1}))
		}
	}

	if audioOnly || s.VideoOnly {
		opts = append(opts, media.WithManifest(media.DASH))
		if s.InitEnd > 0 {
			opts = append(opts, media.WithInitRange(media.Range{Start: s.InitStart, End: s.InitEnd}))
		}
		if s.IndexEnd > 0 {
			opts = append(opts, media.WithIndexRange(media.Range{Start: s.IndexStart, End: s.IndexEnd}))
		}
	}

	return media.NewStream(s.URL, opts...)
}

// queryOf returns the query of rawURL, empty when it does not parse.
func queryOf(rawURL string) url.Values {
	u, err := url.Parse(rawURL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}
