package extract

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"tuber/internal/httputil"
	"tuber/internal/manifest"
	"tuber/internal/media"
)

// youtubeHosts are resolved through the configured Invidious instance.
var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com", "music.youtube.com"}

// itag 17 is 3GP, which no supported player handles.
const itag3GP = 17

// Invidious resolves YouTube videos through an Invidious instance API.
type Invidious struct {
	instance string
	hosts    []string
}

// NewInvidious returns the plugin querying instance. Extra hosts are
// treated as Invidious frontends and queried directly.
func NewInvidious(instance string, hosts ...string) *Invidious {
	return &Invidious{
		instance: strings.TrimSpace(instance),
		hosts:    lo.Uniq(append([]string{instance}, hosts...)),
	}
}

func (v *Invidious) Name() string  { return "invidious" }
func (v *Invidious) Priority() int { return 0 }

func (v *Invidious) Match(u *url.URL) bool {
	if !isHTTP(u) {
		return false
	}
	if !httputil.HostIn(u, youtubeHosts...) && !httputil.HostIn(u, v.hosts...) {
		return false
	}
	return youtubeID(u) != ""
}

// youtubeID pulls the video id out of the URL shapes YouTube and
// Invidious frontends use.
func youtubeID(u *url.URL) string {
	id := u.Query().Get("v")
	if id == "" && httputil.CanonicalHost(u) == "youtu.be" {
		id = strings.Trim(u.Path, "/")
	}
	if id == "" {
		id = pathID(u, "/embed/", "/shorts/", "/v/", "/live/")
	}
	if httputil.ValidateID(id) != nil {
		return ""
	}
	return id
}

type invidiousVideo struct {
	VideoID         string             `json:"videoId"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	LengthSeconds   int64              `json:"lengthSeconds"`
	LiveNow         bool               `json:"liveNow"`
	HLSURL          string             `json:"hlsUrl"`
	FormatStreams   []invidiousFormat  `json:"formatStreams"`
	AdaptiveFormats []invidiousFormat  `json:"adaptiveFormats"`
	Captions        []invidiousCaption `json:"captions"`
}

type invidiousFormat struct {
	URL        string `json:"url"`
	Itag       string `json:"itag"`
	Type       string `json:"type"`
	Bitrate    string `json:"bitrate"`
	Size       string `json:"size"`
	Resolution string `json:"resolution"`
	FPS        uint   `json:"fps"`
	Init       string `json:"init"`
	Index      string `json:"index"`
}

type invidiousCaption struct {
	Label        string `json:"label"`
	LanguageCode string `json:"languageCode"`
	URL          string `json:"url"`
}

func (v *Invidious) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	id := youtubeID(u)
	base := v.apiBase(u)

	var video invidiousVideo
	if err := fetchJSON(ctx, fetch, base+"/api/v1/videos/"+id, &video); err != nil {
		return nil, fmt.Errorf("invidious video %s: %w", id, err)
	}

	b := media.NewBuilder().
		SetID(lo.Ternary(video.VideoID != "", video.VideoID, id)).
		SetTitle(video.Title).
		SetDescription(video.Description).
		SetDuration(time.Duration(video.LengthSeconds) * time.Second)

	for _, c := range video.Captions {
		uri, err := httputil.ResolveURL(base, c.URL)
		if err != nil {
			continue
		}
		b.AddSubtitle(media.Subtitle{Language: c.LanguageCode, Label: c.Label, URL: uri})
	}

	if video.LiveNow && video.HLSURL != "" {
		hls, err := httputil.ResolveURL(base, video.HLSURL)
		if err != nil {
			return nil, media.WrapError(media.KindExtractionFailed, err, "invidious live playlist URL")
		}
		if err := addManifest(ctx, b, fetch, hls, media.HLS); err != nil {
			return nil, fmt.Errorf("invidious live playlist: %w", err)
		}
		return b.Build(), nil
	}

	for _, f := range video.FormatStreams {
		s, err := f.stream(base, false)
		if err != nil {
			b.Warnf("invidious: skipping format %s: %v", f.Itag, err)
			continue
		}
		if s != nil {
			b.AddStream(s)
		}
	}
	for _, f := range video.AdaptiveFormats {
		s, err := f.stream(base, true)
		if err != nil {
			b.Warnf("invidious: skipping adaptive format %s: %v", f.Itag, err)
			continue
		}
		if s != nil {
			b.AddAdaptiveStream(s)
		}
	}

	return b.Build(), nil
}

// apiBase returns the instance to query: the frontend the URL points
// at, or the configured instance for YouTube URLs.
func (v *Invidious) apiBase(u *url.URL) string {
	if httputil.HostIn(u, v.hosts...) {
		return u.Scheme + "://" + u.Host
	}
	return "https://" + v.instance
}

// stream maps one format entry. A nil stream with a nil error means the
// format is deliberately skipped.
func (f invidiousFormat) stream(base string, adaptive bool) (*media.Stream, error) {
	itag, err := strconv.ParseUint(f.Itag, 10, 32)
	if err != nil || itag == 0 {
		return nil, fmt.Errorf("invalid itag %q", f.Itag)
	}
	if itag == itag3GP {
		return nil, nil
	}

	uri, err := httputil.ResolveURL(base, f.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q", f.URL)
	}

	mime, video, audio := manifest.ParseMimeCodecs(f.Type)
	opts := []media.StreamOption{
		media.WithItag(uint(itag)),
		media.WithMimeType(mime),
		media.WithVideoCodec(video),
		media.WithAudioCodec(audio),
	}
	if bitrate, err := strconv.ParseUint(f.Bitrate, 10, 64); err == nil {
		opts = append(opts, media.WithBitrate(uint(bitrate)))
	}

	width, height := f.dimensions()
	if width > 0 || height > 0 {
		opts = append(opts,
			media.WithResolution(width, height),
			media.WithFPS(media.Rational{Num: uint32(f.FPS), Den: 1}),
		)
	}

	if adaptive {
		opts = append(opts, media.WithManifest(media.DASH))
		if r, err := media.ParseRange(f.Init); err == nil {
			opts = append(opts, media.WithInitRange(r))
		}
		if r, err := media.ParseRange(f.Index); err == nil {
			opts = append(opts, media.WithIndexRange(r))
		}
	}

	return media.NewStream(uri, opts...)
}

// dimensions reads "WxH" from size, falling back to the height in
// resolution ("720p").
func (f invidiousFormat) dimensions() (width, height uint) {
	if w, h, ok := strings.Cut(f.Size, "x"); ok {
		wi, errW := strconv.ParseUint(w, 10, 32)
		hi, errH := strconv.ParseUint(h, 10, 32)
		if errW == nil && errH == nil {
			return uint(wi), uint(hi)
		}
		return 0, 0
	}
	if h, err := strconv.ParseUint(strings.TrimSuffix(f.Resolution, "p"), 10, 32); err == nil {
		return 0, uint(h)
	}
	return 0, 0
}
