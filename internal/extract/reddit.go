package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

const redditVideoPrefix = "https://v.redd.it/"

var redditHosts = []string{"reddit.com", "old.reddit.com", "new.reddit.com", "redditmedia.com"}

// redditHeaders are sent with every request and handed to players.
var redditHeaders = map[string]string{
	"Origin":  "https://www.reddit.com",
	"Referer": "https://www.reddit.com/",
}

// Reddit resolves videos hosted on v.redd.it from a post URL.
type Reddit struct{}

func NewReddit() *Reddit { return &Reddit{} }

func (r *Reddit) Name() string  { return "reddit" }
func (r *Reddit) Priority() int { return 0 }

func (r *Reddit) Match(u *url.URL) bool {
	return isHTTP(u) && httputil.HostIn(u, redditHosts...) && strings.Contains(u.Path, "/comments/")
}

type redditListing []struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title               string       `json:"title"`
	IsVideo             bool         `json:"is_video"`
	URL                 string       `json:"url"`
	URLOverriddenByDest string       `json:"url_overridden_by_dest"`
	Media               *redditMedia `json:"media"`
	SecureMedia         *redditMedia `json:"secure_media"`
}

type redditMedia struct {
	RedditVideo *redditVideo `json:"reddit_video"`
}

type redditVideo struct {
	Duration int64  `json:"duration"`
	HLSURL   string `json:"hls_url"`
}

func (r *Reddit) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	api := (&url.URL{Scheme: "https", Host: u.Host, Path: strings.TrimSuffix(u.Path, "/") + ".json"}).String()

	req := httputil.JSONRequest(api)
	req.Headers = redditHeaders
	resp, err := fetch.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reddit post: %w", err)
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, media.WrapError(media.KindExtractionFailed, err, "decoding reddit post")
	}
	if len(listing) == 0 || len(listing[0].Data.Children) == 0 {
		return nil, media.Errorf(media.KindExtractionFailed, "reddit response has no post data")
	}
	post := listing[0].Data.Children[0].Data

	target := post.URL
	if target == "" {
		target = post.URLOverriddenByDest
	}
	if !post.IsVideo {
		return nil, media.Errorf(media.KindExtractionFailed, "reddit post is not a reddit video (links to %q)", target)
	}
	id, ok := strings.CutPrefix(target, redditVideoPrefix)
	if !ok || id == "" {
		return nil, media.Errorf(media.KindExtractionFailed, "reddit post is missing the video id")
	}

	video := post.video()
	if video == nil {
		return nil, media.Errorf(media.KindExtractionFailed, "reddit post is missing video info")
	}
	if video.HLSURL == "" {
		return nil, media.Errorf(media.KindExtractionFailed, "reddit video has no playlist")
	}

	b := media.NewBuilder().
		SetID(strings.Trim(id, "/")).
		SetTitle(post.Title).
		SetDuration(time.Duration(video.Duration) * time.Second)
	for k, v := range redditHeaders {
		b.SetRequestHeader(k, v)
	}

	res, err := fetchManifest(ctx, fetch, video.HLSURL, media.HLS)
	if err != nil {
		return nil, fmt.Errorf("reddit playlist: %w", err)
	}
	for _, s := range res.Streams {
		b.AddAdaptiveStream(withAudioBitrate(s))
	}
	b.Warn(res.Warnings...)

	return b.Build(), nil
}

func (p redditPost) video() *redditVideo {
	for _, m := range []*redditMedia{p.Media, p.SecureMedia} {
		if m != nil && m.RedditVideo != nil {
			return m.RedditVideo
		}
	}
	return nil
}

var redditAudioName = regexp.MustCompile(`^HLS_AUDIO_(\d+)`)

// withAudioBitrate fills in the bitrate of audio-only renditions, which
// reddit encodes in the file name (HLS_AUDIO_160_K.m3u8 is 160 kb/s).
func withAudioBitrate(s *media.Stream) *media.Stream {
	if s.Bitrate() != 0 || !s.AudioOnly() {
		return s
	}
	u, err := url.Parse(s.URI())
	if err != nil {
		return s
	}
	m := redditAudioName.FindStringSubmatch(path.Base(u.Path))
	if m == nil {
		return s
	}
	kbps, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return s
	}
	if updated, err := s.With(media.WithBitrate(uint(kbps) * 1000)); err == nil {
		return updated
	}
	return s
}
