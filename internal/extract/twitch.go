package extract

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

const (
	twitchGQL      = "https://gql.twitch.tv/gql"
	twitchUsher    = "https://usher.ttvnw.net"
	twitchClientID = "kimne78kx3ncx6brgo4mv6wki5h1ko"
	twitchPlayer   = "https://player.twitch.tv"
)

var twitchHosts = []string{"twitch.tv", "clips.twitch.tv"}

// Top level paths that are site pages rather than channels.
var twitchReserved = []string{
	"directory", "downloads", "inventory", "jobs", "login", "p", "search",
	"settings", "signup", "subscriptions", "turbo", "videos", "wallet",
}

type twitchKind int

const (
	twitchChannel twitchKind = iota
	twitchVideo
	twitchClip
)

// twitchOp is a persisted GQL query known to the web player.
type twitchOp struct {
	name string
	hash string
}

var (
	opPlaybackToken = twitchOp{"PlaybackAccessToken", "0828119ded1c13477966434e15800ff57ddacf13ba1911c129dc2200705b0712"}
	opClipToken     = twitchOp{"VideoAccessToken_Clip", "36b89d2507fce29e5ca551df756d27c1cfe079e2609642b4390aa4c35796eb11"}
	opChannelMeta   = twitchOp{"StreamMetadata", "059c4653b788f5bdb2f5a2d2a24b0ddc3831a15079001a3d927556a96fb0517f"}
	opVideoMeta     = twitchOp{"VideoMetadata", "cb3b1eb2f2d2b2f65b8389ba446ec521d76c3aa44f5424a1b1d235fe21eb4806"}
	opClipMeta      = twitchOp{"ClipsTitle", "f6cca7f2fdfbfc2cecea0c88452500dae569191e58a265f97711f8f2a838f5b4"}
)

// Twitch resolves live channels, VODs and clips through the GQL API
// used by the embedded player.
type Twitch struct{}

func NewTwitch() *Twitch { return &Twitch{} }

func (t *Twitch) Name() string  { return "twitch" }
func (t *Twitch) Priority() int { return 0 }

func (t *Twitch) Match(u *url.URL) bool {
	if !isHTTP(u) || !httputil.HostIn(u, twitchHosts...) {
		return false
	}
	_, id := twitchTarget(u)
	return id != ""
}

// twitchTarget classifies u: /{channel}/clip/{slug} and clips.twitch.tv/{slug}
// are clips, /videos/{id} is a VOD, /{channel} is a live channel.
func twitchTarget(u *url.URL) (twitchKind, string) {
	segs := lo.Compact(strings.Split(u.Path, "/"))
	valid := func(id string) string {
		if httputil.ValidateID(id) != nil {
			return ""
		}
		return id
	}

	if httputil.CanonicalHost(u) == "clips.twitch.tv" {
		if len(segs) == 1 {
			return twitchClip, valid(segs[0])
		}
		return twitchClip, ""
	}

	switch {
	case len(segs) == 3 && segs[1] == "clip":
		return twitchClip, valid(segs[2])
	case len(segs) == 2 && segs[0] == "videos":
		return twitchVideo, valid(segs[1])
	case len(segs) == 1 && !lo.Contains(twitchReserved, strings.ToLower(segs[0])):
		return twitchChannel, valid(strings.ToLower(segs[0]))
	default:
		return twitchChannel, ""
	}
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Extensions    gqlExtensions  `json:"extensions"`
	Variables     map[string]any `json:"variables"`
}

type gqlExtensions struct {
	PersistedQuery struct {
		Version    int    `json:"version"`
		SHA256Hash string `json:"sha256Hash"`
	} `json:"persistedQuery"`
}

type gqlError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type twitchToken struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

type twitchResponse struct {
	Errors []gqlError `json:"errors"`
	Data   struct {
		StreamToken *twitchToken `json:"streamPlaybackAccessToken"`
		VideoToken  *twitchToken `json:"videoPlaybackAccessToken"`
		User        *struct {
			LastBroadcast struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"lastBroadcast"`
			Stream *struct {
				ID string `json:"id"`
			} `json:"stream"`
		} `json:"user"`
		Video *struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			Description   string `json:"description"`
			LengthSeconds int64  `json:"lengthSeconds"`
		} `json:"video"`
		Clip *struct {
			ID             string       `json:"id"`
			Title          string       `json:"title"`
			Token          *twitchToken `json:"playbackAccessToken"`
			VideoQualities []struct {
				SourceURL string  `json:"sourceURL"`
				FrameRate float64 `json:"frameRate"`
				Quality   string  `json:"quality"`
			} `json:"videoQualities"`
		} `json:"clip"`
	} `json:"data"`
}

func (t *Twitch) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	kind, id := twitchTarget(u)
	b := media.NewBuilder().SetID(id)

	switch kind {
	case twitchClip:
		if err := t.extractClip(ctx, fetch, id, b); err != nil {
			return nil, err
		}
	default:
		if err := t.extractHLS(ctx, fetch, kind, id, b); err != nil {
			return nil, err
		}
	}

	if b.StreamCount() == 0 {
		return nil, media.Errorf(media.KindExtractionFailed, "twitch %s: no playable streams", id)
	}
	return b.Build(), nil
}

// extractHLS resolves a live channel or VOD: an access token signs the
// usher playlist request.
func (t *Twitch) extractHLS(ctx context.Context, fetch httputil.Fetcher, kind twitchKind, id string, b *media.Builder) error {
	live := kind == twitchChannel
	tokenResp, err := t.gql(ctx, fetch, opPlaybackToken, map[string]any{
		"isLive":     live,
		"login":      lo.Ternary(live, id, ""),
		"isVod":      !live,
		"vodID":      lo.Ternary(live, "", id),
		"playerType": "embed",
	})
	if err != nil {
		return err
	}
	token := lo.Ternary(live, tokenResp.Data.StreamToken, tokenResp.Data.VideoToken)
	if token == nil || token.Value == "" || token.Signature == "" {
		return media.Errorf(media.KindExtractionFailed, "twitch %s: could not read access token", id)
	}

	if live {
		meta, err := t.gql(ctx, fetch, opChannelMeta, map[string]any{"channelLogin": id})
		if err != nil {
			return err
		}
		user := meta.Data.User
		if user == nil || user.Stream == nil || user.Stream.ID == "" {
			return media.Errorf(media.KindExtractionFailed, "twitch %s: channel is not streaming", id)
		}
		b.SetID(user.LastBroadcast.ID).SetTitle(user.LastBroadcast.Title)
	} else {
		meta, err := t.gql(ctx, fetch, opVideoMeta, map[string]any{"channelLogin": "", "videoID": id})
		if err != nil {
			return err
		}
		if v := meta.Data.Video; v != nil {
			b.SetID(v.ID).
				SetTitle(v.Title).
				SetDescription(v.Description).
				SetDuration(time.Duration(v.LengthSeconds) * time.Second)
		}
	}

	if err := addManifest(ctx, b, fetch, usherURL(kind, id, token), media.HLS); err != nil {
		return fmt.Errorf("twitch playlist: %w", err)
	}
	return nil
}

// extractClip reads clip renditions from the clip token response. Clips
// have no playlist; each rendition is a signed MP4.
func (t *Twitch) extractClip(ctx context.Context, fetch httputil.Fetcher, slug string, b *media.Builder) error {
	resp, err := t.gql(ctx, fetch, opClipToken, map[string]any{"slug": slug})
	if err != nil {
		return err
	}
	clip := resp.Data.Clip
	if clip == nil || clip.Token == nil || clip.Token.Value == "" || clip.Token.Signature == "" {
		return media.Errorf(media.KindExtractionFailed, "twitch clip %s: could not read access token", slug)
	}
	if len(clip.VideoQualities) == 0 {
		return media.Errorf(media.KindExtractionFailed, "twitch clip %s: could not find clip streams", slug)
	}

	signed := url.Values{"sig": {clip.Token.Signature}, "token": {clip.Token.Value}}.Encode()
	for i, q := range clip.VideoQualities {
		if q.SourceURL == "" {
			continue
		}
		height, _ := strconv.ParseFloat(q.Quality, 64)
		s, err := media.NewStream(q.SourceURL+"?"+signed,
			media.WithItag(uint(i+1)),
			media.WithMimeType(media.VideoMP4),
			media.WithVideoCodec("avc1"),
			media.WithAudioCodec("mp4a"),
			media.WithResolution(0, uint(height)),
			media.WithFPS(media.Rational{Num: uint32(q.FrameRate + 0.5), Den: 1}),
		)
		if err != nil {
			b.Warnf("twitch: skipping clip quality %q: %v", q.Quality, err)
			continue
		}
		b.AddStream(s)
	}

	meta, err := t.gql(ctx, fetch, opClipMeta, map[string]any{"slug": slug})
	if err != nil {
		return err
	}
	if c := meta.Data.Clip; c != nil {
		b.SetID(c.ID).SetTitle(c.Title)
	}
	return nil
}

// gql runs one persisted query and fails on GQL level errors.
func (t *Twitch) gql(ctx context.Context, fetch httputil.Fetcher, op twitchOp, vars map[string]any) (*twitchResponse, error) {
	req := gqlRequest{OperationName: op.name, Variables: vars}
	req.Extensions.PersistedQuery.Version = 1
	req.Extensions.PersistedQuery.SHA256Hash = op.hash

	headers := map[string]string{
		"Client-ID": twitchClientID,
		"Referer":   twitchPlayer,
		"Origin":    twitchPlayer,
	}
	var resp twitchResponse
	if err := postJSON(ctx, fetch, twitchGQL, "", headers, req, &resp); err != nil {
		return nil, fmt.Errorf("twitch %s: %w", op.name, err)
	}
	if len(resp.Errors) > 0 {
		e := resp.Errors[0]
		return nil, media.Errorf(media.KindExtractionFailed, "twitch %s: %s", op.name,
			lo.Ternary(e.Message != "", e.Message, e.Error))
	}
	return &resp, nil
}

// usherURL returns the signed master playlist of a channel or VOD.
func usherURL(kind twitchKind, id string, token *twitchToken) string {
	base := lo.Ternary(kind == twitchChannel,
		httputil.BuildURL(twitchUsher, "api", "channel", "hls", id+".m3u8"),
		httputil.BuildURL(twitchUsher, "vod", id+".m3u8"))
	q := url.Values{
		"allow_source":     {"true"},
		"allow_audio_only": {"true"},
		"allow_spectre":    {"false"},
		"fast_bread":       {"true"},
		"p":                {strconv.Itoa(rand.IntN(9000000) + 1000000)},
		"player":           {"twitchweb"},
		"player_backend":   {"mediaplayer"},
		"sig":              {token.Signature},
		"token":            {token.Value},
	}
	return base + "?" + q.Encode()
}
