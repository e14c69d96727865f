package extract

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

const (
	lbryProxy       = "https://api.na-backend.odysee.com/api/v1/proxy"
	lbryContentType = "application/json-rpc"
	mimeHLS         = "application/x-mpegurl"
)

var lbryHosts = []string{"odysee.com"}

// LBRY resolves Odysee claims through the LBRY JSON-RPC proxy.
type LBRY struct{}

func NewLBRY() *LBRY { return &LBRY{} }

func (l *LBRY) Name() string  { return "lbry" }
func (l *LBRY) Priority() int { return 0 }

func (l *LBRY) Match(u *url.URL) bool {
	return isHTTP(u) && httputil.HostIn(u, lbryHosts...) && lbryClaim(u) != ""
}

// lbryClaim returns the claim path, "@channel:x/name:y", with the
// fragment kept since it can carry the claim id.
func lbryClaim(u *url.URL) string {
	claim, ok := strings.CutPrefix(u.Path, "/")
	if !ok || !strings.HasPrefix(claim, "@") || strings.TrimRight(claim, "/") == "@" {
		return ""
	}
	if u.Fragment != "" {
		claim += "#" + u.Fragment
	}
	return claim
}

type lbryRPC struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type lbryError struct {
	Message string `json:"message"`
}

type lbryGetResponse struct {
	Error  *lbryError `json:"error"`
	Result struct {
		StreamingURL string `json:"streaming_url"`
	} `json:"result"`
}

type lbryResolveResponse struct {
	Error  *lbryError                `json:"error"`
	Result map[string]lbryResolution `json:"result"`
}

type lbryResolution struct {
	Value *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Video       struct {
			Duration int64 `json:"duration"`
			Width    uint  `json:"width"`
			Height   uint  `json:"height"`
		} `json:"video"`
		Source struct {
			MediaType string `json:"media_type"`
		} `json:"source"`
	} `json:"value"`
}

func (l *LBRY) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	claim := lbryClaim(u)

	var got lbryGetResponse
	if err := l.call(ctx, fetch, "get", map[string]any{"uri": claim}, &got); err != nil {
		return nil, err
	}
	if got.Error != nil {
		return nil, media.Errorf(media.KindExtractionFailed, "lbry get %s: %s", claim, got.Error.Message)
	}
	if got.Result.StreamingURL == "" {
		return nil, media.Errorf(media.KindExtractionFailed, "lbry get %s: streaming URL is missing", claim)
	}

	// The streaming URL redirects to the CDN and names either an HLS
	// playlist or the file itself.
	head, err := fetch.Fetch(ctx, httputil.HeadRequest(got.Result.StreamingURL))
	if err != nil {
		return nil, fmt.Errorf("lbry stream %s: %w", claim, err)
	}
	streamURL := lo.Ternary(head.URL != "", head.URL, got.Result.StreamingURL)

	var resolved lbryResolveResponse
	if err := l.call(ctx, fetch, "resolve", map[string]any{"urls": claim}, &resolved); err != nil {
		return nil, err
	}
	if resolved.Error != nil {
		return nil, media.Errorf(media.KindExtractionFailed, "lbry resolve %s: %s", claim, resolved.Error.Message)
	}
	value := resolved.Result[claim].Value
	if value == nil {
		return nil, media.Errorf(media.KindExtractionFailed, "lbry resolve %s: claim has no value", claim)
	}

	mimeType := media.ParseMimeType(value.Source.MediaType)
	video, audio := lbryCodecs(mimeType)

	b := media.NewBuilder().
		SetID(claim).
		SetTitle(value.Title).
		SetDescription(value.Description).
		SetDuration(time.Duration(value.Video.Duration) * time.Second)

	if isHLSContentType(head.Header.Get("Content-Type")) {
		res, err := fetchManifest(ctx, fetch, streamURL, media.HLS)
		if err != nil {
			return nil, fmt.Errorf("lbry playlist: %w", err)
		}
		b.Warn(res.Warnings...)
		for _, s := range res.Streams {
			typed, err := s.With(media.WithMimeType(mimeType))
			if err != nil {
				b.Warnf("lbry: skipping rendition %s: %v", s.URI(), err)
				continue
			}
			b.AddAdaptiveStream(typed)
		}
	} else {
		s, err := media.NewStream(streamURL,
			media.WithItag(1),
			media.WithMimeType(mimeType),
			media.WithVideoCodec(video),
			media.WithAudioCodec(audio),
			media.WithResolution(value.Video.Width, value.Video.Height),
		)
		if err != nil {
			return nil, media.WrapError(media.KindExtractionFailed, err, "lbry stream "+claim)
		}
		b.AddStream(s)
	}

	if b.StreamCount() == 0 {
		return nil, media.Errorf(media.KindExtractionFailed, "lbry %s: no playable streams", claim)
	}
	return b.Build(), nil
}

func (l *LBRY) call(ctx context.Context, fetch httputil.Fetcher, method string, params map[string]any, v any) error {
	if err := postJSON(ctx, fetch, lbryProxy, lbryContentType, nil, lbryRPC{Method: method, Params: params}, v); err != nil {
		return fmt.Errorf("lbry %s: %w", method, err)
	}
	return nil
}

// lbryCodecs guesses codecs from the container. The API does not report
// them and Odysee only serves H.264 with AAC in MP4.
func lbryCodecs(m media.MimeType) (video, audio string) {
	switch m {
	case media.VideoMP4:
		return "avc1", "mp4a"
	case media.AudioMP4:
		return "", "mp4a"
	default:
		return "", ""
	}
}

func isHLSContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && strings.EqualFold(mt, mimeHLS)
}
