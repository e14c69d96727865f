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
	"tuber/internal/media"
)

// PeerTube resolves videos hosted on the configured PeerTube instances
// through the instance's REST API. The /w/ path shape is too common to
// claim on arbitrary hosts.
type PeerTube struct {
	hosts []string
}

// NewPeerTube returns the plugin for the given instance hosts.
func NewPeerTube(hosts ...string) *PeerTube {
	return &PeerTube{hosts: lo.Uniq(lo.Compact(lo.Map(hosts, func(h string, _ int) string {
		return strings.ToLower(strings.TrimSpace(h))
	})))}
}

func (p *PeerTube) Name() string  { return "peertube" }
func (p *PeerTube) Priority() int { return 0 }

func (p *PeerTube) Match(u *url.URL) bool {
	return isHTTP(u) && httputil.HostIn(u, p.hosts...) && peertubeID(u) != ""
}

func peertubeID(u *url.URL) string {
	id := pathID(u, "/videos/watch/", "/w/")
	if httputil.ValidateID(id) != nil {
		return ""
	}
	return id
}

type peertubeVideo struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Duration           int64              `json:"duration"`
	Files              []peertubeFile     `json:"files"`
	StreamingPlaylists []peertubePlaylist `json:"streamingPlaylists"`
}

type peertubeFile struct {
	FileURL    string `json:"fileUrl"`
	Resolution struct {
		ID uint `json:"id"`
	} `json:"resolution"`
	FPS     uint  `json:"fps"`
	Size    int64 `json:"size"`
	Bitrate uint  `json:"bitrate"`
}

type peertubePlaylist struct {
	PlaylistURL string         `json:"playlistUrl"`
	Files       []peertubeFile `json:"files"`
}

func (p *PeerTube) Extract(ctx context.Context, u *url.URL, fetch httputil.Fetcher) (*media.MediaInfo, error) {
	id := peertubeID(u)
	api := httputil.BuildURL(u.Scheme+"://"+u.Host, "api", "v1", "videos", id)

	var video peertubeVideo
	if err := fetchJSON(ctx, fetch, api, &video); err != nil {
		return nil, fmt.Errorf("peertube video %s: %w", id, err)
	}

	b := media.NewBuilder().
		SetID(strconv.FormatInt(video.ID, 10)).
		SetTitle(video.Name).
		SetDescription(video.Description).
		SetDuration(time.Duration(video.Duration) * time.Second)

	files := video.Files
	if len(files) == 0 {
		for _, pl := range video.StreamingPlaylists {
			files = append(files, pl.Files...)
		}
	}
	for _, f := range files {
		s, err := f.stream(video.Duration)
		if err != nil {
			b.Warnf("peertube: skipping file %q: %v", f.FileURL, err)
			continue
		}
		b.AddStream(s)
	}

	for _, pl := range video.StreamingPlaylists {
		if pl.PlaylistURL == "" {
			continue
		}
		if err := addManifest(ctx, b, fetch, pl.PlaylistURL, media.HLS); err != nil {
			return nil, fmt.Errorf("peertube playlist: %w", err)
		}
		break
	}

	return b.Build(), nil
}

// stream maps one file entry. PeerTube reports the video height as the
// resolution id and only serves H.264 with AAC.
func (f peertubeFile) stream(durationSec int64) (*media.Stream, error) {
	bitrate := f.Bitrate
	if f.Size > 0 && durationSec > 0 {
		bitrate = uint(f.Size * 8 / durationSec)
	}
	return media.NewStream(f.FileURL,
		media.WithVideoCodec("avc1"),
		media.WithAudioCodec("mp4a"),
		media.WithMimeType(media.VideoMP4),
		media.WithItag(f.Resolution.ID),
		media.WithResolution(0, f.Resolution.ID),
		media.WithFPS(media.Rational{Num: uint32(f.FPS), Den: 1}),
		media.WithBitrate(bitrate),
	)
}
