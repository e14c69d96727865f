package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuber/internal/media"
)

const invidiousVideoJSON = `{
  "videoId": "dQw4w9WgXcQ",
  "title": "Never Gonna Give You Up",
  "description": "Official video",
  "lengthSeconds": 212,
  "liveNow": false,
  "formatStreams": [
    {"url": "https://rr.test/videoplayback?itag=18", "itag": "18", "type": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"",
     "bitrate": "503000", "size": "640x360", "fps": 25, "resolution": "360p"},
    {"url": "https://rr.test/videoplayback?itag=17", "itag": "17", "type": "video/3gpp; codecs=\"mp4v.20.3, mp4a.40.2\""},
    {"url": "https://rr.test/videoplayback?itag=22", "itag": "22", "type": "video/mp4; codecs=\"avc1.64001F, mp4a.40.2\"",
     "resolution": "720p", "fps": 25}
  ],
  "adaptiveFormats": [
    {"url": "/latest_version?id=dQw4w9WgXcQ&itag=137", "itag": "137", "type": "video/mp4; codecs=\"avc1.640028\"",
     "bitrate": "4400000", "size": "1920x1080", "fps": 25, "init": "0-709", "index": "710-1229"},
    {"url": "https://rr.test/videoplayback?itag=251", "itag": "251", "type": "audio/webm; codecs=\"opus\"",
     "bitrate": "150000", "init": "0-265", "index": "266-600"},
    {"url": "https://rr.test/videoplayback?itag=x", "itag": "nope", "type": "audio/webm; codecs=\"opus\""}
  ],
  "captions": [
    {"label": "English", "languageCode": "en", "url": "/api/v1/captions/dQw4w9WgXcQ?label=English"}
  ]
}`

func TestYoutubeID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch", ""},
		{"https://www.youtube.com/watch?v=../../etc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, youtubeID(mustParse(t, tt.raw)), tt.raw)
	}
}

func TestInvidiousMatch(t *testing.T) {
	v := NewInvidious("yewtu.be", "inv.example.net")
	assert.True(t, v.Match(mustParse(t, "https://youtube.com/watch?v=dQw4w9WgXcQ")))
	assert.True(t, v.Match(mustParse(t, "https://inv.example.net/watch?v=dQw4w9WgXcQ")))
	assert.False(t, v.Match(mustParse(t, "https://example.com/watch?v=dQw4w9WgXcQ")))
	assert.False(t, v.Match(mustParse(t, "https://youtube.com/channel/UC123")))
}

func TestInvidiousExtract(t *testing.T) {
	fetch := newFakeFetcher(map[string]string{
		"https://yewtu.be/api/v1/videos/dQw4w9WgXcQ": invidiousVideoJSON,
	})

	info, err := NewInvidious("yewtu.be").Extract(context.Background(),
		mustParse(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"), fetch)
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", info.ID())
	assert.Equal(t, "Never Gonna Give You Up", info.Title())
	d, _ := info.Duration()
	assert.Equal(t, 212*time.Second, d)

	streams := info.Streams()
	require.Len(t, streams, 2, "itag 17 is skipped")
	assert.Equal(t, uint(18), streams[0].Itag())
	assert.Equal(t, uint(503000), streams[0].Bitrate())
	w, _ := streams[0].Width()
	h, _ := streams[0].Height()
	assert.Equal(t, [2]uint{640, 360}, [2]uint{w, h})
	v, a, ok := streams[0].Codecs()
	assert.True(t, ok)
	assert.Equal(t, "avc1.42001E", v)
	assert.Equal(t, "mp4a.40.2", a)

	_, hasWidth := streams[1].Width()
	h, _ = streams[1].Height()
	assert.False(t, hasWidth)
	assert.Equal(t, uint(720), h, "height falls back to resolution")

	adaptive := info.AdaptiveStreams()
	require.Len(t, adaptive, 2)
	video := adaptive[0]
	assert.Equal(t, "https://yewtu.be/latest_version?id=dQw4w9WgXcQ&itag=137", video.URI())
	assert.Equal(t, media.DASH, video.Manifest())
	init, ok := video.InitRange()
	assert.True(t, ok)
	assert.Equal(t, "0-709", init.String())
	index, _ := video.IndexRange()
	assert.Equal(t, "710-1229", index.String())

	audio := adaptive[1]
	assert.True(t, audio.AudioOnly())
	assert.Equal(t, media.AudioWebM, audio.MimeType())
	_, hasFPS := audio.FPS()
	assert.False(t, hasFPS)

	assert.Len(t, info.Warnings(), 1)

	subs := info.Subtitles()
	require.Len(t, subs, 1)
	assert.Equal(t, "en", subs[0].Language)
	assert.Equal(t, "https://yewtu.be/api/v1/captions/dQw4w9WgXcQ?label=English", subs[0].URL)
}

func TestInvidiousQueriesFrontendHost(t *testing.T) {
	fetch := newFakeFetcher(map[string]string{
		"https://inv.example.net/api/v1/videos/dQw4w9WgXcQ": `{"videoId": "dQw4w9WgXcQ", "title": "t"}`,
	})

	v := NewInvidious("yewtu.be", "inv.example.net")
	_, err := v.Extract(context.Background(), mustParse(t, "https://inv.example.net/watch?v=dQw4w9WgXcQ"), fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://inv.example.net/api/v1/videos/dQw4w9WgXcQ"}, fetch.urls())
}

func TestInvidiousLive(t *testing.T) {
	fetch := newFakeFetcher(map[string]string{
		"https://yewtu.be/api/v1/videos/live1234567": `{"videoId": "live1234567", "title": "Live",
			"liveNow": true, "hlsUrl": "https://manifest.test/hls/master.m3u8",
			"formatStreams": [{"url": "https://rr.test/x", "itag": "18", "type": "video/mp4; codecs=\"avc1\""}]}`,
		"https://manifest.test/hls/master.m3u8": "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=900000,CODECS=\"avc1.4d401f,mp4a.40.2\"\n720.m3u8\n",
	})

	info, err := NewInvidious("yewtu.be").Extract(context.Background(),
		mustParse(t, "https://www.youtube.com/watch?v=live1234567"), fetch)
	require.NoError(t, err)
	assert.Empty(t, info.Streams(), "live videos only expose the playlist")
	require.Len(t, info.AdaptiveStreams(), 1)
	assert.Equal(t, "https://manifest.test/hls/720.m3u8", info.AdaptiveStreams()[0].URI())
	_, known := info.Duration()
	assert.False(t, known)
}
