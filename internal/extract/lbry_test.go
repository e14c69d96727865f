package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

const lbryClaimPath = "@Odysee:8/getyouryoutubechannelonodysee:5"

const lbryResolveJSON = `{"jsonrpc": "2.0", "result": {"@Odysee:8/getyouryoutubechannelonodysee:5": {"value": {
  "title": "Get your YouTube channel on Odysee",
  "description": "Sync it.",
  "video": {"duration": 37, "width": 1920, "height": 1080},
  "source": {"media_type": "video/mp4"}
}}}}`

// lbryServer answers the JSON-RPC proxy by method, the HEAD probe of the
// streaming URL with contentType, and GETs from playlists.
type lbryServer struct {
	mu          sync.Mutex
	contentType string
	playlists   map[string]string
	methods     []string
}

func (s *lbryServer) Fetch(ctx context.Context, req *httputil.Request) (*httputil.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case req.URL == lbryProxy:
		var rpc lbryRPC
		if err := json.Unmarshal(req.Body, &rpc); err != nil {
			return nil, err
		}
		s.methods = append(s.methods, req.Method+" "+rpc.Method+" "+req.ContentType)
		switch rpc.Method {
		case "get":
			body := `{"result": {"streaming_url": "https://player.odycdn.test/api/v4/streams/free/get/abc/def"}}`
			return &httputil.Response{URL: req.URL, Status: 200, Body: []byte(body)}, nil
		case "resolve":
			return &httputil.Response{URL: req.URL, Status: 200, Body: []byte(lbryResolveJSON)}, nil
		}
	case req.Method == http.MethodHead:
		s.methods = append(s.methods, "HEAD")
		return &httputil.Response{
			URL:    "https://cdn.odycdn.test/streams/abc/master.m3u8",
			Status: 200,
			Header: http.Header{"Content-Type": []string{s.contentType}},
		}, nil
	case s.playlists[req.URL] != "":
		s.methods = append(s.methods, "GET playlist")
		return &httputil.Response{URL: req.URL, Status: 200, Body: []byte(s.playlists[req.URL])}, nil
	}
	return nil, media.Errorf(media.KindFetchFailed, "unexpected status 404 for %s %s", req.Method, req.URL)
}

func TestLBRYMatch(t *testing.T) {
	l := NewLBRY()
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://odysee.com/" + lbryClaimPath, true},
		{"https://odysee.com/@Odysee#8/call-an-ambulance#6", true},
		{"https://odysee.com/$/trending", false},
		{"https://odysee.com/@", false},
		{"https://example.test/@Odysee:8/x:1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Match(mustParse(t, tt.raw)), tt.raw)
	}

	assert.Equal(t, "@Odysee#8/call-an-ambulance#6",
		lbryClaim(mustParse(t, "https://odysee.com/@Odysee#8/call-an-ambulance#6")))
}

func TestLBRYExtractDirect(t *testing.T) {
	srv := &lbryServer{contentType: "video/mp4"}

	info, err := NewLBRY().Extract(context.Background(), mustParse(t, "https://odysee.com/"+lbryClaimPath), srv)
	require.NoError(t, err)

	assert.Equal(t, lbryClaimPath, info.ID())
	assert.Equal(t, "Get your YouTube channel on Odysee", info.Title())
	d, _ := info.Duration()
	assert.Equal(t, 37*time.Second, d)

	require.Len(t, info.Streams(), 1)
	s := info.Streams()[0]
	assert.Equal(t, "https://cdn.odycdn.test/streams/abc/master.m3u8", s.URI(), "redirect target is kept")
	assert.Equal(t, uint(1), s.Itag())
	assert.Equal(t, "avc1,mp4a", s.CodecsString())
	h, _ := s.Height()
	assert.Equal(t, uint(1080), h)
	assert.Empty(t, info.AdaptiveStreams())

	assert.Equal(t, []string{
		"POST get application/json-rpc",
		"HEAD",
		"POST resolve application/json-rpc",
	}, srv.methods)
}

func TestLBRYExtractHLS(t *testing.T) {
	srv := &lbryServer{
		contentType: "application/x-mpegURL; charset=utf-8",
		playlists: map[string]string{
			"https://cdn.odycdn.test/streams/abc/master.m3u8": "#EXTM3U\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720,CODECS=\"avc1.64001f,mp4a.40.2\"\n" +
				"720/stream.m3u8\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=600000,RESOLUTION=640x360,CODECS=\"avc1.4d401e,mp4a.40.2\"\n" +
				"360/stream.m3u8\n",
		},
	}

	info, err := NewLBRY().Extract(context.Background(), mustParse(t, "https://odysee.com/"+lbryClaimPath), srv)
	require.NoError(t, err)

	assert.Empty(t, info.Streams())
	adaptive := info.AdaptiveStreams()
	require.Len(t, adaptive, 2)
	assert.Equal(t, "https://cdn.odycdn.test/streams/abc/720/stream.m3u8", adaptive[0].URI())
	assert.Equal(t, media.VideoMP4, adaptive[0].MimeType())
	assert.Equal(t, media.HLS, adaptive[1].Manifest())
	assert.Equal(t, "GET playlist", srv.methods[len(srv.methods)-1])
}

func TestLBRYFailures(t *testing.T) {
	tests := []struct {
		name string
		get  string
	}{
		{"rpc error", `{"error": {"code": -32500, "message": "claim not found"}}`},
		{"no streaming url", `{"result": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := httputil.FetcherFunc(func(ctx context.Context, req *httputil.Request) (*httputil.Response, error) {
				return &httputil.Response{URL: req.URL, Status: 200, Body: []byte(tt.get)}, nil
			})
			_, err := NewLBRY().Extract(context.Background(), mustParse(t, "https://odysee.com/"+lbryClaimPath), fetch)
			require.Error(t, err)
			assert.Equal(t, media.KindExtractionFailed, media.KindOf(err))
		})
	}
}
