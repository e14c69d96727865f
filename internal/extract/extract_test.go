package extract

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

// fakeFetcher serves canned bodies keyed by URL and records requests.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []*httputil.Request
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *httputil.Request) (*httputil.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, media.WrapError(media.KindFetchFailed, err, req.URL)
	}
	body, ok := f.bodies[req.URL]
	if !ok {
		return nil, media.Errorf(media.KindFetchFailed, "GET %s: status 404", req.URL)
	}
	return &httputil.Response{URL: req.URL, Status: 200, Body: []byte(body)}, nil
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.URL)
	}
	return out
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFetchManifestSniffsFormat(t *testing.T) {
	fetch := newFakeFetcher(map[string]string{
		"https://cdn.test/play":  "\ufeff#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1,CODECS=\"avc1\"\nv.m3u8\n",
		"https://cdn.test/other": "<html></html>",
	})

	res, err := fetchManifest(context.Background(), fetch, "https://cdn.test/play", media.ManifestUnknown)
	require.NoError(t, err)
	require.Len(t, res.Streams, 1)
	assert.Equal(t, "https://cdn.test/v.m3u8", res.Streams[0].URI())

	_, err = fetchManifest(context.Background(), fetch, "https://cdn.test/other", media.ManifestUnknown)
	assert.ErrorIs(t, err, media.ErrManifestParse)

	_, err = fetchManifest(context.Background(), fetch, "https://cdn.test/missing", media.HLS)
	assert.ErrorIs(t, err, media.ErrFetchFailed)
}

func TestFetchJSONDecodeError(t *testing.T) {
	fetch := newFakeFetcher(map[string]string{"https://api.test/v": "{not json"})

	var v struct{}
	err := fetchJSON(context.Background(), fetch, "https://api.test/v", &v)
	assert.ErrorIs(t, err, media.ErrExtractionFailed)
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://x.test/videos/watch/abc", "abc"},
		{"https://x.test/w/abc/extra", "abc"},
		{"https://x.test/w/", ""},
		{"https://x.test/other/abc", ""},
	}
	for _, tt := range tests {
		got := pathID(mustParse(t, tt.raw), "/videos/watch/", "/w/")
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
