package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuber/client"
	"tuber/internal/extract"
	"tuber/internal/manifest"
	"tuber/internal/media"
)

const videoJSON = `{
  "videoId": "dQw4w9WgXcQ",
  "title": "Never Gonna Give You Up",
  "lengthSeconds": 212,
  "formatStreams": [
    {"url": "https://rr.test/videoplayback?itag=18", "itag": "18", "type": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"",
     "bitrate": "503000", "size": "640x360", "fps": 25}
  ],
  "adaptiveFormats": [
    {"url": "https://rr.test/videoplayback?itag=137", "itag": "137", "type": "video/mp4; codecs=\"avc1.640028\"",
     "bitrate": "4400000", "size": "1920x1080", "fps": 25, "init": "0-709", "index": "710-1229"},
    {"url": "https://rr.test/videoplayback?itag=140", "itag": "140", "type": "audio/mp4; codecs=\"mp4a.40.2\"",
     "bitrate": "128000", "init": "0-591", "index": "592-1000"}
  ],
  "captions": [
    {"label": "English", "languageCode": "en", "url": "/api/v1/captions/dQw4w9WgXcQ?label=English"},
    {"label": "Deutsch", "languageCode": "de", "url": "/api/v1/captions/dQw4w9WgXcQ?label=Deutsch"}
  ]
}`

// newInstance serves the video endpoint of an Invidious instance and
// returns the watch URL pointing at it plus a config file trusting it.
func newInstance(t *testing.T) (watchURL, configPath, outDir string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/videos/dQw4w9WgXcQ", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, videoJSON)
	})
	mux.HandleFunc("/api/v1/captions/dQw4w9WgXcQ", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "WEBVTT\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	outDir = filepath.Join(dir, "out")
	configPath = filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("timeout = \"5s\"\ninvidious_hosts = [\"127.0.0.1\"]\nmanifest_dir = %q\n", outDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	return srv.URL + "/watch?v=dQw4w9WgXcQ", configPath, outDir
}

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagConfig, flagTimeout, flagUserAgent, flagInstance, flagOutputDir, flagLanguage = "", "", "", "", "", ""
	flagJSON, flagDebug, flagAsync, flagQuiet, flagSaveSubs = false, false, false, false, false
	flagDisable, flagPeerTube = nil, nil
	flagFormat, flagMaxHeight, flagAudioOnly = "", 0, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchJSON(t *testing.T) {
	uri, conf, _ := newInstance(t)

	stdout, err := runCLI(t, "--config", conf, "--json", uri)
	require.NoError(t, err)

	var out Output
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, uri, out.URI)
	assert.Equal(t, "dQw4w9WgXcQ", out.ID)
	assert.Equal(t, "Never Gonna Give You Up", out.Title)
	assert.Equal(t, 212.0, out.DurationSeconds)
	require.Len(t, out.Streams, 1)
	assert.Equal(t, "avc1.42001E", out.Streams[0].VideoCodec)
	assert.Equal(t, "mp4a.40.2", out.Streams[0].AudioCodec)
	require.Len(t, out.AdaptiveStreams, 2)
	assert.Equal(t, "dash", out.AdaptiveStreams[0].Manifest)
	assert.Equal(t, "0-709", out.AdaptiveStreams[0].InitRange)
	assert.Len(t, out.Subtitles, 2)
}

func TestFetchTextFiltersSubtitles(t *testing.T) {
	uri, conf, _ := newInstance(t)

	stdout, err := runCLI(t, "--config", conf, "--subs", "de", uri)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Never Gonna Give You Up")
	assert.Contains(t, stdout, "3:32")
	assert.Contains(t, stdout, "1920x1080@25")
	assert.Contains(t, stdout, "4400 kbps")
	assert.Contains(t, stdout, "Deutsch")
	assert.NotContains(t, stdout, "English")
}

func TestFetchAsyncWithoutTerminal(t *testing.T) {
	uri, conf, _ := newInstance(t)

	stdout, err := runCLI(t, "--config", conf, "--json", "--async", "--quiet", uri)
	require.NoError(t, err)

	var out Output
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "dQw4w9WgXcQ", out.ID)
}

func TestFetchReportsFailures(t *testing.T) {
	_, conf, _ := newInstance(t)

	stdout, err := runCLI(t, "--config", conf, "ftp://example.com/video")
	require.Error(t, err)
	assert.Contains(t, stdout, "error:")
	assert.Contains(t, err.Error(), "1 of 1")
}

func TestFetchSavesSubtitle(t *testing.T) {
	uri, conf, outDir := newInstance(t)

	_, err := runCLI(t, "--config", conf, "--save-subs", "--subs", "en", uri)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "dQw4w9WgXcQ.en.vtt"))
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", string(data))
}

func TestManifestCommand(t *testing.T) {
	uri, conf, outDir := newInstance(t)

	stdout, err := runCLI(t, "--config", conf, "manifest", uri)
	require.NoError(t, err)

	path := strings.TrimSpace(stdout)
	assert.Equal(t, filepath.Join(outDir, "dQw4w9WgXcQ.mpd"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<MPD")
	assert.Contains(t, string(data), `indexRange="710-1229"`)
}

func TestManifestCommandRejectsHLSWithoutStreams(t *testing.T) {
	uri, conf, _ := newInstance(t)

	_, err := runCLI(t, "--config", conf, "manifest", "--format", "hls", uri)
	assert.ErrorIs(t, err, manifest.ErrNothingToGenerate)
}

func TestPluginsCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stdout, err := runCLI(t, "plugins")
	require.NoError(t, err)
	for _, name := range []string{"invidious", "lbry", "peertube", "piped", "reddit", "twitch", "manifest", "html"} {
		assert.Contains(t, stdout, name)
	}

	stdout, err = runCLI(t, "plugins", "red")
	require.NoError(t, err)
	assert.Contains(t, stdout, "reddit")
	assert.NotContains(t, stdout, "peertube")

	_, err = runCLI(t, "plugins", "zzz")
	assert.Error(t, err)
}

func TestPeerTubeFlagAddsHosts(t *testing.T) {
	_, conf, _ := newInstance(t)

	_, err := runCLI(t, "--config", conf, "--peertube", "tube.example.org", "plugins")
	require.NoError(t, err)
	assert.Equal(t, []string{"framatube.org", "tube.example.org"}, cfg.PeerTubeHosts)

	_, err = runCLI(t, "--config", conf, "--peertube", "tube.example.org/w", "plugins")
	assert.Error(t, err)
}

func TestWritePlugins(t *testing.T) {
	plugins := extract.NewDefault(nil).List()

	var plain bytes.Buffer
	require.NoError(t, writePlugins(&plain, plugins, false))
	lines := strings.Split(strings.TrimSpace(plain.String()), "\n")
	require.Len(t, lines, len(plugins)+1)
	assert.Equal(t, []string{"NAME", "PRIORITY"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"html", "-100"}, strings.Fields(lines[len(lines)-1]))
	assert.NotContains(t, plain.String(), "│")

	var table bytes.Buffer
	require.NoError(t, writePlugins(&table, plugins, true))
	assert.Contains(t, table.String(), "│")
	assert.Contains(t, table.String(), "NAME")
	assert.Contains(t, table.String(), "twitch")
	assert.Contains(t, table.String(), "-100")
}

func TestSuggestPlugins(t *testing.T) {
	known := []string{"invidious", "lbry", "peertube", "piped", "reddit", "twitch", "manifest", "html"}

	tests := []struct {
		name string
		want string
	}{
		{"invidous", "invidious"},
		{"PEER", "peertube"},
		{"redidt", "reddit"},
		{"htlm", "html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, suggestPlugins(tt.name, known), tt.want)
		})
	}
	assert.Empty(t, suggestPlugins("soundcloud", known))
}

func TestSchemaDescribesOutput(t *testing.T) {
	data, err := json.Marshal(outputSchema())
	require.NoError(t, err)

	for _, field := range []string{"adaptive_streams", "request_headers", "init_range", "error_kind"} {
		assert.Contains(t, string(data), field)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{media.Errorf(media.KindInvalidArgument, "bad"), "invalid_argument"},
		{fmt.Errorf("wrapped: %w", media.Errorf(media.KindFetchFailed, "404")), "fetch_failed"},
		{media.NewManifestError("hls", "missing header"), "manifest_parse"},
		{client.ErrCanceled, "canceled"},
		{media.WrapError(media.KindFetchFailed, context.DeadlineExceeded, "https://site.test/"), "timeout"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorKind(tt.err), tt.err.Error())
	}
}

func testInfo(t *testing.T) *media.MediaInfo {
	t.Helper()
	hd, err := media.NewStream("https://cdn.test/1080.mp4",
		media.WithVideoCodec("avc1.640028"), media.WithResolution(1920, 1080),
		media.WithMimeType(media.VideoMP4), media.WithManifest(media.DASH), media.WithItag(137))
	require.NoError(t, err)
	sd, err := media.NewStream("https://cdn.test/360.mp4",
		media.WithVideoCodec("avc1.4d401e"), media.WithResolution(640, 360),
		media.WithMimeType(media.VideoMP4), media.WithManifest(media.DASH), media.WithItag(134))
	require.NoError(t, err)
	audio, err := media.NewStream("https://cdn.test/audio.m4a",
		media.WithAudioCodec("mp4a.40.2"), media.WithMimeType(media.AudioMP4),
		media.WithManifest(media.HLS), media.WithItag(140))
	require.NoError(t, err)

	return media.NewBuilder().SetID("abc").SetTitle("Test").
		SetDuration(3725 * time.Second).
		SetRequestHeader("Referer", "https://site.test/").
		AddAdaptiveStream(hd, sd, audio).
		Build()
}

func TestRenditionFilter(t *testing.T) {
	info := testInfo(t)
	streams := info.AdaptiveStreams()

	assert.Nil(t, renditionFilter(0, false))

	keep := renditionFilter(720, false)
	assert.False(t, keep(streams[0]))
	assert.True(t, keep(streams[1]))
	assert.True(t, keep(streams[2]))

	audioOnly := renditionFilter(0, true)
	assert.False(t, audioOnly(streams[1]))
	assert.True(t, audioOnly(streams[2]))
}

func TestManifestFormat(t *testing.T) {
	info := testInfo(t)

	kind, err := manifestFormat("", info)
	require.NoError(t, err)
	assert.Equal(t, media.DASH, kind)

	kind, err = manifestFormat("hls", info)
	require.NoError(t, err)
	assert.Equal(t, media.HLS, kind)

	_, err = manifestFormat("smooth", info)
	assert.Error(t, err)

	_, err = manifestFormat("", media.NewBuilder().SetID("empty").Build())
	assert.ErrorIs(t, err, manifest.ErrNothingToGenerate)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	writeText(&buf, newStyles(false), newOutput("https://site.test/v/abc", testInfo(t), nil))

	out := buf.String()
	assert.Contains(t, out, "Test [abc]")
	assert.Contains(t, out, "1:02:05")
	assert.Contains(t, out, "1920x1080")
	assert.Contains(t, out, "h264")
	assert.NotContains(t, out, "avc1.640028")
	assert.Contains(t, out, "Referer: https://site.test/")
	assert.NotContains(t, out, "subtitles")
}
