package httputil

import (
	"net/url"
	"path/filepath"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://example.com/path", false},
		{"valid HTTP", "http://example.com/path", false},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"data scheme rejected", "data:text/html,<h1>Hi</h1>", true},
		{"FTP rejected", "ftp://example.com/file", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"relative", "/watch?v=abc", true},
		{"valid with port", "https://example.com:8080/path", false},
		{"valid with query", "https://example.com/path?q=test&a=b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"youtube ID", "dQw4w9WgXcQ", false},
		{"uuid", "9c9de5e8-0a1e-484a-b099-e80766180a6d", false},
		{"short uuid", "kkGMgK9ZtnKfYAgnEtQxbv", false},
		{"empty", "", true},
		{"path traversal", "../../etc/passwd", true},
		{"slash", "abc/def", true},
		{"query injection", "abc?x=1", true},
		{"newline injection", "123\n456", true},
		{"too long", string(make([]byte, 300)), true},
		{"spaces", "id with spaces", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"video.m3u8", "video.m3u8"},
		{"../../etc/passwd", "passwd"},
		{"a:b*c?.mpd", "a_b_c_.mpd"},
		{"", "untitled"},
		{"..", "_"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeOutputPath(t *testing.T) {
	dir := t.TempDir()

	got, err := SafeOutputPath(dir, "../escape.m3u8")
	if err != nil {
		t.Fatalf("SafeOutputPath() error: %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("SafeOutputPath() = %q, want a file inside %q", got, dir)
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		ref     string
		want    string
		wantErr bool
	}{
		{"relative file", "https://cdn.test/hls/master.m3u8", "720p.m3u8", "https://cdn.test/hls/720p.m3u8", false},
		{"parent dir", "https://cdn.test/hls/v1/master.m3u8", "../audio/a.m3u8", "https://cdn.test/hls/audio/a.m3u8", false},
		{"root relative", "https://cdn.test/hls/master.m3u8", "/seg/x.m3u8", "https://cdn.test/seg/x.m3u8", false},
		{"absolute kept", "https://cdn.test/hls/master.m3u8", "https://other.test/x.m3u8", "https://other.test/x.m3u8", false},
		{"query preserved", "https://cdn.test/a/m.mpd?token=1", "b.mp4?sig=2", "https://cdn.test/a/b.mp4?sig=2", false},
		{"no base", "", "x.m3u8", "", true},
		{"empty ref", "https://cdn.test/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
			}
		})
	}
}

func TestHostIn(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=x", true},
		{"https://m.youtube.com/watch?v=x", true},
		{"https://YouTube.com:443/watch?v=x", true},
		{"https://notyoutube.com/watch?v=x", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.url)
		if err != nil {
			t.Fatal(err)
		}
		if got := HostIn(u, "youtube.com"); got != tt.want {
			t.Errorf("HostIn(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://pt.test", []string{"api", "v1", "videos", "abc"}, "https://pt.test/api/v1/videos/abc"},
		{"https://pipedapi.test/", []string{"streams", "dQw4w9WgXcQ"}, "https://pipedapi.test/streams/dQw4w9WgXcQ"},
		{"https://api.test", []string{"a b", "c/d"}, "https://api.test/a%20b/c%2Fd"},
		{"https://api.test", nil, "https://api.test"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %q) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}
