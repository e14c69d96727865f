// Package manifest turns raw progressive listings and HLS/DASH manifests
// into media.Stream values, and generates manifests back from a MediaInfo.
//
// Parsers are pure: they never fetch sub-resources. A structurally invalid
// document fails with a media.KindManifestParse error; individual bad
// entries are dropped and reported in Result.Warnings.
package manifest

import (
	"fmt"
	"strings"
	"time"

	"tuber/internal/media"
)

const (
	FormatProgressive = "progressive"
	FormatHLS         = "hls"
	FormatDASH        = "dash"
)

// Result holds the streams parsed from one document.
type Result struct {
	Streams  []*media.Stream
	Warnings []string

	// Duration is the presentation length when the format declares one.
	Duration time.Duration
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ParseMimeCodecs splits a MIME string such as
// `video/mp4; codecs="avc1.4d401f, mp4a.40.2"` into its container and
// codecs. Audio containers carry a single audio codec.
func ParseMimeCodecs(s string) (mime media.MimeType, video, audio string) {
	base, params, _ := strings.Cut(s, ";")
	mime = media.ParseMimeType(base)

	codecs := ""
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "codecs") {
			codecs = strings.Trim(strings.TrimSpace(v), `"'`)
		}
	}
	if codecs == "" {
		return mime, "", ""
	}

	if mime.IsAudio() {
		first, _, _ := strings.Cut(codecs, ",")
		return mime, "", strings.TrimSpace(first)
	}

	video, audio = SplitCodecs(codecs)
	return mime, video, audio
}

// SplitCodecs separates an RFC 6381 codecs list into the first video and
// the first audio codec.
func SplitCodecs(list string) (video, audio string) {
	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if media.IsAudioCodec(c) {
			if audio == "" {
				audio = c
			}
		} else if video == "" {
			video = c
		}
	}
	return video, audio
}

// parseResolution parses "1280x720".
func parseResolution(s string) (width, height uint, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("malformed resolution %q", s)
	}
	if _, err := fmt.Sscanf(w, "%d", &width); err != nil {
		return 0, 0, fmt.Errorf("malformed resolution %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(h, "%d", &height); err != nil {
		return 0, 0, fmt.Errorf("malformed resolution %q: %w", s, err)
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("zero resolution %q", s)
	}
	return width, height, nil
}
