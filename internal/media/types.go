// Package media defines the normalized stream model shared by the parsers,
// the extractor plugins and the resolution engine.
package media

import (
	"fmt"
	"strings"
)

// MimeType is the container of a rendition.
type MimeType int

const (
	MimeUnknown MimeType = iota
	VideoMP4
	AudioMP4
	VideoWebM
	AudioWebM
)

func (m MimeType) String() string {
	switch m {
	case VideoMP4:
		return "video/mp4"
	case AudioMP4:
		return "audio/mp4"
	case VideoWebM:
		return "video/webm"
	case AudioWebM:
		return "audio/webm"
	default:
		return "unknown"
	}
}

// IsAudio reports whether the container carries audio only.
func (m MimeType) IsAudio() bool {
	return m == AudioMP4 || m == AudioWebM
}

// ParseMimeType maps a MIME string (parameters ignored) to a MimeType.
func ParseMimeType(s string) MimeType {
	s, _, _ = strings.Cut(s, ";")
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "video/mp4":
		return VideoMP4
	case "audio/mp4":
		return AudioMP4
	case "video/webm":
		return VideoWebM
	case "audio/webm":
		return AudioWebM
	default:
		return MimeUnknown
	}
}

// ManifestType is the segment addressing scheme an adaptive rendition came from.
type ManifestType int

const (
	ManifestUnknown ManifestType = iota
	DASH
	HLS
)

func (m ManifestType) String() string {
	switch m {
	case DASH:
		return "dash"
	case HLS:
		return "hls"
	default:
		return "unknown"
	}
}

// Range is an inclusive byte range inside a single-file rendition.
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ParseRange parses "start-end" as used by DASH SegmentBase attributes.
func ParseRange(s string) (Range, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("malformed range %q", s)
	}
	var r Range
	if _, err := fmt.Sscanf(a, "%d", &r.Start); err != nil {
		return Range{}, fmt.Errorf("malformed range start %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(b, "%d", &r.End); err != nil {
		return Range{}, fmt.Errorf("malformed range end %q: %w", s, err)
	}
	if r.End < r.Start {
		return Range{}, fmt.Errorf("range %q ends before it starts", s)
	}
	return r, nil
}

// Subtitle represents a caption track.
type Subtitle struct {
	Language string // e.g., "en"
	Label    string // Display label, e.g., "English (auto-generated)"
	URL      string // URL to the subtitle file (usually VTT)
}

// audioCodecPrefixes identify RFC 6381 codec strings that carry audio.
var audioCodecPrefixes = []string{"mp4a", "aac", "ac-3", "ec-3", "opus", "flac", "vorbis", "mp3", "alac"}

// IsAudioCodec reports whether a codec string names an audio codec.
func IsAudioCodec(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	for _, p := range audioCodecPrefixes {
		if strings.HasPrefix(c, p) {
			return true
		}
	}
	return false
}

// CodecName returns a short family name for a codec string, e.g.
// "avc1.64001f" -> "h264". Unknown codecs are returned lower-cased.
func CodecName(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	family, _, _ := strings.Cut(c, ".")
	switch family {
	case "avc1", "avc3", "h264":
		return "h264"
	case "hev1", "hvc1", "hevc", "h265":
		return "hevc"
	case "vp09", "vp9":
		return "vp9"
	case "vp08", "vp8":
		return "vp8"
	case "av01", "av1":
		return "av1"
	case "mp4a", "aac":
		return "aac"
	default:
		return family
	}
}
