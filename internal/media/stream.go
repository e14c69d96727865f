package media

import (
	"errors"
	"strings"

	"github.com/samber/mo"
)

var (
	// ErrNoURI is returned by NewStream for an empty URI.
	ErrNoURI = errors.New("stream has no URI")

	// ErrNoCodec is returned by NewStream when neither codec is known.
	ErrNoCodec = errors.New("stream has neither a video nor an audio codec")
)

// Stream is one playable rendition. It is immutable once built.
type Stream struct {
	uri        string
	videoCodec mo.Option[string]
	audioCodec mo.Option[string]
	width      mo.Option[uint]
	height     mo.Option[uint]
	fps        mo.Option[Rational]

	itag       uint
	bitrate    uint
	mimeType   MimeType
	manifest   ManifestType
	initRange  mo.Option[Range]
	indexRange mo.Option[Range]
}

// StreamOption sets an optional Stream field.
type StreamOption func(*Stream)

// WithVideoCodec sets the video codec; empty strings are ignored.
func WithVideoCodec(codec string) StreamOption {
	return func(s *Stream) {
		s.videoCodec = mo.EmptyableToOption(strings.TrimSpace(codec))
	}
}

// WithAudioCodec sets the audio codec; empty strings are ignored.
func WithAudioCodec(codec string) StreamOption {
	return func(s *Stream) {
		s.audioCodec = mo.EmptyableToOption(strings.TrimSpace(codec))
	}
}

// WithResolution sets width and height; zero values mean unknown.
func WithResolution(width, height uint) StreamOption {
	return func(s *Stream) {
		s.width = mo.EmptyableToOption(width)
		s.height = mo.EmptyableToOption(height)
	}
}

// WithFPS sets the frame rate; a zero rate means unknown.
func WithFPS(fps Rational) StreamOption {
	return func(s *Stream) {
		if fps.IsZero() {
			s.fps = mo.None[Rational]()
			return
		}
		s.fps = mo.Some(fps)
	}
}

func WithItag(itag uint) StreamOption {
	return func(s *Stream) { s.itag = itag }
}

func WithBitrate(bitrate uint) StreamOption {
	return func(s *Stream) { s.bitrate = bitrate }
}

func WithMimeType(m MimeType) StreamOption {
	return func(s *Stream) { s.mimeType = m }
}

// WithManifest marks the addressing scheme of an adaptive rendition.
func WithManifest(m ManifestType) StreamOption {
	return func(s *Stream) { s.manifest = m }
}

func WithInitRange(r Range) StreamOption {
	return func(s *Stream) { s.initRange = mo.Some(r) }
}

func WithIndexRange(r Range) StreamOption {
	return func(s *Stream) { s.indexRange = mo.Some(r) }
}

// NewStream builds a Stream. A stream must have a URI and at least one codec.
func NewStream(uri string, opts ...StreamOption) (*Stream, error) {
	s := &Stream{uri: strings.TrimSpace(uri)}
	for _, opt := range opts {
		opt(s)
	}
	if s.uri == "" {
		return nil, ErrNoURI
	}
	if s.videoCodec.IsAbsent() && s.audioCodec.IsAbsent() {
		return nil, ErrNoCodec
	}
	return s, nil
}

// With returns a copy of s with opts applied. The copy must still satisfy
// the NewStream invariants.
func (s *Stream) With(opts ...StreamOption) (*Stream, error) {
	c := *s
	for _, opt := range opts {
		opt(&c)
	}
	if c.videoCodec.IsAbsent() && c.audioCodec.IsAbsent() {
		return nil, ErrNoCodec
	}
	return &c, nil
}

func (s *Stream) URI() string { return s.uri }

func (s *Stream) VideoCodec() (string, bool) { return s.videoCodec.Get() }

func (s *Stream) AudioCodec() (string, bool) { return s.audioCodec.Get() }

func (s *Stream) Width() (uint, bool) { return s.width.Get() }

func (s *Stream) Height() (uint, bool) { return s.height.Get() }

func (s *Stream) FPS() (Rational, bool) { return s.fps.Get() }

// Codecs returns both codecs at once. It is derived from VideoCodec and
// AudioCodec; ok is false only when neither is known.
func (s *Stream) Codecs() (video, audio string, ok bool) {
	video = s.videoCodec.OrEmpty()
	audio = s.audioCodec.OrEmpty()
	return video, audio, video != "" || audio != ""
}

// CodecsString joins the known codecs with a comma, video first.
func (s *Stream) CodecsString() string {
	var parts []string
	if v, ok := s.videoCodec.Get(); ok {
		parts = append(parts, v)
	}
	if a, ok := s.audioCodec.Get(); ok {
		parts = append(parts, a)
	}
	return strings.Join(parts, ",")
}

// AudioOnly reports whether the stream carries no video.
func (s *Stream) AudioOnly() bool {
	return s.videoCodec.IsAbsent()
}

func (s *Stream) Itag() uint { return s.itag }

func (s *Stream) Bitrate() uint { return s.bitrate }

func (s *Stream) MimeType() MimeType { return s.mimeType }

func (s *Stream) Manifest() ManifestType { return s.manifest }

func (s *Stream) InitRange() (Range, bool) { return s.initRange.Get() }

func (s *Stream) IndexRange() (Range, bool) { return s.indexRange.Get() }
