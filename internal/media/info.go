package media

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/samber/mo"
)

// MediaInfo is the result of resolving one URI. It is immutable; every
// getter returns a copy so the caller may keep or modify what it gets.
type MediaInfo struct {
	id          string
	title       string
	description string
	duration    mo.Option[time.Duration]
	streams     []*Stream
	adaptive    []*Stream
	subtitles   []Subtitle
	headers     map[string]string
	warnings    []string
}

func (m *MediaInfo) ID() string { return m.id }

func (m *MediaInfo) Title() string { return m.title }

func (m *MediaInfo) Description() string { return m.description }

// Duration returns the media length; ok is false when it is unknown.
func (m *MediaInfo) Duration() (time.Duration, bool) { return m.duration.Get() }

// Streams returns the progressive renditions in extraction order.
func (m *MediaInfo) Streams() []*Stream { return slices.Clone(m.streams) }

// AdaptiveStreams returns the adaptive renditions in extraction order.
func (m *MediaInfo) AdaptiveStreams() []*Stream { return slices.Clone(m.adaptive) }

func (m *MediaInfo) Subtitles() []Subtitle { return slices.Clone(m.subtitles) }

// RequestHeaders returns headers a player should send when opening the streams.
func (m *MediaInfo) RequestHeaders() map[string]string { return maps.Clone(m.headers) }

// Warnings returns notes about entries dropped while parsing manifests.
func (m *MediaInfo) Warnings() []string { return slices.Clone(m.warnings) }

// Builder assembles a MediaInfo. It is not safe for concurrent use.
type Builder struct {
	info MediaInfo
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetID(id string) *Builder {
	b.info.id = id
	return b
}

func (b *Builder) SetTitle(title string) *Builder {
	b.info.title = title
	return b
}

func (b *Builder) SetDescription(desc string) *Builder {
	b.info.description = desc
	return b
}

// SetDuration records the length; non-positive values leave it unknown.
func (b *Builder) SetDuration(d time.Duration) *Builder {
	if d > 0 {
		b.info.duration = mo.Some(d)
	}
	return b
}

func (b *Builder) AddStream(s ...*Stream) *Builder {
	b.info.streams = append(b.info.streams, s...)
	return b
}

func (b *Builder) AddAdaptiveStream(s ...*Stream) *Builder {
	b.info.adaptive = append(b.info.adaptive, s...)
	return b
}

func (b *Builder) AddSubtitle(s ...Subtitle) *Builder {
	b.info.subtitles = append(b.info.subtitles, s...)
	return b
}

func (b *Builder) SetRequestHeader(key, value string) *Builder {
	if b.info.headers == nil {
		b.info.headers = make(map[string]string)
	}
	b.info.headers[key] = value
	return b
}

func (b *Builder) Warn(msg ...string) *Builder {
	b.info.warnings = append(b.info.warnings, msg...)
	return b
}

func (b *Builder) Warnf(format string, args ...any) *Builder {
	return b.Warn(fmt.Sprintf(format, args...))
}

// StreamCount returns the number of streams added so far, both kinds.
func (b *Builder) StreamCount() int {
	return len(b.info.streams) + len(b.info.adaptive)
}

// Build returns a snapshot. Later builder calls do not affect it.
func (b *Builder) Build() *MediaInfo {
	info := b.info
	info.streams = slices.Clone(b.info.streams)
	info.adaptive = slices.Clone(b.info.adaptive)
	info.subtitles = slices.Clone(b.info.subtitles)
	info.headers = maps.Clone(b.info.headers)
	info.warnings = slices.Clone(b.info.warnings)
	return &info
}
