package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"tuber/internal/media"
)

// Output is one resolved URI as printed by --json.
type Output struct {
	URI             string            `json:"uri" jsonschema:"description=URI as given on the command line."`
	ID              string            `json:"id,omitempty" jsonschema:"description=Video id on the source site."`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty" jsonschema:"description=Duration in seconds. Absent when unknown."`
	Streams         []StreamOutput    `json:"streams" jsonschema:"description=Progressive streams: one file with video and audio."`
	AdaptiveStreams []StreamOutput    `json:"adaptive_streams" jsonschema:"description=Single-track renditions that come from an HLS or DASH manifest."`
	Subtitles       []SubtitleOutput  `json:"subtitles,omitempty"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty" jsonschema:"description=Headers a player must send when fetching the streams."`
	Warnings        []string          `json:"warnings,omitempty"`
	Error           string            `json:"error,omitempty" jsonschema:"description=Set when the URI could not be resolved."`
	ErrorKind       string            `json:"error_kind,omitempty" jsonschema:"enum=invalid_argument,enum=no_matching_extractor,enum=ambiguous_extractor,enum=fetch_failed,enum=manifest_parse,enum=extraction_failed,enum=canceled,enum=timeout,enum=unknown"`
}

// StreamOutput is one stream of an Output.
type StreamOutput struct {
	URI        string `json:"uri"`
	Itag       uint   `json:"itag,omitempty" jsonschema:"description=Rendition identifier unique within the media info."`
	MimeType   string `json:"mime_type"`
	Manifest   string `json:"manifest,omitempty" jsonschema:"enum=hls,enum=dash"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
	Width      uint   `json:"width,omitempty"`
	Height     uint   `json:"height,omitempty"`
	FPS        string `json:"fps,omitempty" jsonschema:"description=Frame rate as a fraction such as 30000/1001."`
	Bitrate    uint   `json:"bitrate,omitempty" jsonschema:"description=Bits per second."`
	InitRange  string `json:"init_range,omitempty"`
	IndexRange string `json:"index_range,omitempty"`
}

type SubtitleOutput struct {
	Language string `json:"language,omitempty"`
	Label    string `json:"label,omitempty"`
	URL      string `json:"url"`
}

func newOutput(uri string, info *media.MediaInfo, subs []media.Subtitle) Output {
	out := Output{
		URI:             uri,
		ID:              info.ID(),
		Title:           info.Title(),
		Description:     info.Description(),
		Streams:         lo.Map(info.Streams(), toStreamOutput),
		AdaptiveStreams: lo.Map(info.AdaptiveStreams(), toStreamOutput),
		Subtitles: lo.Map(subs, func(s media.Subtitle, _ int) SubtitleOutput {
			return SubtitleOutput{Language: s.Language, Label: s.Label, URL: s.URL}
		}),
		RequestHeaders: info.RequestHeaders(),
		Warnings:       info.Warnings(),
	}
	if d, ok := info.Duration(); ok {
		out.DurationSeconds = d.Seconds()
	}
	return out
}

func errorOutput(uri string, err error) Output {
	return Output{
		URI:             uri,
		Streams:         []StreamOutput{},
		AdaptiveStreams: []StreamOutput{},
		Error:           err.Error(),
		ErrorKind:       errorKind(err),
	}
}

func toStreamOutput(s *media.Stream, _ int) StreamOutput {
	out := StreamOutput{
		URI:      s.URI(),
		Itag:     s.Itag(),
		MimeType: s.MimeType().String(),
		Bitrate:  s.Bitrate(),
	}
	if s.Manifest() != media.ManifestUnknown {
		out.Manifest = s.Manifest().String()
	}
	out.VideoCodec, out.AudioCodec, _ = s.Codecs()
	out.Width, _ = s.Width()
	out.Height, _ = s.Height()
	if fps, ok := s.FPS(); ok {
		out.FPS = fps.String()
	}
	if r, ok := s.InitRange(); ok {
		out.InitRange = r.String()
	}
	if r, ok := s.IndexRange(); ok {
		out.IndexRange = r.String()
	}
	return out
}

func writeJSON(w io.Writer, out Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// styles for text output. The zero value renders plain text.
type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	faint   lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
}

func newStyles(tty bool) styles {
	if !tty {
		return styles{
			title:   lipgloss.NewStyle(),
			section: lipgloss.NewStyle(),
			faint:   lipgloss.NewStyle(),
			warn:    lipgloss.NewStyle(),
			err:     lipgloss.NewStyle(),
		}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		section: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		faint:   lipgloss.NewStyle().Faint(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// writeText prints out in a human-readable layout.
func writeText(w io.Writer, st styles, out Output) {
	if out.Error != "" {
		fmt.Fprintf(w, "%s %s\n", st.err.Render("error:"), out.URI)
		fmt.Fprintf(w, "  %s\n", out.Error)
		return
	}

	title := out.Title
	if title == "" {
		title = out.URI
	}
	fmt.Fprintf(w, "%s %s\n", st.title.Render(title), st.faint.Render("["+out.ID+"]"))
	if out.DurationSeconds > 0 {
		fmt.Fprintf(w, "  %s %s\n", st.faint.Render("duration"), formatDuration(out.DurationSeconds))
	}

	if len(out.Streams) > 0 {
		fmt.Fprintln(w, st.section.Render("  streams"))
		for _, s := range out.Streams {
			fmt.Fprintf(w, "    %s\n", streamLine(s))
		}
	}
	if len(out.AdaptiveStreams) > 0 {
		fmt.Fprintln(w, st.section.Render("  adaptive"))
		for _, s := range out.AdaptiveStreams {
			fmt.Fprintf(w, "    %s %s\n", streamLine(s), st.faint.Render(s.Manifest))
		}
	}
	if len(out.Subtitles) > 0 {
		fmt.Fprintln(w, st.section.Render("  subtitles"))
		for _, s := range out.Subtitles {
			fmt.Fprintf(w, "    %-6s %s\n", s.Language, s.Label)
		}
	}
	if len(out.RequestHeaders) > 0 {
		fmt.Fprintln(w, st.section.Render("  headers"))
		for _, k := range slices.Sorted(maps.Keys(out.RequestHeaders)) {
			fmt.Fprintf(w, "    %s: %s\n", k, out.RequestHeaders[k])
		}
	}
	for _, msg := range out.Warnings {
		fmt.Fprintf(w, "  %s %s\n", st.warn.Render("warning:"), msg)
	}
}

func streamLine(s StreamOutput) string {
	parts := []string{fmt.Sprintf("%-4d", s.Itag), s.MimeType}
	if s.Height > 0 {
		res := fmt.Sprintf("%dp", s.Height)
		if s.Width > 0 {
			res = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		if s.FPS != "" {
			res += "@" + s.FPS
		}
		parts = append(parts, res)
	}
	codecs := lo.Map(lo.Compact([]string{s.VideoCodec, s.AudioCodec}), func(c string, _ int) string {
		return media.CodecName(c)
	})
	if len(codecs) > 0 {
		parts = append(parts, strings.Join(codecs, "+"))
	}
	if s.Bitrate > 0 {
		parts = append(parts, fmt.Sprintf("%d kbps", s.Bitrate/1000))
	}
	return strings.Join(parts, "  ")
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
