package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

// Entry is one rendition of a flat progressive listing. Either the
// discrete codec fields or the codecs parameter of Type must be set.
type Entry struct {
	URL        string `json:"url"`
	Type       string `json:"type,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
	Width      uint   `json:"width,omitempty"`
	Height     uint   `json:"height,omitempty"`
	FPS        string `json:"fps,omitempty"`
	Bitrate    uint   `json:"bitrate,omitempty"`
	Itag       uint   `json:"itag,omitempty"`
}

// ParseProgressive decodes a JSON array of entries and builds streams
// from it. Relative URLs are resolved against baseURI.
func ParseProgressive(data []byte, baseURI string) (*Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, media.NewManifestError(FormatProgressive, "listing is not a JSON array")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, media.NewManifestError(FormatProgressive, err.Error())
	}

	res := &Result{}
	entries := make([]Entry, 0, len(raw))
	for i, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			res.warnf("progressive entry %d: %v", i, err)
			continue
		}
		entries = append(entries, e)
	}

	out := FromEntries(entries, baseURI)
	res.Streams = out.Streams
	res.Warnings = append(res.Warnings, out.Warnings...)
	return res, nil
}

// FromEntries builds streams from already decoded entries, dropping those
// without a usable URL or codec.
func FromEntries(entries []Entry, baseURI string) *Result {
	res := &Result{}
	for i, e := range entries {
		s, err := e.stream(baseURI)
		if err != nil {
			res.warnf("progressive entry %d: %v", i, err)
			continue
		}
		res.Streams = append(res.Streams, s)
	}
	return res
}

func (e Entry) stream(baseURI string) (*media.Stream, error) {
	uri, err := httputil.ResolveURL(baseURI, e.URL)
	if err != nil {
		return nil, err
	}

	mime, video, audio := ParseMimeCodecs(e.Type)
	if e.VideoCodec != "" || e.AudioCodec != "" {
		video, audio = e.VideoCodec, e.AudioCodec
	}

	opts := []media.StreamOption{
		media.WithVideoCodec(video),
		media.WithAudioCodec(audio),
		media.WithResolution(e.Width, e.Height),
		media.WithMimeType(mime),
		media.WithBitrate(e.Bitrate),
		media.WithItag(e.Itag),
	}
	if e.FPS != "" {
		fps, err := media.ParseRational(e.FPS)
		if err != nil {
			return nil, fmt.Errorf("fps: %w", err)
		}
		opts = append(opts, media.WithFPS(fps))
	}

	return media.NewStream(uri, opts...)
}
