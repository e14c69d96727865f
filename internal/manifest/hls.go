package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/samber/lo"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

const typeAudio = "AUDIO"

// ParseHLS parses an HLS master playlist into adaptive streams with
// absolute URIs. Audio renditions declared with #EXT-X-MEDIA take their
// codec from the variants that reference their group.
func ParseHLS(data []byte, baseURI string) (*Result, error) {
	if err := checkHeader(data); err != nil {
		return nil, err
	}

	p := m3u8.NewMasterPlaylist()
	if err := p.DecodeFrom(bytes.NewReader(data), false); err != nil {
		return nil, media.NewManifestError(FormatHLS, err.Error())
	}

	variants := lo.Filter(p.Variants, func(v *m3u8.Variant, _ int) bool { return v != nil && !v.Iframe })
	if len(variants) == 0 {
		if bytes.Contains(data, []byte("#EXTINF")) {
			return nil, media.NewManifestError(FormatHLS, "media playlist, not a master playlist")
		}
		return nil, media.NewManifestError(FormatHLS, "playlist declares no variants")
	}

	res := &Result{}
	audio := audioRenditions(variants)
	groupCodec := audioGroupCodecs(variants, audio)

	for _, alt := range audio {
		s, err := audioStream(alt, baseURI, groupCodec)
		if err != nil {
			res.warnf("hls audio rendition %q: %v", alt.Name, err)
			continue
		}
		res.Streams = append(res.Streams, s)
	}

	for i, v := range variants {
		if strings.TrimSpace(v.URI) == "" {
			res.warnf("hls variant %d: variant has no URI", i)
			continue
		}
		s, err := variantStream(v, baseURI, groupCodec)
		if err != nil {
			res.warnf("hls variant %d (%s): %v", i, v.URI, err)
			continue
		}
		res.Streams = append(res.Streams, s)
	}

	res.Streams = dedupStreams(res, FormatHLS)
	return res, nil
}

// checkHeader requires #EXTM3U on the first non-blank line. The decoder
// only enforces it in strict mode, which also rejects recoverable entries.
func checkHeader(data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if line != "#EXTM3U" {
			return media.NewManifestError(FormatHLS, "missing #EXTM3U header")
		}
		return nil
	}
	return media.NewManifestError(FormatHLS, "empty playlist")
}

// audioRenditions collects the #EXT-X-MEDIA audio renditions that have
// their own URI. Renditions without one are muxed into the variants.
func audioRenditions(variants []*m3u8.Variant) []*m3u8.Alternative {
	var alts []*m3u8.Alternative
	for _, v := range variants {
		alts = append(alts, v.Alternatives...)
	}
	alts = lo.Filter(alts, func(a *m3u8.Alternative, _ int) bool {
		return a != nil && a.Type == typeAudio && a.URI != ""
	})
	return lo.UniqBy(alts, func(a *m3u8.Alternative) string { return a.URI })
}

// audioGroupCodecs maps each audio group that has its own rendition to
// the first audio codec a variant referencing it advertises.
func audioGroupCodecs(variants []*m3u8.Variant, audio []*m3u8.Alternative) map[string]string {
	withURI := lo.SliceToMap(audio, func(a *m3u8.Alternative) (string, bool) { return a.GroupId, true })

	codecs := make(map[string]string)
	for _, v := range variants {
		if v.Audio == "" || !withURI[v.Audio] {
			continue
		}
		if _, ok := codecs[v.Audio]; ok {
			continue
		}
		if _, a := SplitCodecs(v.Codecs); a != "" {
			codecs[v.Audio] = a
		}
	}
	return codecs
}

func audioStream(alt *m3u8.Alternative, baseURI string, groupCodec map[string]string) (*media.Stream, error) {
	uri, err := httputil.ResolveURL(baseURI, alt.URI)
	if err != nil {
		return nil, err
	}
	codec, ok := groupCodec[alt.GroupId]
	if !ok {
		return nil, fmt.Errorf("audio group %q has no codec", alt.GroupId)
	}
	return media.NewStream(uri,
		media.WithAudioCodec(codec),
		media.WithManifest(media.HLS),
	)
}

func variantStream(v *m3u8.Variant, baseURI string, groupCodec map[string]string) (*media.Stream, error) {
	uri, err := httputil.ResolveURL(baseURI, strings.TrimSpace(v.URI))
	if err != nil {
		return nil, err
	}

	video, audio := SplitCodecs(v.Codecs)
	if _, moved := groupCodec[v.Audio]; moved {
		audio = ""
	}

	opts := []media.StreamOption{
		media.WithVideoCodec(video),
		media.WithAudioCodec(audio),
		media.WithManifest(media.HLS),
		media.WithBitrate(hlsBandwidth(uint(v.Bandwidth), uint(v.AverageBandwidth))),
	}

	if v.Resolution != "" {
		w, h, err := parseResolution(v.Resolution)
		if err != nil {
			return nil, err
		}
		opts = append(opts, media.WithResolution(w, h))
	}

	if v.FrameRate > 0 {
		fps, err := media.ParseRational(strconv.FormatFloat(v.FrameRate, 'f', -1, 64))
		if err != nil {
			return nil, fmt.Errorf("frame rate: %w", err)
		}
		opts = append(opts, media.WithFPS(fps))
	}

	return media.NewStream(uri, opts...)
}

// hlsBandwidth returns the lower of BANDWIDTH and AVERAGE-BANDWIDTH,
// ignoring unset values.
func hlsBandwidth(values ...uint) uint {
	values = lo.Filter(values, func(v uint, _ int) bool { return v > 0 })
	if len(values) == 0 {
		return 0
	}
	return lo.Min(values)
}

// dedupStreams drops streams whose URI was already emitted.
func dedupStreams(res *Result, format string) []*media.Stream {
	seen := make(map[string]bool, len(res.Streams))
	return lo.Filter(res.Streams, func(s *media.Stream, _ int) bool {
		if seen[s.URI()] {
			res.warnf("%s: duplicate stream %s dropped", format, s.URI())
			return false
		}
		seen[s.URI()] = true
		return true
	})
}
