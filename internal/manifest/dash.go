package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zencoder/go-dash/v3/mpd"

	"tuber/internal/httputil"
	"tuber/internal/media"
)

// ParseDASH parses the first Period of an MPD into adaptive streams.
// Only single-file Representations (addressed by BaseURL) are emitted.
// Numeric attributes are typed by the decoder, so a malformed bandwidth
// or resolution fails the whole document.
func ParseDASH(data []byte, baseURI string) (*Result, error) {
	doc, err := mpd.ReadFromString(string(data))
	if err != nil {
		return nil, media.NewManifestError(FormatDASH, err.Error())
	}
	if len(doc.Periods) == 0 || doc.Periods[0] == nil {
		return nil, media.NewManifestError(FormatDASH, "MPD has no Period")
	}

	res := &Result{}
	if d := deref(doc.MediaPresentationDuration); d != "" {
		dur, err := mpd.ParseDuration(d)
		if err != nil {
			res.warnf("dash: malformed duration %q: %v", d, err)
		}
		res.Duration = dur
	}

	base, err := resolveBase(baseURI, baseURLRef(doc.BaseURL))
	if err != nil {
		return nil, media.NewManifestError(FormatDASH, err.Error())
	}
	period := doc.Periods[0]
	if base, err = resolveBase(base, baseURLRef(period.BaseURL)); err != nil {
		return nil, media.NewManifestError(FormatDASH, err.Error())
	}

	for si, set := range period.AdaptationSets {
		if set == nil || isTextSet(set) {
			continue
		}
		for ri, rep := range set.Representations {
			if rep == nil {
				continue
			}
			s, err := representationStream(rep, set, base)
			if err != nil {
				res.warnf("dash representation %d/%d (%s): %v", si, ri, deref(rep.ID), err)
				continue
			}
			res.Streams = append(res.Streams, s)
		}
	}

	res.Streams = dedupStreams(res, FormatDASH)
	return res, nil
}

func representationStream(rep *mpd.Representation, set *mpd.AdaptationSet, base string) (*media.Stream, error) {
	ref := baseURLRef(rep.BaseURL)
	if ref == "" || rep.SegmentTemplate != nil || set.SegmentTemplate != nil {
		return nil, fmt.Errorf("no BaseURL (segment template addressing is not supported)")
	}
	uri, err := httputil.ResolveURL(base, ref)
	if err != nil {
		return nil, err
	}

	mimeStr := firstNonEmpty(deref(rep.MimeType), deref(set.MimeType))
	codecs := firstNonEmpty(deref(rep.Codecs), deref(set.Codecs))

	var video, audio string
	if strings.HasPrefix(mimeStr, "audio/") || deref(set.ContentType) == "audio" {
		audio, _, _ = strings.Cut(codecs, ",")
		audio = strings.TrimSpace(audio)
	} else {
		video, audio = SplitCodecs(codecs)
	}

	opts := []media.StreamOption{
		media.WithVideoCodec(video),
		media.WithAudioCodec(audio),
		media.WithMimeType(media.ParseMimeType(mimeStr)),
		media.WithManifest(media.DASH),
	}

	if bw := rep.Bandwidth; bw != nil {
		if *bw < 0 {
			return nil, fmt.Errorf("negative bandwidth %d", *bw)
		}
		opts = append(opts, media.WithBitrate(uint(*bw)))
	}
	if itag, err := strconv.ParseUint(deref(rep.ID), 10, 32); err == nil {
		opts = append(opts, media.WithItag(uint(itag)))
	}

	if rep.Width != nil || rep.Height != nil {
		w, h := derefInt(rep.Width), derefInt(rep.Height)
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("zero resolution %dx%d", w, h)
		}
		opts = append(opts, media.WithResolution(uint(w), uint(h)))
	}

	if rate := deref(rep.FrameRate); rate != "" {
		fps, err := media.ParseRational(rate)
		if err != nil {
			return nil, fmt.Errorf("frame rate: %w", err)
		}
		opts = append(opts, media.WithFPS(fps))
	}

	if sb := rep.SegmentBase; sb != nil {
		if r := deref(sb.IndexRange); r != "" {
			rg, err := media.ParseRange(r)
			if err != nil {
				return nil, err
			}
			opts = append(opts, media.WithIndexRange(rg))
		}
		if sb.Initialization != nil {
			if r := deref(sb.Initialization.Range); r != "" {
				rg, err := media.ParseRange(r)
				if err != nil {
					return nil, err
				}
				opts = append(opts, media.WithInitRange(rg))
			}
		}
	}

	return media.NewStream(uri, opts...)
}

func isTextSet(set *mpd.AdaptationSet) bool {
	switch deref(set.ContentType) {
	case "text", "image":
		return true
	}
	mime := deref(set.MimeType)
	return strings.HasPrefix(mime, "text/") || strings.HasPrefix(mime, "application/") ||
		strings.HasPrefix(mime, "image/")
}

// baseURLRef returns the first BaseURL of an MPD element. go-dash models
// BaseURL as a list on MPD and Period and as a single value on
// Representation.
func baseURLRef(v any) string {
	switch ref := v.(type) {
	case string:
		return strings.TrimSpace(ref)
	case *string:
		return strings.TrimSpace(deref(ref))
	case []string:
		if len(ref) > 0 {
			return strings.TrimSpace(ref[0])
		}
	}
	return ""
}

func resolveBase(base, ref string) (string, error) {
	if ref == "" {
		return base, nil
	}
	return httputil.ResolveURL(base, ref)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
