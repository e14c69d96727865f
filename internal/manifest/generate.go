package manifest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/samber/lo"
	"github.com/zencoder/go-dash/v3/mpd"

	"tuber/internal/media"
)

// ErrNothingToGenerate is returned when no adaptive stream passes the filter.
var ErrNothingToGenerate = errors.New("no adaptive streams to put in the manifest")

// Filter selects the adaptive streams that go into a generated manifest.
// A nil Filter selects every stream.
type Filter func(*media.Stream) bool

const (
	hlsAudioGroup = "audio"

	// Streams do not record a sample rate.
	defaultSamplingRate = 48000
)

func selectStreams(info *media.MediaInfo, kind media.ManifestType, filter Filter) []*media.Stream {
	streams := lo.Filter(info.AdaptiveStreams(), func(s *media.Stream, _ int) bool {
		return s.Manifest() == kind && (filter == nil || filter(s))
	})
	slices.SortStableFunc(streams, func(a, b *media.Stream) int {
		return cmp.Compare(a.Bitrate(), b.Bitrate())
	})
	return streams
}

// GenerateHLS writes an HLS master playlist for the HLS adaptive streams
// of info, sorted by bitrate. Audio-only streams become an audio group
// referenced by every video variant.
func GenerateHLS(info *media.MediaInfo, filter Filter) ([]byte, error) {
	streams := selectStreams(info, media.HLS, filter)
	if len(streams) == 0 {
		return nil, ErrNothingToGenerate
	}

	audio := lo.Filter(streams, func(s *media.Stream, _ int) bool { return s.AudioOnly() })
	video := lo.Filter(streams, func(s *media.Stream, _ int) bool { return !s.AudioOnly() })

	groupCodec := ""
	alts := lo.Map(audio, func(s *media.Stream, i int) *m3u8.Alternative {
		if i == 0 {
			groupCodec, _ = s.AudioCodec()
		}
		return &m3u8.Alternative{
			GroupId: hlsAudioGroup,
			Type:    typeAudio,
			Name:    renditionName(s, i),
			Default: i == 0,
			URI:     s.URI(),
		}
	})

	p := m3u8.NewMasterPlaylist()
	for _, s := range video {
		params := m3u8.VariantParams{
			Bandwidth: uint32(s.Bitrate()),
			Codecs:    s.CodecsString(),
		}
		if _, hasAudio := s.AudioCodec(); !hasAudio && groupCodec != "" {
			params.Codecs += "," + groupCodec
		}
		if w, ok := s.Width(); ok {
			h, _ := s.Height()
			params.Resolution = fmt.Sprintf("%dx%d", w, h)
		}
		if fps, ok := s.FPS(); ok {
			params.FrameRate = fps.Float64()
		}
		if len(alts) > 0 {
			params.Audio = hlsAudioGroup
			params.Alternatives = alts
		}
		p.Append(s.URI(), nil, params)
	}

	if len(video) == 0 {
		// Audio-only media: expose each rendition as its own variant.
		for _, s := range audio {
			p.Append(s.URI(), nil, m3u8.VariantParams{
				Bandwidth: uint32(s.Bitrate()),
				Codecs:    s.CodecsString(),
			})
		}
	}

	return p.Encode().Bytes(), nil
}

func renditionName(s *media.Stream, i int) string {
	if s.Itag() != 0 {
		return "audio_" + strconv.FormatUint(uint64(s.Itag()), 10)
	}
	return "audio_" + strconv.Itoa(i)
}

// GenerateDASH writes an on-demand MPD for the DASH adaptive streams of
// info: one AdaptationSet per container type, Representations sorted by
// bitrate with their SegmentBase byte ranges.
func GenerateDASH(info *media.MediaInfo, filter Filter) ([]byte, error) {
	streams := lo.Filter(selectStreams(info, media.DASH, filter), func(s *media.Stream, _ int) bool {
		return s.MimeType() != media.MimeUnknown
	})
	if len(streams) == 0 {
		return nil, ErrNothingToGenerate
	}

	d, _ := info.Duration()
	d = d.Truncate(time.Second)
	mediaDur, minBuf := mpd.Duration(d), mpd.Duration(min(2*time.Second, d))
	m := mpd.NewMPD(mpd.DASH_PROFILE_ONDEMAND, mediaDur.String(), minBuf.String())

	mimes := lo.Uniq(lo.Map(streams, func(s *media.Stream, _ int) media.MimeType { return s.MimeType() }))
	for _, mime := range mimes {
		set := lo.Filter(streams, func(s *media.Stream, _ int) bool { return s.MimeType() == mime })
		if err := addAdaptationSet(m, mime, set); err != nil {
			return nil, fmt.Errorf("building %s adaptation set: %w", mime, err)
		}
	}

	out, err := m.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("encoding MPD: %w", err)
	}
	return []byte(out), nil
}

func addAdaptationSet(m *mpd.MPD, mime media.MimeType, set []*media.Stream) error {
	var (
		as  *mpd.AdaptationSet
		err error
	)
	if mime.IsAudio() {
		as, err = m.AddNewAdaptationSetAudio(mime.String(), true, 1, "und")
	} else {
		as, err = m.AddNewAdaptationSetVideo(mime.String(), "progressive", true, 1)
	}
	if err != nil {
		return err
	}

	for i, s := range set {
		id := s.Itag()
		if id == 0 {
			id = uint(i + 1)
		}
		rep, err := addRepresentation(as, mime, s, strconv.FormatUint(uint64(id), 10))
		if err != nil {
			return err
		}
		if err := rep.SetNewBaseURL(s.URI()); err != nil {
			return err
		}
		index, hasIndex := s.IndexRange()
		init, hasInit := s.InitRange()
		if hasIndex && hasInit {
			if _, err := rep.AddNewSegmentBase(index.String(), init.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func addRepresentation(as *mpd.AdaptationSet, mime media.MimeType, s *media.Stream, id string) (*mpd.Representation, error) {
	bandwidth := int64(s.Bitrate())
	if mime.IsAudio() {
		return as.AddNewRepresentationAudio(defaultSamplingRate, bandwidth, s.CodecsString(), id)
	}
	w, _ := s.Width()
	h, _ := s.Height()
	rate := ""
	if fps, ok := s.FPS(); ok {
		rate = fps.String()
	}
	return as.AddNewRepresentationVideo(bandwidth, s.CodecsString(), id, rate, int64(w), int64(h))
}
