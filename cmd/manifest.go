package cmd

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tuber/internal/manifest"
	"tuber/internal/media"
	"tuber/internal/output"
)

var (
	flagFormat    string
	flagMaxHeight uint
	flagAudioOnly bool
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <uri>",
	Short: "Write an HLS or DASH manifest for the adaptive streams of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  manifestRun,
}

func init() {
	manifestCmd.Flags().StringVarP(&flagFormat, "format", "f", "", "Manifest format: hls | dash (default: the format the streams came from)")
	manifestCmd.Flags().UintVar(&flagMaxHeight, "max-height", 0, "Leave out video renditions taller than this")
	manifestCmd.Flags().BoolVar(&flagAudioOnly, "audio-only", false, "Only keep audio renditions")
}

func manifestRun(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	info, err := c.FetchMediaInfo(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	kind, err := manifestFormat(flagFormat, info)
	if err != nil {
		return err
	}

	data, ext, err := generateManifest(info, kind, renditionFilter(flagMaxHeight, flagAudioOnly))
	if err != nil {
		return err
	}

	dir, err := cfg.ExpandManifestDir()
	if err != nil {
		return fmt.Errorf("resolving manifest dir: %w", err)
	}
	path, err := output.NewWriter(nil, dir).Write(baseName(info)+ext, data)
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	logrus.WithFields(logrus.Fields{"format": kind.String(), "path": path}).Debug("manifest written")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// manifestFormat picks the manifest type to generate. Without an explicit
// choice it follows the adaptive streams, preferring DASH.
func manifestFormat(name string, info *media.MediaInfo) (media.ManifestType, error) {
	switch name {
	case "hls":
		return media.HLS, nil
	case "dash":
		return media.DASH, nil
	case "":
	default:
		return media.ManifestUnknown, fmt.Errorf("unknown manifest format %q (want hls or dash)", name)
	}

	kind := media.ManifestUnknown
	for _, s := range info.AdaptiveStreams() {
		if s.Manifest() == media.DASH {
			return media.DASH, nil
		}
		kind = s.Manifest()
	}
	if kind == media.ManifestUnknown {
		return kind, manifest.ErrNothingToGenerate
	}
	return kind, nil
}

func generateManifest(info *media.MediaInfo, kind media.ManifestType, filter manifest.Filter) ([]byte, string, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	switch kind {
	case media.HLS:
		data, err = manifest.GenerateHLS(info, filter)
		ext = ".m3u8"
	case media.DASH:
		data, err = manifest.GenerateDASH(info, filter)
		ext = ".mpd"
	default:
		return nil, "", manifest.ErrNothingToGenerate
	}
	if errors.Is(err, manifest.ErrNothingToGenerate) {
		return nil, "", fmt.Errorf("%s: %w", kind, err)
	}
	return data, ext, err
}

// renditionFilter keeps audio renditions and video renditions no taller
// than maxHeight. Zero means no height limit.
func renditionFilter(maxHeight uint, audioOnly bool) manifest.Filter {
	if maxHeight == 0 && !audioOnly {
		return nil
	}
	return func(s *media.Stream) bool {
		if s.AudioOnly() {
			return true
		}
		if audioOnly {
			return false
		}
		h, ok := s.Height()
		return !ok || h <= maxHeight
	}
}
