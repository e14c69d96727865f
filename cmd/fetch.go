package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webtor-io/lazymap"
	"golang.org/x/term"

	"tuber/client"
	"tuber/internal/httputil"
	"tuber/internal/media"
	"tuber/internal/output"
	"tuber/internal/subtitle"
)

// fetchRun is the default command: tuber <uri...>
func fetchRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	r := newResolver(c, flagAsync)
	r.tty = r.tty && !flagQuiet

	w := cmd.OutOrStdout()
	st := newStyles(isTerminal(os.Stdout))
	asJSON := cfg.Output == "json"

	failed := 0
	for _, uri := range args {
		info, err := r.Resolve(cmd.Context(), uri)
		if err != nil {
			failed++
			logrus.WithError(err).WithField("uri", uri).Debug("resolution failed")
			if err := render(w, st, asJSON, errorOutput(uri, err)); err != nil {
				return err
			}
			continue
		}

		subs := subtitle.Filter(info.Subtitles(), cfg.SubsLanguage)
		if err := render(w, st, asJSON, newOutput(uri, info, subs)); err != nil {
			return err
		}

		if flagSaveSubs {
			if err := saveSubtitle(cmd.Context(), c, info); err != nil {
				logrus.WithError(err).WithField("uri", uri).Warn("saving subtitle failed")
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d URIs could not be resolved", failed, len(args))
	}
	return nil
}

func render(w io.Writer, st styles, asJSON bool, out Output) error {
	if asJSON {
		return writeJSON(w, out)
	}
	writeText(w, st, out)
	return nil
}

// saveSubtitle downloads the subtitle that best matches the configured
// language into the output directory.
func saveSubtitle(ctx context.Context, c *client.Client, info *media.MediaInfo) error {
	best := subtitle.BestMatch(info.Subtitles(), cfg.SubsLanguage)
	if best == nil {
		return fmt.Errorf("no subtitle for language %q", cfg.SubsLanguage)
	}

	dir, err := cfg.ExpandManifestDir()
	if err != nil {
		return fmt.Errorf("resolving output dir: %w", err)
	}
	path, err := subtitle.Save(ctx, c.Fetcher(), output.NewWriter(nil, dir), baseName(info), *best)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved subtitle: %s\n", path)
	return nil
}

// baseName names output files after the video id, falling back to the title.
func baseName(info *media.MediaInfo) string {
	if info.ID() != "" {
		return info.ID()
	}
	if info.Title() != "" {
		return info.Title()
	}
	return "media"
}

// resolver resolves URIs for one CLI run. A URI given twice is
// resolved once.
type resolver struct {
	c     *client.Client
	async bool
	tty   bool
	cache *lazymap.LazyMap[*media.MediaInfo]
}

func newResolver(c *client.Client, async bool) *resolver {
	return &resolver{
		c:     c,
		async: async,
		tty:   isTerminal(os.Stderr),
		cache: lazymap.New[*media.MediaInfo](&lazymap.Config{
			Expire:      10 * time.Minute,
			ErrorExpire: 10 * time.Minute,
		}),
	}
}

func (r *resolver) Resolve(ctx context.Context, uri string) (*media.MediaInfo, error) {
	return r.cache.Get(strings.TrimSpace(uri), func() (*media.MediaInfo, error) {
		switch {
		case !r.async:
			return r.c.FetchMediaInfo(ctx, uri)
		case r.tty:
			return resolveWithSpinner(ctx, r.c, uri)
		default:
			p, err := r.c.FetchMediaInfoAsync(ctx, uri)
			if err != nil {
				return nil, err
			}
			return r.c.FetchMediaInfoFinish(ctx, p)
		}
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// errorKind names the category of err for JSON output.
func errorKind(err error) string {
	if errors.Is(err, client.ErrCanceled) || errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if httputil.IsCanceled(err) {
		return "timeout"
	}
	switch media.KindOf(err) {
	case media.KindInvalidArgument:
		return "invalid_argument"
	case media.KindNoMatchingExtractor:
		return "no_matching_extractor"
	case media.KindAmbiguousExtractor:
		return "ambiguous_extractor"
	case media.KindFetchFailed:
		return "fetch_failed"
	case media.KindManifestParse:
		return "manifest_parse"
	case media.KindExtractionFailed:
		return "extraction_failed"
	default:
		return "unknown"
	}
}
