// Package subtitle picks caption tracks by language and saves them.
package subtitle

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"tuber/internal/httputil"
	"tuber/internal/media"
	"tuber/internal/output"
)

// Filter returns subtitles matching the preferred language (case-insensitive).
// A subtitle matches on its language code or on the start of its label.
func Filter(subtitles []media.Subtitle, language string) []media.Subtitle {
	if language == "" {
		return subtitles
	}

	lang := strings.ToLower(language)
	var matched []media.Subtitle

	for _, sub := range subtitles {
		if strings.EqualFold(sub.Language, lang) ||
			strings.HasPrefix(strings.ToLower(sub.Label), lang) {
			matched = append(matched, sub)
		}
	}

	return matched
}

// BestMatch returns the best matching subtitle for the given language.
// Prefers an exact language code, then a non-SDH, non auto-generated label.
func BestMatch(subtitles []media.Subtitle, language string) *media.Subtitle {
	filtered := Filter(subtitles, language)
	if len(filtered) == 0 {
		return nil
	}

	lang := strings.ToLower(language)

	for _, sub := range filtered {
		if strings.EqualFold(sub.Language, lang) && plain(sub.Label) {
			return &sub
		}
	}

	for _, sub := range filtered {
		if plain(sub.Label) {
			return &sub
		}
	}

	return &filtered[0]
}

func plain(label string) bool {
	l := strings.ToLower(label)
	return !strings.Contains(l, "sdh") && !strings.Contains(l, "auto-generated")
}

// Save fetches sub and stores it through w. The file is named after base
// and the subtitle language.
func Save(ctx context.Context, fetch httputil.Fetcher, w *output.Writer, base string, sub media.Subtitle) (string, error) {
	if err := httputil.ValidateURL(sub.URL); err != nil {
		return "", fmt.Errorf("invalid subtitle URL: %w", err)
	}

	resp, err := fetch.Fetch(ctx, &httputil.Request{URL: sub.URL, Accept: "text/vtt,*/*"})
	if err != nil {
		return "", fmt.Errorf("downloading subtitle: %w", err)
	}

	lang := sub.Language
	if lang == "" {
		lang = "und"
	}
	return w.Write(fmt.Sprintf("%s.%s%s", base, lang, extension(sub.URL)), resp.Body)
}

// extension guesses the subtitle file extension from its URL.
func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".vtt", ".srt", ".ass", ".ttml":
			return ext
		}
	}
	return ".vtt"
}
