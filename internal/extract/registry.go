package extract

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"

	"tuber/internal/config"
	"tuber/internal/media"
)

// Registry picks the Extractor for a URI. Lookups read an immutable
// snapshot, so they are safe to run concurrently with Register and Replace.
type Registry struct {
	snap atomic.Pointer[[]Extractor]
}

// NewRegistry returns a registry holding exts, or an error on duplicate names.
func NewRegistry(exts ...Extractor) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(exts...); err != nil {
		return nil, err
	}
	return r, nil
}

// NewDefault returns a registry of the built-in plugins, minus those the
// configuration disables.
func NewDefault(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	all := []Extractor{
		NewPeerTube(cfg.PeerTubeHosts...),
		NewInvidious(cfg.InvidiousInstance, cfg.InvidiousHosts...),
		NewPiped(cfg.PipedHosts, cfg.PipedAPIHosts),
		NewReddit(),
		NewLBRY(),
		NewTwitch(),
		NewDirectManifest(),
		NewHTML(),
	}
	enabled := lo.Filter(all, func(e Extractor, _ int) bool {
		return !cfg.IsDisabled(e.Name())
	})

	r := &Registry{}
	r.snap.Store(&enabled)
	return r
}

func (r *Registry) load() []Extractor {
	if p := r.snap.Load(); p != nil {
		return *p
	}
	return nil
}

// Register adds ext to the registry. Names are unique.
func (r *Registry) Register(ext Extractor) error {
	for {
		old := r.snap.Load()
		var cur []Extractor
		if old != nil {
			cur = *old
		}
		if slices.ContainsFunc(cur, func(e Extractor) bool { return e.Name() == ext.Name() }) {
			return fmt.Errorf("extractor %q already registered", ext.Name())
		}
		next := append(slices.Clone(cur), ext)
		if r.snap.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Replace swaps the whole plugin set at once. In-flight lookups keep
// using the snapshot they started with.
func (r *Registry) Replace(exts ...Extractor) error {
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		if seen[e.Name()] {
			return fmt.Errorf("extractor %q already registered", e.Name())
		}
		seen[e.Name()] = true
	}
	next := slices.Clone(exts)
	r.snap.Store(&next)
	return nil
}

// List returns the registered plugins, highest priority first.
func (r *Registry) List() []Extractor {
	exts := slices.Clone(r.load())
	slices.SortStableFunc(exts, func(a, b Extractor) int {
		if a.Priority() != b.Priority() {
			return b.Priority() - a.Priority()
		}
		return strings.Compare(a.Name(), b.Name())
	})
	return exts
}

// Lookup returns the plugin registered under name.
func (r *Registry) Lookup(name string) (Extractor, bool) {
	return lo.Find(r.load(), func(e Extractor) bool { return e.Name() == name })
}

// Resolve returns the highest-priority plugin that matches u. It fails
// with NoMatchingExtractor when nothing matches and AmbiguousExtractor
// when the top priority is shared.
func (r *Registry) Resolve(u *url.URL) (Extractor, error) {
	matches := lo.Filter(r.load(), func(e Extractor, _ int) bool {
		return e.Match(u)
	})
	if len(matches) == 0 {
		return nil, media.Errorf(media.KindNoMatchingExtractor, "no plugin handles %s", u)
	}

	best := lo.MaxBy(matches, func(a, b Extractor) bool {
		return a.Priority() > b.Priority()
	})
	top := lo.Filter(matches, func(e Extractor, _ int) bool {
		return e.Priority() == best.Priority()
	})
	if len(top) > 1 {
		names := lo.Map(top, func(e Extractor, _ int) string { return e.Name() })
		return nil, media.Errorf(media.KindAmbiguousExtractor, "%s matched by %s at priority %d",
			u, strings.Join(names, ", "), best.Priority())
	}
	return best, nil
}
