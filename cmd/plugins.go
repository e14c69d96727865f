package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tuber/internal/extract"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins [filter]",
	Short: "List the available plugins",
	Args:  cobra.MaximumNArgs(1),
	RunE:  pluginsRun,
}

func pluginsRun(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	plugins := c.Plugins()

	if len(args) == 1 {
		plugins = filterPlugins(plugins, args[0])
		if len(plugins) == 0 {
			return fmt.Errorf("no plugin matches %q", args[0])
		}
	}

	return writePlugins(cmd.OutOrStdout(), plugins, isTerminal(os.Stdout))
}

// writePlugins draws a table on a terminal and tab-aligned columns
// otherwise, so piped output stays easy to cut.
func writePlugins(w io.Writer, plugins []extract.Extractor, tty bool) error {
	if !tty {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPRIORITY")
		for _, p := range plugins {
			fmt.Fprintf(tw, "%s\t%d\n", p.Name(), p.Priority())
		}
		return tw.Flush()
	}

	st := newStyles(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.faint).
		Headers("NAME", "PRIORITY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, p := range plugins {
		t.Row(p.Name(), strconv.Itoa(p.Priority()))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// filterPlugins keeps the plugins whose name fuzzy-matches filter, best
// match first.
func filterPlugins(plugins []extract.Extractor, filter string) []extract.Extractor {
	names := lo.Map(plugins, func(p extract.Extractor, _ int) string { return p.Name() })
	ranks := fuzzy.RankFindFold(filter, names)
	sort.Sort(ranks)
	return lo.Map(ranks, func(r fuzzy.Rank, _ int) extract.Extractor { return plugins[r.OriginalIndex] })
}

// suggestPlugins returns the known plugin names close to name.
func suggestPlugins(name string, known []string) []string {
	ranks := fuzzy.RankFindFold(name, known)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return lo.Map(ranks, func(r fuzzy.Rank, _ int) string { return r.Target })
	}
	return lo.Filter(known, func(k string, _ int) bool {
		return fuzzy.LevenshteinDistance(strings.ToLower(name), k) <= 2
	})
}

// warnUnknownPlugins logs every disabled plugin name that no built-in
// plugin carries.
func warnUnknownPlugins(disabled []string) {
	known := lo.Map(extract.NewDefault(nil).List(), func(p extract.Extractor, _ int) string { return p.Name() })
	for _, name := range disabled {
		if lo.ContainsBy(known, func(k string) bool { return strings.EqualFold(name, k) }) {
			continue
		}
		entry := logrus.WithField("plugin", name)
		if s := suggestPlugins(name, known); len(s) > 0 {
			entry = entry.WithField("did_you_mean", s)
		}
		entry.Warn("unknown plugin in disabled list")
	}
}
