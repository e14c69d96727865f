package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tuber/client"
	"tuber/internal/media"
)

// completedMsg carries the outcome of a background resolution. ok is
// false when the resolution was canceled.
type completedMsg struct {
	c  client.Completion
	ok bool
}

// spinnerModel shows a spinner until a pending resolution completes.
// Esc, q or ctrl+c cancel the resolution.
type spinnerModel struct {
	spinner spinner.Model
	uri     string
	pending *client.Pending

	info *media.MediaInfo
	err  error
	done bool
}

func newSpinnerModel(uri string, p *client.Pending) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	return spinnerModel{spinner: s, uri: uri, pending: p}
}

func waitFor(p *client.Pending) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-p.Done()
		return completedMsg{c: c, ok: ok}
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitFor(m.pending))
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.pending.Cancel()
			m.err = client.ErrCanceled
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case completedMsg:
		m.done = true
		if !msg.ok {
			m.err = client.ErrCanceled
		} else {
			m.info, m.err = msg.c.Get()
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s resolving %s\n", m.spinner.View(), m.uri)
}

// resolveWithSpinner runs an asynchronous resolution inside a bubbletea
// event loop drawn on stderr.
func resolveWithSpinner(ctx context.Context, c *client.Client, uri string) (*media.MediaInfo, error) {
	p, err := c.FetchMediaInfoAsync(ctx, uri)
	if err != nil {
		return nil, err
	}

	final, err := tea.NewProgram(newSpinnerModel(uri, p), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		p.Cancel()
		return nil, fmt.Errorf("running progress display: %w", err)
	}
	m := final.(spinnerModel)
	return m.info, m.err
}
