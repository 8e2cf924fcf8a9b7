package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpub/internal/tasks"
)

const (
	historySize = 6
	maxBarWidth = 60
)

// RunFunc runs a batch and reports progress on the channel it is given.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.BatchResult, error)

type progressMsg tasks.ProgressUpdate

type doneMsg struct {
	result *tasks.BatchResult
	err    error
}

// Monitor is a [tea.Model] that runs a batch in the background and follows its progress.
//
// The program exits once the batch finishes; [Monitor.Result] then holds the outcome.
type Monitor struct {
	ctx    context.Context
	cancel context.CancelFunc
	title  string
	run    RunFunc

	updates chan tasks.ProgressUpdate
	result  *tasks.BatchResult
	err     error

	last     tasks.ProgressUpdate
	history  []string
	failures []string
	done     bool
	details  bool

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewMonitor creates a monitor for run. Quitting early cancels the context run receives.
func NewMonitor(ctx context.Context, title string, run RunFunc) *Monitor {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Monitor{
		ctx:     ctx,
		cancel:  cancel,
		title:   title,
		run:     run,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the batch and the spinner.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles progress, completion and key messages.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.details):
			m.details = !m.details
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		update := tasks.ProgressUpdate(msg)
		m.last = update
		if line := ProgressLine(update); line != "" {
			m.history = append(m.history, line)
			if len(m.history) > historySize {
				m.history = m.history[len(m.history)-historySize:]
			}
		}
		if f, ok := update.Data.(tasks.Failure); ok {
			m.failures = append(m.failures, fmt.Sprintf("%s [%s]: %v", f.Title, f.Pass, f.Err))
		}
		return m, m.waitForProgress()

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	}

	return m, nil
}

// View renders the current phase, a progress bar and the most recent updates.
func (m *Monitor) View() string {
	var b strings.Builder

	if m.done {
		b.WriteString(Title(m.title))
		b.WriteString("\n")
		b.WriteString(OK("done"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), Title(m.title)))

	phase := m.last.Phase.String()
	if phase == "" {
		phase = "starting"
	}
	b.WriteString(fmt.Sprintf("%s (%d/%d)\n", phase, m.last.Step, m.last.Total))
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString(line + "\n")
	}

	if m.details && len(m.failures) > 0 {
		b.WriteString("\n" + Err("Failures") + "\n")
		for _, f := range m.failures {
			b.WriteString("  " + f + "\n")
		}
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

// Result returns the outcome of the batch once the program has exited.
func (m *Monitor) Result() (*tasks.BatchResult, error) {
	if !m.done {
		return nil, context.Canceled
	}
	return m.result, m.err
}

func (m *Monitor) percent() float64 {
	if m.last.Total == 0 {
		return 0
	}
	return float64(m.last.Step) / float64(m.last.Total)
}

func (m *Monitor) start() tea.Cmd {
	m.updates = make(chan tasks.ProgressUpdate, 50)

	go func() {
		result, err := m.run(m.ctx, m.updates)
		m.result = result
		m.err = err
		close(m.updates)
	}()

	return m.waitForProgress()
}

func (m *Monitor) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return doneMsg{result: m.result, err: m.err}
		}
		return progressMsg(update)
	}
}
