package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytdrop/internal/models"
	"github.com/desertthunder/ytdrop/internal/tasks"
)

const recentLines = 8

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DownloadView ViewState = iota
	ResultView
)

// RunFunc starts a download run, e.g. a closure over [tasks.PlaylistEngine.Download].
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.Report, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	run          RunFunc
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan tasks.ProgressUpdate
	finished     chan struct{}
	mu           sync.Mutex
	outcome      downloadResult
	last         tasks.ProgressUpdate
	recent       []string
	downloaded   int
	skipped      int
	failed       int
	report       *models.Report
	err          error
	failures     list.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that executes run once started.
func NewModel(ctx context.Context, run RunFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:     ctx,
		view:    DownloadView,
		run:     run,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Wait blocks until the run returns and yields its outcome, even when the program quit first.
// It returns immediately when the run was never started.
func (m *Model) Wait() (*models.Report, error) {
	if m.finished == nil {
		return m.report, m.err
	}
	<-m.finished
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome.report, m.outcome.err
}

// Init starts the download run and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(msg.Width-4, 60))
		if m.view == ResultView {
			m.failures.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		if m.view == ResultView {
			var cmd tea.Cmd
			m.failures, cmd = m.failures.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != DownloadView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgDownloadComplete:
			res := msg.data.(downloadResult)
			m.finish(res.report, res.err)
			return m, nil
		}
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.finished = make(chan struct{})

	go func(progress chan tasks.ProgressUpdate, finished chan struct{}) {
		report, err := m.run(m.ctx, progress)
		m.mu.Lock()
		m.outcome = downloadResult{report: report, err: err}
		m.mu.Unlock()
		close(progress)
		close(finished)
	}(m.progressChan, m.finished)

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			report, err := m.Wait()
			return downloadCompleteMsg(report, err)
		}
		return progressUpdateMsg(update)
	}
}

// apply folds a progress update into the live counters.
func (m *Model) apply(update tasks.ProgressUpdate) {
	m.last = update
	if update.Phase != tasks.DownloadTracks {
		return
	}
	res, ok := update.Data.(models.TrackResult)
	if !ok || !res.State.Terminal() {
		return
	}

	switch res.State {
	case models.StateDone:
		m.downloaded++
	case models.StateSkipped:
		m.skipped++
	default:
		m.failed++
	}

	m.recent = append(m.recent, update.Message)
	if len(m.recent) > recentLines {
		m.recent = m.recent[len(m.recent)-recentLines:]
	}
}

func (m *Model) finish(report *models.Report, err error) {
	m.report = report
	m.err = err
	m.view = ResultView
	if report == nil {
		return
	}

	m.failures = list.New(failureItems(report), list.NewDefaultDelegate(), 0, 0)
	m.failures.Title = "Failed tracks"
	m.failures.SetShowHelp(false)
	m.failures.SetSize(max(m.width-4, 20), max(m.height-12, 5))
}

func (m *Model) percent() float64 {
	if m.last.Total == 0 {
		return 0
	}
	return float64(m.downloaded+m.skipped+m.failed) / float64(m.last.Total)
}

func (m *Model) renderDownload() string {
	title := styles.title.Render("Downloading")
	status := fmt.Sprintf("%s %s", m.spinner.View(), m.last.Message)
	counts := fmt.Sprintf("%s  %s  %s",
		styles.ok.Render(fmt.Sprintf("%d downloaded", m.downloaded)),
		styles.help.Render(fmt.Sprintf("%d skipped", m.skipped)),
		failedStyle(m.failed).Render(fmt.Sprintf("%d failed", m.failed)),
	)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s\n\n%s",
		title, status, m.bar.ViewAs(m.percent()), counts, strings.Join(m.recent, "\n"), helpView)
}

func (m *Model) renderResult() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Run ended early: %v", m.err)))
		b.WriteString("\n\n")
	}
	if m.report == nil {
		b.WriteString(RenderReport(nil))
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
		return b.String()
	}
	b.WriteString(renderCounts(m.report))
	b.WriteString(renderDuplicates(m.report))

	if m.report.Failed > 0 {
		b.WriteString("\n\n")
		b.WriteString(m.failures.View())
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit}))
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}
