// Package dashboard provides the Bubble Tea analysis dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/gainview/internal/analysis"
	"github.com/verte-zerg/gainview/internal/model"
)

// Workflow is the analysis state machine driven by the dashboard.
type Workflow interface {
	Snapshot() analysis.Snapshot
	SelectFile(file model.TranscriptFile)
	Reset()
	Upload(ctx context.Context) error
	FetchGainSeries(ctx context.Context) error
	ToggleGraph() bool
	ToggleTopics() bool
}

// Options configures the dashboard.
type Options struct {
	User model.User
	// PlotHeight is the number of chart rows; 0 uses the chart default.
	PlotHeight int
	// LoadFile reads a transcript from a path typed by the user.
	LoadFile func(path string) (model.TranscriptFile, error)
	// Logout clears the session. Nil disables the logout key.
	Logout func(ctx context.Context) error
}

type pendingRequest int

const (
	pendingNone pendingRequest = iota
	pendingUpload
	pendingRefresh
)

type uploadDoneMsg struct {
	file string
	err  error
}

type refreshDoneMsg struct {
	err error
}

type logoutDoneMsg struct {
	err error
}

// SessionEndedMsg closes the dashboard after the session was cleared elsewhere.
type SessionEndedMsg struct{}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	disabledButtonStyle = buttonStyle.
				Foreground(lipgloss.Color("#8C8C8C")).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	sectionStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Model implements the dashboard UI.
type Model struct {
	wf   Workflow
	opts Options
	snap analysis.Snapshot

	keys      keyMap
	help      help.Model
	spinner   spinner.Model
	bar       progress.Model
	body      viewport.Model
	pathInput textinput.Model

	pathMode  bool
	pending   pendingRequest
	alert     string
	notice    string
	errMsg    string
	loggedOut bool

	width  int
	height int
}

// New constructs a dashboard over wf.
func New(wf Workflow, opts Options) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	input := textinput.New()
	input.Prompt = "Transcript path: "
	input.Placeholder = "talk.csv"
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	m := &Model{
		wf:        wf,
		opts:      opts,
		keys:      defaultKeys(),
		help:      help.New(),
		spinner:   sp,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(30)),
		body:      viewport.New(0, 0),
		pathInput: input,
	}
	m.sync()
	return m
}

// LoggedOut reports whether the dashboard exited through logout.
func (m *Model) LoggedOut() bool {
	return m.loggedOut
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer m.sync()
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case uploadDoneMsg:
		m.pending = pendingNone
		m.handleUploadDone(msg)
		return m, nil
	case refreshDoneMsg:
		m.pending = pendingNone
		if msg.err != nil && !errors.Is(msg.err, analysis.ErrStale) {
			m.errMsg = msg.err.Error()
		}
		return m, nil
	case SessionEndedMsg:
		m.loggedOut = true
		return m, tea.Quit
	case logoutDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		m.loggedOut = true
		return m, tea.Quit
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.alert != "" {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.Type == tea.KeySpace {
			m.alert = ""
		}
		return m, nil
	}
	if m.pathMode {
		return m.updatePathInput(msg)
	}
	switch {
	case matches(msg, m.keys.Quit):
		return m, tea.Quit
	case matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.updateLayout()
		return m, nil
	case matches(msg, m.keys.Open):
		m.pathMode = true
		m.pathInput.SetValue("")
		return m, m.pathInput.Focus()
	case matches(msg, m.keys.Upload):
		return m.startUpload()
	case matches(msg, m.keys.Graph):
		m.wf.ToggleGraph()
		return m, nil
	case matches(msg, m.keys.Topics):
		m.wf.ToggleTopics()
		return m, nil
	case matches(msg, m.keys.Refresh):
		return m.startRefresh()
	case matches(msg, m.keys.Clear):
		m.wf.Reset()
		m.notice = ""
		m.errMsg = ""
		return m, nil
	case matches(msg, m.keys.Logout):
		if m.opts.Logout == nil {
			return m, nil
		}
		logout := m.opts.Logout
		return m, func() tea.Msg {
			return logoutDoneMsg{err: logout(context.Background())}
		}
	}
	var cmd tea.Cmd
	m.body, cmd = m.body.Update(msg)
	return m, cmd
}

func (m *Model) updatePathInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.pathMode = false
		m.pathInput.Blur()
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.pathInput.Value())
		m.pathMode = false
		m.pathInput.Blur()
		if path == "" || m.opts.LoadFile == nil {
			return m, nil
		}
		file, err := m.opts.LoadFile(path)
		if err != nil {
			m.alert = err.Error()
			return m, nil
		}
		m.wf.SelectFile(file)
		m.notice = ""
		m.errMsg = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *Model) startUpload() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	if m.snap.File == "" {
		m.alert = analysis.NoFileMessage
		return m, nil
	}
	m.notice = ""
	m.errMsg = ""
	wf := m.wf
	file := m.snap.File
	upload := func() tea.Msg {
		return uploadDoneMsg{file: file, err: wf.Upload(context.Background())}
	}
	m.pending = pendingUpload
	return m, tea.Batch(m.spinner.Tick, upload)
}

func (m *Model) startRefresh() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	m.notice = ""
	m.errMsg = ""
	wf := m.wf
	refresh := func() tea.Msg {
		return refreshDoneMsg{err: wf.FetchGainSeries(context.Background())}
	}
	m.pending = pendingRefresh
	return m, tea.Batch(m.spinner.Tick, refresh)
}

// busy reports whether a request started by the dashboard is outstanding.
func (m *Model) busy() bool {
	return m.pending != pendingNone || m.snap.Loading()
}

func (m *Model) handleUploadDone(msg uploadDoneMsg) {
	var upErr *analysis.UploadError
	switch {
	case msg.err == nil:
		m.notice = analysis.AnalyzedMessage(msg.file)
	case errors.Is(msg.err, analysis.ErrStale):
	case errors.As(msg.err, &upErr):
		m.alert = upErr.Error()
	default:
		m.errMsg = msg.err.Error()
	}
}

// sync refreshes the cached snapshot and re-renders the scrollable body.
func (m *Model) sync() {
	m.snap = m.wf.Snapshot()
	m.body.SetContent(m.renderContent())
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = m.width
	m.body.Width = m.width
	m.body.Height = maxInt(1, m.height-m.headerHeight()-m.footerHeight())
	m.pathInput.Width = maxInt(10, modalInnerWidth(m.width)-lipgloss.Width(m.pathInput.Prompt))
	m.bar.Width = minInt(40, maxInt(10, m.width/3))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.alert != "" {
		return m.renderModal(errorStyle.Render(m.alert) + "\n\n" + headerStyle.Render("enter to dismiss"))
	}
	if m.pathMode {
		return m.renderModal(strings.Join([]string{
			titleStyle.Render("Select transcript"),
			m.pathInput.View(),
			headerStyle.Render("Accepted: .json, .csv  enter to select / esc to cancel"),
		}, "\n"))
	}
	if m.width == 0 || m.height == 0 {
		return m.renderHeader() + "\n" + m.renderContent() + "\n" + m.renderFooter()
	}
	header := fitLines(m.renderHeader(), m.width, m.headerHeight())
	footer := fitLines(m.renderFooter(), m.width, m.footerHeight())
	return strings.Join([]string{header, m.body.View(), footer}, "\n")
}

func (m *Model) renderModal(content string) string {
	box := modalStyle.Width(modalWidth(m.width)).Render(content)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) headerHeight() int {
	return 2
}

func (m *Model) footerHeight() int {
	return lipgloss.Height(m.renderFooter())
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("Transcript Analysis")
	user := m.opts.User.Name
	if user == "" {
		user = m.opts.User.Email
	}
	if user != "" {
		title += headerStyle.Render("  signed in as " + user)
	}
	return title + "\n" + m.renderStatusLine()
}

func (m *Model) renderStatusLine() string {
	switch {
	case m.errMsg != "":
		return errorStyle.Render(truncateLine(m.errMsg, m.width))
	case m.notice != "":
		return noticeStyle.Render(truncateLine(m.notice, m.width))
	default:
		return headerStyle.Render(truncateLine("State: "+m.snap.State.String(), m.width))
	}
}

func (m *Model) renderFooter() string {
	return m.help.View(m.keys)
}

func (m *Model) renderContent() string {
	sections := []string{m.renderUploadSection(), m.renderStatusSection()}
	sections = append(sections, m.renderAnalysis()...)
	return strings.Join(sections, "\n")
}

func (m *Model) renderUploadSection() string {
	file := labelStyle.Render("Selected file: ")
	if m.snap.File == "" {
		file += headerStyle.Render("none (press o to choose)")
	} else {
		file += valueStyle.Render(fmt.Sprintf("%s (%d bytes)", m.snap.File, m.snap.FileSize))
	}
	label := "Upload"
	style := buttonStyle
	if m.snap.State == analysis.Uploading || (m.pending == pendingUpload && m.snap.State == analysis.FileSelected) {
		label = "Uploading..."
		style = disabledButtonStyle
	} else if m.snap.File == "" || m.busy() {
		style = disabledButtonStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left, file, style.Render(label))
}

func (m *Model) renderStatusSection() string {
	status := "Waiting for file..."
	if m.snap.Ready() && m.snap.ActiveFile != "" {
		status = "Analysis ready for: " + m.snap.ActiveFile
	}
	completion := labelStyle.Render("Completion: ")
	if m.snap.Progress == nil {
		completion += m.bar.ViewAs(0) + " " + valueStyle.Render("N/A")
	} else {
		pct := *m.snap.Progress
		completion += m.bar.ViewAs(clampPercent(pct)) + " " + valueStyle.Render(fmt.Sprintf("%d%%", pct))
	}
	return sectionStyle.Render(labelStyle.Render("Status: ") + valueStyle.Render(status) + "\n" + completion)
}

func clampPercent(pct int) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 1
	}
	return float64(pct) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
