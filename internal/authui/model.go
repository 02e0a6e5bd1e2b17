// Package authui provides the Bubble Tea login and signup form.
package authui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/gainview/internal/auth"
	"github.com/verte-zerg/gainview/internal/model"
)

// Mode selects the form shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeSignup
)

func (m Mode) String() string {
	if m == ModeSignup {
		return "Sign up"
	}
	return "Login"
}

const (
	fieldName = iota
	fieldEmail
	fieldPassword
)

// Authenticator performs the remote login or signup.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Signup(ctx context.Context, name, email, password string) (model.User, error)
}

type authDoneMsg struct {
	user model.User
	err  error
}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Switch key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Switch: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "login/sign up")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Switch, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Submit, k.Switch, k.Quit}}
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4D4F")).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#FF4D4F")).
			Padding(0, 1)
	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Model implements the auth form.
type Model struct {
	auth    Authenticator
	timeout time.Duration

	mode       Mode
	inputs     []textinput.Model
	focus      int
	alert      string
	submitting bool
	spinner    spinner.Model
	keys       keyMap
	help       help.Model

	user     model.User
	done     bool
	quitting bool

	width  int
	height int
}

// New builds a form in mode. notice, when set, is shown as a blocking alert.
func New(authn Authenticator, mode Mode, notice string, timeout time.Duration) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := &Model{
		auth:    authn,
		timeout: timeout,
		mode:    mode,
		alert:   notice,
		spinner: sp,
		keys:    defaultKeys(),
		help:    help.New(),
	}
	m.inputs = []textinput.Model{
		newInput("Name: ", "Jane Doe", false),
		newInput("Email: ", "you@example.com", false),
		newInput("Password: ", "", true),
	}
	m.focus = m.firstField()
	m.applyFocus()
	return m
}

func newInput(prompt, placeholder string, secret bool) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 256
	input.Cursor.SetMode(cursor.CursorBlink)
	if secret {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}
	return input
}

// Result returns the authenticated user once the form succeeded.
func (m *Model) Result() (model.User, bool) {
	return m.user, m.done
}

// Cancelled reports whether the user quit without authenticating.
func (m *Model) Cancelled() bool {
	return m.quitting
}

// Mode returns the current form mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case authDoneMsg:
		m.submitting = false
		if msg.err != nil {
			m.alert = alertText(m.mode, msg.err)
			return m, nil
		}
		m.user = msg.user
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}
	if m.alert != "" {
		// The alert blocks the form until dismissed.
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.Type == tea.KeySpace {
			m.alert = ""
		}
		return m, nil
	}
	if m.submitting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Switch):
		m.switchMode()
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.moveFocus(1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.moveFocus(-1)
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.focus != fieldPassword {
			m.moveFocus(1)
			return m, nil
		}
		return m.submit()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	for _, idx := range m.fields() {
		if strings.TrimSpace(m.inputs[idx].Value()) == "" {
			m.alert = "Please fill out the " + fieldLabel(idx) + " field."
			m.focus = idx
			m.applyFocus()
			return m, nil
		}
	}
	m.submitting = true
	return m, tea.Batch(m.spinner.Tick, m.authCmd())
}

func (m *Model) authCmd() tea.Cmd {
	mode := m.mode
	name := m.inputs[fieldName].Value()
	email := m.inputs[fieldEmail].Value()
	password := m.inputs[fieldPassword].Value()
	authn := m.auth
	timeout := m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		var (
			user model.User
			err  error
		)
		if mode == ModeSignup {
			user, err = authn.Signup(ctx, name, email, password)
		} else {
			user, err = authn.Login(ctx, email, password)
		}
		return authDoneMsg{user: user, err: err}
	}
}

func (m *Model) switchMode() {
	if m.mode == ModeLogin {
		m.mode = ModeSignup
	} else {
		m.mode = ModeLogin
	}
	m.focus = m.firstField()
	m.applyFocus()
}

func (m *Model) fields() []int {
	if m.mode == ModeSignup {
		return []int{fieldName, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m *Model) firstField() int {
	return m.fields()[0]
}

func (m *Model) moveFocus(delta int) {
	fields := m.fields()
	pos := 0
	for i, idx := range fields {
		if idx == m.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(fields)) % len(fields)
	m.focus = fields[pos]
	m.applyFocus()
}

func (m *Model) applyFocus() {
	for i := range m.inputs {
		if i == m.focus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting || m.done {
		return ""
	}
	lines := []string{titleStyle.Render(m.mode.String()), ""}
	for _, idx := range m.fields() {
		lines = append(lines, m.inputs[idx].View())
	}
	lines = append(lines, "")
	if m.submitting {
		lines = append(lines, m.spinner.View()+" "+mutedStyle.Render("Contacting server..."))
	} else {
		lines = append(lines, mutedStyle.Render(m.switchHint()))
	}
	content := formStyle.Render(strings.Join(lines, "\n"))
	if m.alert != "" {
		alert := alertStyle.Render(m.alert + "\n" + mutedStyle.Render("press enter to dismiss"))
		content = lipgloss.JoinVertical(lipgloss.Center, alert, content)
	}
	content = lipgloss.JoinVertical(lipgloss.Center, content, m.help.View(m.keys))
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) switchHint() string {
	if m.mode == ModeSignup {
		return "Already have an account? ctrl+t to login"
	}
	return "No account yet? ctrl+t to sign up"
}

func fieldLabel(idx int) string {
	switch idx {
	case fieldName:
		return "name"
	case fieldEmail:
		return "email"
	default:
		return "password"
	}
}

func alertText(mode Mode, err error) string {
	var failure *auth.Failure
	if errors.As(err, &failure) {
		return failure.Error()
	}
	return mode.String() + " failed: " + err.Error()
}
