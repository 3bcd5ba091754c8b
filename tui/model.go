package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the countdown timer.
type tickMsg time.Time

// state represents the current phase of the login flow as seen by the TUI.
type state int

const (
	stateInit    state = iota
	statePrompt        // device code shown, waiting for the user
	stateWorking       // exchanging tokens
	stateSuccess       // logged in
	stateError         // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the device-login TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	// Device code prompt
	userCode   string
	verifyURI  string
	codeExpiry time.Time
	remaining  time.Duration
	onDismiss  func()

	// Success / error display
	profileName string
	profileUUID string
	errMsg      string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles — defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleCodeBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.remaining = max(time.Until(m.codeExpiry), 0)
		if m.remaining > 0 && m.state == statePrompt {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "esc", "q":
			// Dismissing the prompt cancels the pending authorization.
			if m.state == statePrompt && m.onDismiss != nil {
				m.onDismiss()
				m.onDismiss = nil
				m.addStatus(statusWarn, "Prompt dismissed, cancelling login...")
			}
			return m, nil
		case "ctrl+c":
			if m.onDismiss != nil {
				m.onDismiss()
				m.onDismiss = nil
			}
			return m, tea.Quit
		}
		return m, nil

	// ── Login flow messages ─────────────────────────────────────────────────

	case MsgNotify:
		m.addStatus(statusInfo, Flatten(msg.Message))
		return m, nil

	case MsgPrompt:
		m.userCode = msg.UserCode
		m.verifyURI = msg.VerificationURI
		m.codeExpiry = msg.Expiry
		m.remaining = time.Until(msg.Expiry)
		m.onDismiss = msg.OnDismiss
		m.state = statePrompt
		m.addStatus(statusInfo, "Device code ready")
		return m, tickAfterSecond()

	case MsgPromptDone:
		m.onDismiss = nil
		if m.state == statePrompt {
			m.state = stateWorking
			m.addStatus(statusOK, "Authorization received, exchanging tokens...")
		}
		return m, nil

	case MsgDone:
		m.profileName = msg.Name
		m.profileUUID = msg.UUID
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown during init, the device-code prompt, and the exchanges.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  Microsoft Account Login  "))
	b.WriteString("\n\n")

	switch m.state {
	case statePrompt:
		b.WriteString(styleBold.Render("Visit this page to authorize:"))
		b.WriteString("\n")
		b.WriteString(m.verifyURI)
		b.WriteString("\n\n")

		b.WriteString(styleDim.Render("Enter code:"))
		b.WriteString("\n\n")
		b.WriteString(styleCodeBox.Render("  " + m.userCode + "  "))
		b.WriteString("\n\n")

		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for authorization...  ")
		if m.remaining > 0 {
			b.WriteString(styleDim.Render(formatDuration(m.remaining) + " remaining"))
		}
		b.WriteString("\n")
		b.WriteString(styleDim.Render("Press esc to cancel"))
		b.WriteString("\n")

	case stateWorking:
		b.WriteString(m.spinner.View())
		b.WriteString(" Exchanging tokens...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Signing in...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after a successful login.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Logged in"))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Player: "))
	b.WriteString(m.profileName + "\n")

	b.WriteString(styleBold.Render("UUID:   "))
	b.WriteString(m.profileUUID + "\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when the flow fails terminally.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Login failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
