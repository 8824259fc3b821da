package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the countdown timer.
type tickMsg time.Time

// state represents the current phase of the authorization flow.
type state int

const (
	stateInit         state = iota
	stateRefreshing         // refreshing a cached token
	stateAwaitingCode       // callback listener up, prompt shown
	stateExchanging         // code received, calling the token endpoint
	stateVerifying          // verifying token with the resource server
	stateSuccess            // all done
	stateError              // fatal error
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

// Model is the BubbleTea model for the authorization TUI.
type Model struct {
	state   state
	spinner spinner.Model
	input   textinput.Model
	width   int
	height  int

	// Code entry
	codes     chan<- string
	interrupt func()
	prompting bool

	// Authorization info
	authURL     string
	callbackURL string
	deadline    time.Time
	remaining   time.Duration

	// Success / error display
	tokenPreview string
	tokenType    string
	expiresIn    time.Duration
	errMsg       string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleURLBox = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 1)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model. Submitted codes are sent on codes
// without blocking; interrupt is called on ctrl+c before the program quits.
func NewModel(codes chan<- string, interrupt func()) Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	in := textinput.New()
	in.Placeholder = "paste the authorization code"
	in.CharLimit = 4096
	if interrupt == nil {
		interrupt = func() {}
	}
	return Model{
		state:     stateInit,
		spinner:   s,
		input:     in,
		codes:     codes,
		interrupt: interrupt,
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
		if m.deadline.IsZero() {
			return m, nil
		}
		m.remaining = max(time.Until(m.deadline), 0)
		if m.remaining > 0 && m.state == stateAwaitingCode {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	// ── Authorization flow messages ──────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgTokensFound:
		m.addStatus(statusOK, "Found cached token")
		return m, nil

	case MsgTokenValid:
		m.addStatus(statusOK, "Access token is still valid")
		return m, nil

	case MsgTokenExpired:
		m.addStatus(statusWarn, "Access token expired")
		return m, nil

	case MsgTokensNotFound:
		m.addStatus(statusInfo, "No usable cached token, starting authorization")
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRefreshOK:
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgAuthorizeURL:
		m.authURL = msg.URL
		m.state = stateAwaitingCode
		return m, nil

	case MsgBrowserOpenFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Could not open a browser: %v", msg.Err))
		return m, nil

	case MsgWaitingForCode:
		m.callbackURL = msg.CallbackURL
		m.deadline = msg.Deadline
		m.state = stateAwaitingCode
		if m.deadline.IsZero() {
			return m, nil
		}
		m.remaining = time.Until(m.deadline)
		return m, tickAfterSecond()

	case MsgPromptCode:
		m.prompting = true
		m.input.Prompt = msg.Prompt
		m.input.Reset()
		return m, m.input.Focus()

	case MsgPromptCancel:
		m.prompting = false
		m.input.Blur()
		return m, nil

	case MsgCodeReceived:
		m.prompting = false
		m.input.Blur()
		m.addStatus(statusOK, "Authorization code received from "+msg.Source)
		return m, nil

	case MsgExchanging:
		m.state = stateExchanging
		return m, nil

	case MsgTokenSaved:
		m.addStatus(statusOK, "Token saved to "+msg.Path)
		return m, nil

	case MsgTokenSaveFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Warning: failed to save token: %v", msg.Err))
		return m, nil

	case MsgVerifying:
		m.state = stateVerifying
		m.addStatus(statusInfo, "Verifying token...")
		return m, nil

	case MsgVerifyOK:
		m.addStatus(statusOK, "Token verified successfully")
		return m, nil

	case MsgVerifyFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Token verification failed: %v", msg.Err))
		return m, nil

	case MsgDone:
		m.tokenPreview = msg.Preview
		m.tokenType = msg.TokenType
		m.expiresIn = msg.ExpiresIn
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// handleKey routes key presses to the code input while it is shown.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.interrupt()
		return m, tea.Quit
	case "enter":
		if !m.prompting {
			return m, nil
		}
		code := strings.TrimSpace(m.input.Value())
		m.prompting = false
		m.input.Blur()
		select {
		case m.codes <- code:
		default:
		}
		return m, nil
	}

	if !m.prompting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
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

// viewMain is shown during init, refresh, code entry, exchange and verify.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  OAuth Authorization  "))
	b.WriteString("\n\n")

	switch m.state {
	case stateAwaitingCode:
		b.WriteString(styleBold.Render("Open this link to authorize:"))
		b.WriteString("\n")
		b.WriteString(styleURLBox.Render(m.authURL))
		b.WriteString("\n\n")

		b.WriteString(m.spinner.View())
		b.WriteString(" Waiting for the redirect")
		if m.callbackURL != "" {
			b.WriteString(styleDim.Render(" on " + m.callbackURL))
		}
		if !m.deadline.IsZero() {
			b.WriteString("  ")
			b.WriteString(styleDim.Render(formatDuration(m.remaining) + " remaining"))
		}
		b.WriteString("\n")

		if m.prompting {
			b.WriteString("\n")
			b.WriteString(styleDim.Render("Or paste the code and press enter:"))
			b.WriteString("\n")
			b.WriteString(m.input.View())
			b.WriteString("\n")
		}

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	case stateExchanging:
		b.WriteString(m.spinner.View())
		b.WriteString(" Exchanging code for an access token...\n")

	case stateVerifying:
		b.WriteString(m.spinner.View())
		b.WriteString(" Verifying token...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown after a token was obtained.
func (m Model) viewSuccess() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ Access token ready"))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Access Token: "))
	b.WriteString(m.tokenPreview + "...\n")

	b.WriteString(styleBold.Render("Token Type:   "))
	b.WriteString(m.tokenType + "\n")

	b.WriteString(styleBold.Render("Expires In:   "))
	b.WriteString(formatDuration(m.expiresIn) + "\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Authorization failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// maxStatusLines caps the status log; older lines are summarised.
const maxStatusLines = 8

func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	lines := m.statusLines
	var b strings.Builder
	b.WriteString("\n")
	if hidden := len(lines) - maxStatusLines; hidden > 0 {
		b.WriteString(styleDim.Render(fmt.Sprintf("  (%d earlier)", hidden)))
		b.WriteString("\n")
		lines = lines[hidden:]
	}

	for _, line := range lines {
		prefix, style := "  · ", styleDim
		switch line.kind {
		case statusOK:
			prefix, style = "  ✓ ", styleOK
		case statusWarn:
			prefix, style = "  ⚠ ", styleWarn
		}
		b.WriteString(style.Render(prefix + line.text))
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

// formatDuration renders d as "1h 5m", "3m 5s" or "42s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h, rem := d/time.Hour, d%time.Hour
	mins, secs := rem/time.Minute, (rem%time.Minute)/time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, mins)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
