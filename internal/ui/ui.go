package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fitlink/internal/auth"
	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/desertthunder/fitlink/internal/tokenstore"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConnectView ViewState = iota
	ManualView
	ValidatingView
	ConnectedView
	FailedView
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	orch    *auth.Orchestrator
	view    ViewState
	width   int
	height  int
	spinner spinner.Model
	input   textinput.Model
	authURL string
	device  *models.LinkedDevice
	note    string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model over the orchestrator.
func NewModel(ctx context.Context, orch *auth.Orchestrator) *Model {
	input := textinput.New()
	input.Placeholder = "paste the redirect URL or the token"
	input.CharLimit = 2048
	input.Width = 64

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title

	return &Model{
		ctx:     ctx,
		orch:    orch,
		view:    ConnectView,
		spinner: s,
		input:   input,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the authorization attempt and the outcome subscription.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.begin(), m.waitForOutcome(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case ConnectView:
			return m.handleConnectKeys(msg)
		case ManualView:
			return m.handleManualKeys(msg)
		case ConnectedView, FailedView:
			return m.handleFinalKeys(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case Msg:
		return m.handleAppMsg(msg)
	}

	return m, nil
}

func (m *Model) handleAppMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgAttemptStarted:
		data := msg.data.(struct {
			authURL string
			err     error
		})
		if data.err != nil {
			m.err = data.err
			m.view = FailedView
			return m, nil
		}
		m.authURL = data.authURL
		return m, nil

	case MsgOutcome:
		return m.handleOutcome(msg.data.(auth.Outcome))

	case MsgManualResult:
		if err, ok := msg.data.(error); ok && err != nil {
			if errors.Is(err, shared.ErrNoToken) {
				m.note = "Nothing usable in that input. Paste the full redirect URL or just the token."
				m.view = ManualView
				return m, textinput.Blink
			}
			// Validation failures arrive through the outcome channel; other
			// errors land here.
			m.err = err
		}
		return m, nil

	case MsgPasted:
		data := msg.data.(struct {
			text string
			err  error
		})
		if data.err != nil {
			m.note = "Clipboard unavailable; type or paste with the terminal instead."
			return m, nil
		}
		m.input.SetValue(data.text)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleOutcome(out auth.Outcome) (tea.Model, tea.Cmd) {
	switch out.Kind {
	case auth.OutcomeConnected:
		m.device = out.Device
		m.view = ConnectedView
		return m, m.waitForOutcome()

	case auth.OutcomePersistenceWarning:
		m.note = "The token could not be saved; you will need to reconnect after a restart."
		return m, m.waitForOutcome()

	case auth.OutcomeValidationFailed:
		m.err = out.Err
		if out.Reason == tokenstore.ReasonNetwork {
			m.note = "The check did not reach Fitbit. Your connection may be down; retry or enter the token manually."
		} else {
			m.note = "Fitbit rejected the token. Retry the connection from the start."
		}
		m.view = FailedView
		return m, m.waitForOutcome()

	case auth.OutcomeAuthError:
		m.err = out.Err
		m.note = "Fitbit declined the authorization."
		m.view = FailedView
		return m, m.waitForOutcome()

	case auth.OutcomeNoToken:
		m.err = out.Err
		m.note = "No redirect arrived in time. Finish the login in the browser, then retry or paste the result manually."
		m.view = FailedView
		return m, m.waitForOutcome()
	}

	return m, m.waitForOutcome()
}

func (m *Model) handleConnectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.orch.Abandon()
		return m, tea.Quit
	case key.Matches(msg, m.keys.manual):
		m.enterManual()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) handleManualKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		m.orch.Abandon()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ConnectView
		return m, nil
	case key.Matches(msg, m.keys.paste):
		return m, m.readClipboard()
	case key.Matches(msg, m.keys.enter):
		raw := m.input.Value()
		if raw == "" {
			return m, nil
		}
		m.view = ValidatingView
		return m, m.submitManual(raw)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleFinalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.retry) && m.view == FailedView:
		m.err = nil
		m.note = ""
		m.view = ConnectView
		return m, m.begin()
	case key.Matches(msg, m.keys.manual) && m.view == FailedView:
		m.enterManual()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) enterManual() {
	m.orch.EnterManual()
	m.input.SetValue("")
	m.input.Focus()
	m.view = ManualView
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConnectView:
		return m.renderConnect()
	case ManualView:
		return m.renderManual()
	case ValidatingView:
		return m.renderValidating()
	case ConnectedView:
		return m.renderConnected()
	case FailedView:
		return m.renderFailed()
	default:
		return ""
	}
}

func (m *Model) begin() tea.Cmd {
	return func() tea.Msg {
		_, authURL, err := m.orch.Begin(m.ctx)
		return attemptStartedMsg(authURL, err)
	}
}

func (m *Model) waitForOutcome() tea.Cmd {
	return func() tea.Msg {
		out, ok := <-m.orch.Outcomes()
		if !ok {
			return nil
		}
		return outcomeMsg(out)
	}
}

func (m *Model) submitManual(raw string) tea.Cmd {
	return func() tea.Msg {
		return manualResultMsg(m.orch.Manual(m.ctx, raw))
	}
}

func (m *Model) readClipboard() tea.Cmd {
	return func() tea.Msg {
		text, err := clipboard.ReadAll()
		return pastedMsg(text, err)
	}
}

func (m *Model) renderConnect() string {
	title := styles.title.Render("Connect your Fitbit account")
	status := fmt.Sprintf("%s Waiting for the browser redirect...", m.spinner.View())

	var link string
	if m.authURL != "" {
		link = fmt.Sprintf("\nIf the browser did not open, visit:\n%s\n", styles.help.Render(m.authURL))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.manual, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n%s", title, status, link, helpView)
}

func (m *Model) renderManual() string {
	title := styles.title.Render("Manual token entry")
	hint := "Paste the address of the page the login ended on, or the token itself."

	var note string
	if m.note != "" {
		note = "\n" + styles.warn.Render(m.note)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.paste, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s", title, hint, m.input.View(), note, helpView)
}

func (m *Model) renderValidating() string {
	title := styles.title.Render("Checking the token")
	return fmt.Sprintf("%s\n%s Validating against Fitbit...", title, m.spinner.View())
}

func (m *Model) renderConnected() string {
	title := styles.ok.Render("✓ Fitbit connected")

	var info string
	if m.device != nil {
		info = fmt.Sprintf("\nAccount: %s", m.device.Name)
		if m.device.Model != "" {
			info += fmt.Sprintf("\nDevice: %s", m.device.Model)
		}
		if m.device.BatteryLevel != nil {
			info += fmt.Sprintf("\nBattery: %d%%", *m.device.BatteryLevel)
		}
	}

	var note string
	if m.note != "" {
		note = "\n\n" + styles.warn.Render(m.note)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s%s%s\n\n%s", title, info, note, helpView)
}

func (m *Model) renderFailed() string {
	title := styles.err.Render("Connection failed")

	var detail string
	if m.err != nil {
		detail = fmt.Sprintf("\n%v", m.err)
	}

	var note string
	if m.note != "" {
		note = "\n\n" + styles.warn.Render(m.note)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.retry, m.keys.manual, m.keys.quit})
	return fmt.Sprintf("%s%s%s\n\n%s", title, detail, note, helpView)
}
