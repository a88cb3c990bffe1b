package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fitlink/internal/auth"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgAttemptStarted MsgKind = iota
	MsgOutcome
	MsgManualResult
	MsgPasted
)

// attemptStartedMsg is the constructor for [MsgAttemptStarted]
func attemptStartedMsg(authURL string, err error) Msg {
	return Msg{
		kind: MsgAttemptStarted,
		data: struct {
			authURL string
			err     error
		}{authURL, err},
	}
}

// outcomeMsg is the constructor for [MsgOutcome]
func outcomeMsg(out auth.Outcome) Msg {
	return Msg{kind: MsgOutcome, data: out}
}

// manualResultMsg is the constructor for [MsgManualResult]
func manualResultMsg(err error) Msg {
	return Msg{kind: MsgManualResult, data: err}
}

// pastedMsg is the constructor for [MsgPasted]
func pastedMsg(text string, err error) Msg {
	return Msg{
		kind: MsgPasted,
		data: struct {
			text string
			err  error
		}{text, err},
	}
}
