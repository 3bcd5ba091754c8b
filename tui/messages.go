package tui

import (
	"time"
)

// MsgNotify carries a status or failure message from the login flow. The
// message may contain the simple markup described on Sink.Notify.
type MsgNotify struct {
	Title   string
	Message string
}

// MsgPrompt signals that the device authorization code is ready for user
// action. OnDismiss is invoked when the user dismisses the prompt.
type MsgPrompt struct {
	UserCode        string
	VerificationURI string
	Expiry          time.Time
	OnDismiss       func()
}

// MsgPromptDone signals that the prompt is no longer needed (the user
// authorized on the other device, or the flow ended).
type MsgPromptDone struct{}

// MsgDone signals that the login flow completed with a profile.
type MsgDone struct {
	Name string
	UUID string
}

// MsgFatal signals that the login flow failed terminally.
type MsgFatal struct{ Err error }
