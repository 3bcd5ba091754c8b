package tui

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Handle refers to an open authorization prompt. Dismiss closes it once the
// prompt is no longer needed (the user authorized, or the flow ended).
type Handle interface {
	Dismiss()
}

// Sink is the capability the login flow uses to talk to a human. It is
// chosen once at startup: interactive (BubbleTea) when attached to a
// terminal, plain text otherwise. Implementations must be safe to call from
// any goroutine.
type Sink interface {
	// Notify relays a status or failure message. The message may contain
	// simple markup (a link, <br> line breaks, <b> emphasis) which
	// non-graphical sinks flatten.
	Notify(title, message string)

	// Prompt shows the device authorization code and where to enter it.
	// onDismiss is invoked if the user dismisses the prompt, which signals
	// cancellation back into the flow.
	Prompt(userCode, verificationURI string, expiry time.Time, onDismiss func()) Handle
}

var (
	linkPattern = regexp.MustCompile(`<a href="([^"]*)">[^<]*</a>`)
	tagPattern  = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
)

// Flatten strips the simple markup a message may carry, keeping link
// targets and turning <br> into line breaks.
func Flatten(s string) string {
	s = linkPattern.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "<br>", "\n")
	return tagPattern.ReplaceAllString(s, "")
}

const plainBanner = "-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-"

// PlainSink writes flattened text to w. Used when stderr is not a TTY
// (pipes, CI, SSH without pty) or when graphical prompts are suppressed.
// Prompt dismissal does not apply here; cancellation in plain mode comes
// from the surrounding signal context.
type PlainSink struct {
	w io.Writer
}

// NewPlainSink creates a PlainSink that writes to w.
func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w}
}

func (p *PlainSink) Notify(title, message string) {
	fmt.Fprintln(p.w, plainBanner)
	fmt.Fprintln(p.w, title)
	fmt.Fprintln(p.w, Flatten(message))
	fmt.Fprintln(p.w, plainBanner)
}

func (p *PlainSink) Prompt(
	userCode, verificationURI string,
	expiry time.Time,
	onDismiss func(),
) Handle {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Please visit: %s\n", verificationURI)
	fmt.Fprintf(p.w, "And enter code: %s\n", userCode)
	fmt.Fprintf(p.w, "The code expires in %s\n", time.Until(expiry).Round(time.Second))
	fmt.Fprintln(p.w, "----------------------------------------")
	return plainHandle{}
}

type plainHandle struct{}

func (plainHandle) Dismiss() {}

// NoopSink discards everything. Used in tests.
type NoopSink struct{}

func (NoopSink) Notify(_, _ string) {}

func (NoopSink) Prompt(_, _ string, _ time.Time, _ func()) Handle { return plainHandle{} }

// ProgramSink forwards sink calls as BubbleTea messages to a running
// tea.Program.
type ProgramSink struct {
	p *tea.Program
}

// NewProgramSink creates a ProgramSink that sends messages to p.
func NewProgramSink(p *tea.Program) *ProgramSink {
	return &ProgramSink{p: p}
}

func (s *ProgramSink) Notify(title, message string) {
	s.p.Send(MsgNotify{Title: title, Message: message})
}

func (s *ProgramSink) Prompt(
	userCode, verificationURI string,
	expiry time.Time,
	onDismiss func(),
) Handle {
	s.p.Send(MsgPrompt{
		UserCode:        userCode,
		VerificationURI: verificationURI,
		Expiry:          expiry,
		OnDismiss:       onDismiss,
	})
	return programHandle{p: s.p}
}

type programHandle struct {
	p *tea.Program
}

func (h programHandle) Dismiss() {
	h.p.Send(MsgPromptDone{})
}
