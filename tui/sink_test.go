package tui

import (
	"strings"
	"testing"
	"time"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text untouched",
			input: "Login cancelled.",
			want:  "Login cancelled.",
		},
		{
			name:  "br becomes newline",
			input: "line one<br>line two",
			want:  "line one\nline two",
		},
		{
			name:  "link replaced by target",
			input: `See <a href="https://example.com/errors">the error code list</a> for details.`,
			want:  "See https://example.com/errors for details.",
		},
		{
			name:  "emphasis tags stripped",
			input: "code <b>ABCD-EFGH</b> please",
			want:  "code ABCD-EFGH please",
		},
		{
			name:  "combined",
			input: `Could not acquire xsts token.<br>Error code: 2148916233<br>See <a href="https://example.com">list</a>.`,
			want:  "Could not acquire xsts token.\nError code: 2148916233\nSee https://example.com.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Flatten(tt.input); got != tt.want {
				t.Errorf("Flatten(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlainSink_Notify(t *testing.T) {
	var buf strings.Builder
	sink := NewPlainSink(&buf)

	sink.Notify("Microsoft account login", `All set.<br>See <a href="https://example.com">here</a>.`)

	out := buf.String()
	if !strings.Contains(out, "Microsoft account login") {
		t.Errorf("Expected title in output, got %q", out)
	}
	if !strings.Contains(out, "All set.\nSee https://example.com.") {
		t.Errorf("Expected flattened message in output, got %q", out)
	}
	if strings.Contains(out, "<a href") || strings.Contains(out, "<br>") {
		t.Errorf("Expected markup to be flattened, got %q", out)
	}
}

func TestPlainSink_Prompt(t *testing.T) {
	var buf strings.Builder
	sink := NewPlainSink(&buf)

	dismissed := false
	handle := sink.Prompt(
		"ABCD-EFGH", "https://www.microsoft.com/link",
		time.Now().Add(15*time.Minute),
		func() { dismissed = true },
	)

	out := buf.String()
	if !strings.Contains(out, "https://www.microsoft.com/link") {
		t.Errorf("Expected verification URI in output, got %q", out)
	}
	if !strings.Contains(out, "ABCD-EFGH") {
		t.Errorf("Expected user code in output, got %q", out)
	}

	// Plain mode has no interactive dismissal; the handle is inert.
	handle.Dismiss()
	if dismissed {
		t.Error("Expected plain prompt to never invoke onDismiss")
	}
}
