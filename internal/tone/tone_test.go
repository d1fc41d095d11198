package tone

import (
	"strings"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, tone := range []string{Formal, Friendly, Concise, Playful, Flirty} {
		if !IsValid(tone) {
			t.Errorf("IsValid(%q) = false, want true", tone)
		}
	}
	for _, tone := range []string{"", "friendly", "Sarcastic"} {
		if IsValid(tone) {
			t.Errorf("IsValid(%q) = true, want false", tone)
		}
	}
}

func TestNormalizeFallsBackToDefault(t *testing.T) {
	if got := Normalize("Angry"); got != DefaultTone {
		t.Errorf("Normalize = %q, want %q", got, DefaultTone)
	}
	if got := Normalize(Formal); got != Formal {
		t.Errorf("Normalize(%q) = %q", Formal, got)
	}
}

func TestPromptEmbedsContextAndQuery(t *testing.T) {
	prompt := Prompt("refunds take 5 days", "how long do refunds take?", Formal)
	if !strings.Contains(prompt, "refunds take 5 days") {
		t.Error("prompt missing context")
	}
	if !strings.Contains(prompt, "how long do refunds take?") {
		t.Error("prompt missing user query")
	}
	if !strings.Contains(prompt, "Primary_tone: Formal") {
		t.Error("prompt missing tone header")
	}
}

func TestPromptUnknownToneUsesFriendlyTemplate(t *testing.T) {
	prompt := Prompt("ctx", "q", "Unknown")
	if !strings.Contains(prompt, "Primary_tone: Friendly") {
		t.Errorf("unknown tone should render Friendly template:\n%s", prompt)
	}
}

func TestHumanize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"I am happy to help", "I'm happy to help 😊"},
		{"We do not store card numbers", "We don't store card numbers 😊"},
		{"You're all set!", "You're all set! 😉"},
	}
	for _, c := range cases {
		if got := Humanize(c.in); got != c.want {
			t.Errorf("Humanize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
