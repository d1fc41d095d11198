package intent

import (
	"testing"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		want      models.Intent
	}{
		{"reminder phrase", "remind me to call the accountant at 5pm", models.IntentReminder},
		{"reminder mixed case", "Remind Me tomorrow about the meeting", models.IntentReminder},
		{"invoice keyword", "I want to create an invoice", models.IntentInvoice},
		{"invoice mixed case", "new Invoice please", models.IntentInvoice},
		{"plain question", "what payment methods do you support?", models.IntentNone},
		{"empty", "", models.IntentNone},
		{"remind without me", "send a reminder about invoices later", models.IntentInvoice},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.utterance); got != c.want {
				t.Errorf("Classify(%q) = %q, want %q", c.utterance, got, c.want)
			}
		})
	}
}

func TestClassifyReminderWinsOverInvoice(t *testing.T) {
	got := Classify("remind me to send the invoice on Friday")
	if got != models.IntentReminder {
		t.Errorf("Classify = %q, want %q when both phrases appear", got, models.IntentReminder)
	}
}
