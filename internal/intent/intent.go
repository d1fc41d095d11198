// Package intent maps a user utterance onto one of the assistant's three
// dispatch paths.
//
// Classification is a deterministic substring match, not a model call: the
// orchestrator needs a cheap, side-effect-free decision before any external
// service is touched.
package intent

import (
	"strings"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// Classify returns the intent of an utterance. Matching is case-insensitive
// and first-match-wins: "remind me" is checked before "invoice", so an
// utterance containing both resolves to the reminder path.
func Classify(utterance string) models.Intent {
	lowered := strings.ToLower(utterance)
	if strings.Contains(lowered, "remind me") {
		return models.IntentReminder
	}
	if strings.Contains(lowered, "invoice") {
		return models.IntentInvoice
	}
	return models.IntentNone
}
