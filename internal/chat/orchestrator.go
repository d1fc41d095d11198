// Package chat hosts the per-turn orchestrator: it classifies each inbound
// message and routes it to the reminder scheduler, the invoice wizard, or
// the knowledge-base answer path, serializing turns per identity.
package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/xKrishnaSaxena/WhatsBill/internal/intent"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
	"github.com/xKrishnaSaxena/WhatsBill/internal/rag"
	"github.com/xKrishnaSaxena/WhatsBill/internal/reminder"
	"github.com/xKrishnaSaxena/WhatsBill/internal/tone"
	"github.com/xKrishnaSaxena/WhatsBill/internal/wizard"
)

// lockStripes is the number of mutexes serializing per-identity turns.
const lockStripes = 64

// User-facing fallback messages.
const (
	msgGenericFailure    = "Something went wrong. Please try again."
	msgReminderFailure   = "Something went wrong while setting the reminder. Please try again."
	msgReminderUnclear   = "I couldn't understand your reminder. Could you specify the time and message more clearly?"
	msgInvoiceCommitFail = "Error creating the invoice."
)

// Orchestrator routes conversation turns. Turns for the same identity are
// processed one at a time; turns for different identities run in parallel.
type Orchestrator struct {
	wizard    *wizard.Wizard
	answerer  *rag.Answerer
	parser    *reminder.Parser
	scheduler *reminder.Scheduler
	replyTone string

	locks [lockStripes]sync.Mutex
}

// NewOrchestrator wires the three turn handlers together. An empty
// replyTone falls back to the default tone.
func NewOrchestrator(w *wizard.Wizard, answerer *rag.Answerer, parser *reminder.Parser, scheduler *reminder.Scheduler, replyTone string) *Orchestrator {
	return &Orchestrator{
		wizard:    w,
		answerer:  answerer,
		parser:    parser,
		scheduler: scheduler,
		replyTone: tone.Normalize(replyTone),
	}
}

func (o *Orchestrator) lockFor(identity string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return &o.locks[h.Sum32()%lockStripes]
}

// HandleTurn processes one inbound turn for an identity. The returned
// result carries the full transcript with the assistant's reply appended,
// or PDF bytes when an invoice commit completes. Unexpected failures are
// converted into a generic failure reply rather than an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, identity string, messages []models.Message, state models.ConversationState) (result models.TurnResult, err error) {
	lock := o.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Orchestrator.HandleTurn: panic recovered", "identity", identity, "panic", r)
			result = reply(messages, state, msgGenericFailure)
			err = nil
		}
	}()

	if len(messages) == 0 {
		return models.TurnResult{}, models.ErrNoMessages
	}
	last := messages[len(messages)-1]
	if last.Role != models.RoleUser {
		return models.TurnResult{}, models.ErrLastNotFromUser
	}
	utterance := strings.ToLower(strings.TrimSpace(last.Content))
	detected := intent.Classify(utterance)
	slog.Info("Orchestrator.HandleTurn: routing turn", "identity", identity, "intent", detected, "inWizard", state.InWizard())

	switch {
	case detected == models.IntentReminder:
		// Reminder requests take precedence even inside an active wizard;
		// the wizard state is left untouched.
		return o.handleReminder(ctx, identity, messages, state, utterance), nil
	case state.InWizard():
		return o.handleWizard(ctx, identity, messages, state, last.Content), nil
	case detected == models.IntentInvoice:
		state.InvoiceCreation = wizard.Start()
		return o.handleWizard(ctx, identity, messages, state, last.Content), nil
	default:
		return o.handleQuestion(ctx, identity, messages, state), nil
	}
}

func (o *Orchestrator) handleReminder(ctx context.Context, identity string, messages []models.Message, state models.ConversationState, utterance string) models.TurnResult {
	when, message, err := o.parser.Parse(ctx, utterance)
	if errors.Is(err, reminder.ErrNoReminder) {
		return reply(messages, state, msgReminderUnclear)
	}
	if err != nil {
		slog.Error("Orchestrator.handleReminder: parse failed", "identity", identity, "error", err)
		return reply(messages, state, msgReminderFailure)
	}
	if err := o.scheduler.Schedule(identity, when, message); err != nil {
		slog.Error("Orchestrator.handleReminder: scheduling failed", "identity", identity, "error", err)
		return reply(messages, state, msgReminderFailure)
	}
	return reply(messages, state, reminder.ConfirmationMessage(when, message))
}

func (o *Orchestrator) handleWizard(ctx context.Context, identity string, messages []models.Message, state models.ConversationState, input string) models.TurnResult {
	stepResult, err := o.wizard.Advance(ctx, identity, state.InvoiceCreation, input)
	if stepResult.ClearState {
		state.InvoiceCreation = nil
	}
	if errors.Is(err, wizard.ErrCommitFailed) {
		return reply(messages, state, msgInvoiceCommitFail)
	}
	if err != nil {
		slog.Error("Orchestrator.handleWizard: step failed", "identity", identity, "error", err)
		state.InvoiceCreation = nil
		return reply(messages, state, msgGenericFailure)
	}
	if stepResult.PDF != nil {
		return models.TurnResult{Messages: messages, ConversationState: state, PDF: stepResult.PDF}
	}
	return reply(messages, state, stepResult.Reply)
}

func (o *Orchestrator) handleQuestion(ctx context.Context, identity string, messages []models.Message, state models.ConversationState) models.TurnResult {
	answer, err := o.answerer.Answer(ctx, messages, o.replyTone)
	if err != nil {
		slog.Error("Orchestrator.handleQuestion: answer failed", "identity", identity, "error", err)
		return reply(messages, state, msgGenericFailure)
	}
	return reply(messages, state, answer)
}

func reply(messages []models.Message, state models.ConversationState, content string) models.TurnResult {
	return models.TurnResult{
		Messages:          append(messages, models.Message{Role: models.RoleAssistant, Content: content}),
		ConversationState: state,
	}
}

// NormalizeIdentity strips formatting from a phone-number identity and
// prefixes it with "+".
func NormalizeIdentity(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", fmt.Errorf("identity %q contains no digits", raw)
	}
	return "+" + digits.String(), nil
}
