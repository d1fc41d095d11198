package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/messaging"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
	"github.com/xKrishnaSaxena/WhatsBill/internal/session"
)

// msgInvoiceReady is sent over the text channel when a commit succeeds;
// the messaging transport carries text only, the PDF itself is retrieved
// through the HTTP API.
const msgInvoiceReady = "Your invoice has been created. The PDF is ready for download."

// Responder bridges the messaging channel to the orchestrator. It consumes
// inbound responses, replays each one through the per-identity session held
// in the store, and sends the orchestrator's reply back out.
type Responder struct {
	orchestrator *Orchestrator
	service      messaging.Service
	store        session.Store
}

// NewResponder creates a Responder over the given messaging service and
// session store.
func NewResponder(orchestrator *Orchestrator, service messaging.Service, store session.Store) *Responder {
	return &Responder{orchestrator: orchestrator, service: service, store: store}
}

// Start consumes the messaging service's response channel until the
// context is canceled or the channel closes.
func (r *Responder) Start(ctx context.Context) {
	go func() {
		slog.Info("Responder.Start: consuming inbound responses")
		for {
			select {
			case <-ctx.Done():
				slog.Info("Responder.Start: context canceled")
				return
			case response, ok := <-r.service.Responses():
				if !ok {
					slog.Info("Responder.Start: responses channel closed")
					return
				}
				r.handleResponse(ctx, response)
			}
		}
	}()
}

func (r *Responder) handleResponse(ctx context.Context, response models.Response) {
	identity, err := NormalizeIdentity(response.From)
	if err != nil {
		slog.Warn("Responder.handleResponse: unusable sender identity", "from", response.From, "error", err)
		return
	}

	sess, err := r.store.Get(identity)
	if err != nil {
		slog.Error("Responder.handleResponse: session load failed", "identity", identity, "error", err)
		return
	}
	if sess == nil {
		sess = &models.Session{Identity: identity}
	}
	sess.Messages = append(sess.Messages, models.Message{Role: models.RoleUser, Content: response.Body})

	result, err := r.orchestrator.HandleTurn(ctx, identity, sess.Messages, sess.State)
	if err != nil {
		slog.Error("Responder.handleResponse: turn failed", "identity", identity, "error", err)
		return
	}

	sess.Messages = result.Messages
	sess.State = result.ConversationState

	reply := msgInvoiceReady
	if result.PDF == nil {
		reply = result.Messages[len(result.Messages)-1].Content
	} else {
		sess.Messages = append(sess.Messages, models.Message{Role: models.RoleAssistant, Content: reply})
	}

	if err := r.store.Save(*sess); err != nil {
		slog.Error("Responder.handleResponse: session save failed", "identity", identity, "error", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := r.service.SendMessage(sendCtx, identity, reply); err != nil {
		slog.Error("Responder.handleResponse: reply send failed", "identity", identity, "error", err)
	}
}
