package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xKrishnaSaxena/WhatsBill/internal/chat"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// phoneNumberHeader identifies the caller on every /chat request; it is
// the same header the billing backend keys accounts by.
const phoneNumberHeader = "phone-number"

// turnResponse is the JSON body of a successful text turn.
type turnResponse struct {
	Messages          []models.Message         `json:"messages"`
	ConversationState models.ConversationState `json:"conversation_state"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rawIdentity := r.Header.Get(phoneNumberHeader)
	if rawIdentity == "" {
		slog.Warn("Server.chatHandler: missing phone-number header")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing phone-number header"))
		return
	}
	identity, err := chat.NormalizeIdentity(rawIdentity)
	if err != nil {
		slog.Warn("Server.chatHandler: invalid phone-number header", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone-number header"))
		return
	}

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.orchestrator.HandleTurn(r.Context(), identity, req.Messages, req.ConversationState)
	if err != nil {
		slog.Error("Server.chatHandler: turn failed", "identity", identity, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		return
	}

	if result.PDF != nil {
		filename := fmt.Sprintf("invoice_%s.pdf", uuid.NewString())
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.PDF); err != nil {
			slog.Error("Server.chatHandler: failed to write PDF response", "error", err)
		}
		slog.Info("Server.chatHandler: invoice PDF served", "identity", identity, "filename", filename, "bytes", len(result.PDF))
		return
	}

	writeJSONResponse(w, http.StatusOK, turnResponse{
		Messages:          result.Messages,
		ConversationState: result.ConversationState,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
