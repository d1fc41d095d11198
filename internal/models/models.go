// Package models defines the core data structures for WhatsBill.
//
// It includes chat turn payloads, billing entities, and messaging events, which
// are shared across modules.
package models

import (
	"errors"
)

// Intent classifies what the user wants from the latest message.
type Intent string

const (
	// IntentReminder indicates a natural-language reminder request.
	IntentReminder Intent = "reminder"
	// IntentInvoice indicates the user wants to create an invoice.
	IntentInvoice Intent = "invoice"
	// IntentNone routes the message to the knowledge-base answer path.
	IntentNone Intent = "none"
)

// Message roles in a conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Error variables for better error handling and testability
var (
	ErrEmptyIdentity   = errors.New("identity cannot be empty")
	ErrNoMessages      = errors.New("at least one message is required")
	ErrEmptyMessage    = errors.New("message content cannot be empty")
	ErrInvalidRole     = errors.New("message role must be 'user' or 'assistant'")
	ErrLastNotFromUser = errors.New("last message must be from the user")
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is the inbound payload for one conversation turn.
type TurnRequest struct {
	Messages          []Message         `json:"messages"`
	ConversationState ConversationState `json:"conversation_state"`
}

// Validate checks that the request carries a usable transcript.
func (r *TurnRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}
	for _, m := range r.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return ErrInvalidRole
		}
		if m.Content == "" {
			return ErrEmptyMessage
		}
	}
	if r.Messages[len(r.Messages)-1].Role != RoleUser {
		return ErrLastNotFromUser
	}
	return nil
}

// TurnResult is the outcome of one conversation turn. Exactly one of the
// text reply (appended to Messages) or the PDF artifact is populated.
type TurnResult struct {
	Messages          []Message         `json:"messages"`
	ConversationState ConversationState `json:"conversation_state"`
	PDF               []byte            `json:"-"`
}

// Billing entities mirror the fnBill API wire format, including its
// MongoDB-style "_id" field names.

// Address is a postal address as stored by the billing backend.
type Address struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
}

// Company is a billing company record.
type Company struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	MainAddress Address `json:"main_address"`
}

// ClientRecord is a billable client with its known addresses.
type ClientRecord struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	AddressList []Address `json:"address_list"`
}

// Advertisement is a promotional banner attachable to an invoice.
type Advertisement struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	File string `json:"file"`
}

// Service is a billable service offered by a company.
type Service struct {
	ID        string  `json:"_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CompanyID string  `json:"company_id"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records the delivery status of a sent message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a participant.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for non-turn endpoints and errors.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
