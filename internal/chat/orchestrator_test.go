package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
	"github.com/xKrishnaSaxena/WhatsBill/internal/rag"
	"github.com/xKrishnaSaxena/WhatsBill/internal/reminder"
	"github.com/xKrishnaSaxena/WhatsBill/internal/wizard"
)

// mockGenAI serves both the RAG answerer and the reminder parser in tests.
type mockGenAI struct {
	response string
	err      error
}

func (m *mockGenAI) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.response, m.err
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, systemPrompt string, messages []models.Message) (string, error) {
	return m.response, m.err
}

func (m *mockGenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// mockGateway is a minimal billing gateway for orchestrator-level tests.
type mockGateway struct {
	companies []models.Company
	commitErr error
}

func (m *mockGateway) Companies(ctx context.Context, phone string) ([]models.Company, error) {
	return m.companies, nil
}

func (m *mockGateway) Clients(ctx context.Context, phone string) ([]models.ClientRecord, error) {
	return nil, nil
}

func (m *mockGateway) Advertisements(ctx context.Context, phone string) ([]models.Advertisement, error) {
	return nil, nil
}

func (m *mockGateway) ServicesForCompany(ctx context.Context, companyID, phone string) ([]models.Service, error) {
	return nil, nil
}

func (m *mockGateway) CreateInvoice(ctx context.Context, phone string) (string, error) {
	if m.commitErr != nil {
		return "", m.commitErr
	}
	return "inv-1", nil
}

func (m *mockGateway) AttachCompany(ctx context.Context, invoiceID, companyID, phone string) error {
	return nil
}

func (m *mockGateway) AttachService(ctx context.Context, invoiceID, serviceID string, quantity int, phone string) error {
	return nil
}

func (m *mockGateway) AttachAdvertisement(ctx context.Context, invoiceID, adID, phone string) error {
	return nil
}

func (m *mockGateway) UpdateAddresses(ctx context.Context, invoiceID string, billing, shipping models.Address, phone string) error {
	return nil
}

func (m *mockGateway) UpdateState(ctx context.Context, invoiceID, phone string) error {
	return nil
}

func (m *mockGateway) AttachTax(ctx context.Context, invoiceID, name string, percentage float64, phone string) error {
	return nil
}

func (m *mockGateway) InvoicePDF(ctx context.Context, invoiceID, phone string) ([]byte, error) {
	return []byte("%PDF"), nil
}

func (m *mockGateway) FileURL(file string) string {
	return "http://localhost:8001/v1/api/files/" + file
}

type sentReminder struct {
	to, body string
}

type mockSender struct {
	sent chan sentReminder
}

func (m *mockSender) SendMessage(ctx context.Context, to, body string) error {
	m.sent <- sentReminder{to: to, body: body}
	return nil
}

func newOrchestrator(gw *mockGateway, ai *mockGenAI) *Orchestrator {
	store := rag.NewInMemoryStore()
	store.Store(context.Background(), []rag.Chunk{
		{ID: "a", DocumentID: "doc", Content: "Refunds take five days.", Embedding: []float32{1, 0}},
	})
	return NewOrchestrator(
		wizard.New(gw),
		rag.NewAnswerer(ai, store, 2),
		reminder.NewParser(ai),
		reminder.NewScheduler(reminder.NewSimpleTimer(), &mockSender{sent: make(chan sentReminder, 1)}),
		"",
	)
}

func userTurn(content string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: content}}
}

func TestHandleTurnRoutesToRAG(t *testing.T) {
	o := newOrchestrator(&mockGateway{}, &mockGenAI{response: "Refunds take five days."})
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("how long do refunds take?"), models.ConversationState{})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	last := result.Messages[len(result.Messages)-1]
	if last.Role != models.RoleAssistant {
		t.Fatalf("last message role = %q", last.Role)
	}
	if !strings.Contains(last.Content, "Refunds take five days.") {
		t.Errorf("reply = %q", last.Content)
	}
	if result.ConversationState.InWizard() {
		t.Error("question turn must not start a wizard")
	}
}

func TestHandleTurnStartsWizardOnInvoiceIntent(t *testing.T) {
	gw := &mockGateway{companies: []models.Company{
		{ID: "c0", Name: "Default Co"},
		{ID: "c1", Name: "Acme"},
	}}
	o := newOrchestrator(gw, &mockGenAI{})

	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("I want to create an invoice"), models.ConversationState{})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if !result.ConversationState.InWizard() {
		t.Fatal("wizard not started")
	}
	if result.ConversationState.InvoiceCreation.Step != models.StepSelectCompany {
		t.Errorf("step = %s", result.ConversationState.InvoiceCreation.Step)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if !strings.Contains(last, "1. Do not choose a company") {
		t.Errorf("reply = %q", last)
	}
}

func TestHandleTurnReminderWinsOverInvoiceAndWizard(t *testing.T) {
	ai := &mockGenAI{response: `{"reminder_time": "2030-01-01 09:00:00", "reminder_message": "send the invoice"}`}
	o := newOrchestrator(&mockGateway{}, ai)

	state := models.ConversationState{InvoiceCreation: wizard.Start()}
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("remind me to send the invoice on new year"), state)
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if !strings.Contains(last, "Reminder set for") {
		t.Errorf("reply = %q", last)
	}
	if !result.ConversationState.InWizard() {
		t.Error("reminder turn must leave wizard state untouched")
	}
	if result.ConversationState.InvoiceCreation.Step != models.StepStart {
		t.Errorf("wizard step mutated: %s", result.ConversationState.InvoiceCreation.Step)
	}
}

func TestHandleTurnUnclearReminderAsksForClarification(t *testing.T) {
	o := newOrchestrator(&mockGateway{}, &mockGenAI{response: "{}"})
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("remind me"), models.ConversationState{})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if last != msgReminderUnclear {
		t.Errorf("reply = %q", last)
	}
}

func TestHandleTurnContinuesActiveWizard(t *testing.T) {
	gw := &mockGateway{companies: []models.Company{{ID: "c0", Name: "Default Co"}}}
	o := newOrchestrator(gw, &mockGenAI{})

	// First turn starts the wizard.
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("invoice please"), models.ConversationState{})
	if err != nil {
		t.Fatalf("first HandleTurn failed: %v", err)
	}
	// Second turn with an invalid selection goes to the wizard, not RAG.
	messages := append(result.Messages, models.Message{Role: models.RoleUser, Content: "99"})
	result, err = o.HandleTurn(context.Background(), "+1555", messages, result.ConversationState)
	if err != nil {
		t.Fatalf("second HandleTurn failed: %v", err)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if last != "Invalid company ID. Try again." {
		t.Errorf("reply = %q", last)
	}
}

func TestHandleTurnCommitFailureReportsAndClearsState(t *testing.T) {
	gw := &mockGateway{commitErr: errors.New("backend down")}
	o := newOrchestrator(gw, &mockGenAI{})

	state := models.ConversationState{InvoiceCreation: &models.InvoiceState{Step: models.StepConfirmCreation}}
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("confirm"), state)
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if last != msgInvoiceCommitFail {
		t.Errorf("reply = %q", last)
	}
	if result.ConversationState.InWizard() {
		t.Error("commit failure must clear wizard state")
	}
}

func TestHandleTurnSuccessfulCommitReturnsPDF(t *testing.T) {
	gw := &mockGateway{}
	o := newOrchestrator(gw, &mockGenAI{})

	state := models.ConversationState{InvoiceCreation: &models.InvoiceState{Step: models.StepConfirmCreation}}
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("confirm"), state)
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if string(result.PDF) != "%PDF" {
		t.Errorf("PDF = %q", result.PDF)
	}
	if result.ConversationState.InWizard() {
		t.Error("successful commit must clear wizard state")
	}
}

func TestHandleTurnValidatesTranscript(t *testing.T) {
	o := newOrchestrator(&mockGateway{}, &mockGenAI{})

	if _, err := o.HandleTurn(context.Background(), "+1555", nil, models.ConversationState{}); err != models.ErrNoMessages {
		t.Errorf("empty transcript error = %v", err)
	}
	messages := []models.Message{{Role: models.RoleAssistant, Content: "hi"}}
	if _, err := o.HandleTurn(context.Background(), "+1555", messages, models.ConversationState{}); err != models.ErrLastNotFromUser {
		t.Errorf("assistant-last error = %v", err)
	}
}

func TestHandleTurnRecoversFromPanic(t *testing.T) {
	// A nil answerer makes the question path panic; the orchestrator must
	// degrade to a generic failure reply.
	o := NewOrchestrator(
		wizard.New(&mockGateway{}),
		nil,
		reminder.NewParser(&mockGenAI{}),
		reminder.NewScheduler(reminder.NewSimpleTimer(), &mockSender{sent: make(chan sentReminder, 1)}),
		"",
	)
	result, err := o.HandleTurn(context.Background(), "+1555", userTurn("hello"), models.ConversationState{})
	if err != nil {
		t.Fatalf("HandleTurn returned error after panic: %v", err)
	}
	last := result.Messages[len(result.Messages)-1].Content
	if last != msgGenericFailure {
		t.Errorf("reply = %q", last)
	}
}

func TestHandleTurnSchedulesReminderDelivery(t *testing.T) {
	sender := &mockSender{sent: make(chan sentReminder, 1)}
	ai := &mockGenAI{response: `{"reminder_time": "2001-01-01 09:00:00", "reminder_message": "in the past"}`}
	o := NewOrchestrator(
		wizard.New(&mockGateway{}),
		rag.NewAnswerer(ai, rag.NewInMemoryStore(), 1),
		reminder.NewParser(ai),
		reminder.NewScheduler(reminder.NewSimpleTimer(), sender),
		"",
	)

	_, err := o.HandleTurn(context.Background(), "+1555", userTurn("remind me about the past"), models.ConversationState{})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	select {
	case delivered := <-sender.sent:
		if delivered.body != "Reminder: in the past" {
			t.Errorf("delivered = %+v", delivered)
		}
	case <-time.After(2 * time.Second):
		t.Error("past-due reminder was not delivered")
	}
}

func TestNormalizeIdentity(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"whatsapp:+1 (555) 000-1111", "+15550001111", false},
		{"15550001111", "+15550001111", false},
		{"no digits", "", true},
	}
	for _, c := range cases {
		got, err := NormalizeIdentity(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NormalizeIdentity(%q) expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeIdentity(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
