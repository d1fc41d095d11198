package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xKrishnaSaxena/WhatsBill/internal/chat"
	"github.com/xKrishnaSaxena/WhatsBill/internal/messaging"
	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
	"github.com/xKrishnaSaxena/WhatsBill/internal/rag"
	"github.com/xKrishnaSaxena/WhatsBill/internal/reminder"
	"github.com/xKrishnaSaxena/WhatsBill/internal/twiliowhatsapp"
	"github.com/xKrishnaSaxena/WhatsBill/internal/wizard"
)

type stubGenAI struct {
	response string
}

func (s *stubGenAI) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, nil
}

func (s *stubGenAI) GenerateWithMessages(ctx context.Context, systemPrompt string, messages []models.Message) (string, error) {
	return s.response, nil
}

func (s *stubGenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubGateway struct{}

func (s *stubGateway) Companies(ctx context.Context, phone string) ([]models.Company, error) {
	return nil, nil
}

func (s *stubGateway) Clients(ctx context.Context, phone string) ([]models.ClientRecord, error) {
	return nil, nil
}

func (s *stubGateway) Advertisements(ctx context.Context, phone string) ([]models.Advertisement, error) {
	return nil, nil
}

func (s *stubGateway) ServicesForCompany(ctx context.Context, companyID, phone string) ([]models.Service, error) {
	return nil, nil
}

func (s *stubGateway) CreateInvoice(ctx context.Context, phone string) (string, error) {
	return "inv-1", nil
}

func (s *stubGateway) AttachCompany(ctx context.Context, invoiceID, companyID, phone string) error {
	return nil
}

func (s *stubGateway) AttachService(ctx context.Context, invoiceID, serviceID string, quantity int, phone string) error {
	return nil
}

func (s *stubGateway) AttachAdvertisement(ctx context.Context, invoiceID, adID, phone string) error {
	return nil
}

func (s *stubGateway) UpdateAddresses(ctx context.Context, invoiceID string, billing, shipping models.Address, phone string) error {
	return nil
}

func (s *stubGateway) UpdateState(ctx context.Context, invoiceID, phone string) error {
	return nil
}

func (s *stubGateway) AttachTax(ctx context.Context, invoiceID, name string, percentage float64, phone string) error {
	return nil
}

func (s *stubGateway) InvoicePDF(ctx context.Context, invoiceID, phone string) ([]byte, error) {
	return []byte("%PDF-1.4 test"), nil
}

func (s *stubGateway) FileURL(file string) string {
	return "http://localhost:8001/v1/api/files/" + file
}

type noopSender struct{}

func (noopSender) SendMessage(ctx context.Context, to, body string) error { return nil }

func newTestServer(answer string) *Server {
	ai := &stubGenAI{response: answer}
	orchestrator := chat.NewOrchestrator(
		wizard.New(&stubGateway{}),
		rag.NewAnswerer(ai, rag.NewInMemoryStore(), 2),
		reminder.NewParser(ai),
		reminder.NewScheduler(reminder.NewSimpleTimer(), noopSender{}),
		"",
	)
	return NewServer(orchestrator, nil)
}

func chatRequest(t *testing.T, phone, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if phone != "" {
		req.Header.Set("phone-number", phone)
	}
	return req
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope
}

func TestChatHandlerMissingPhoneHeader(t *testing.T) {
	server := newTestServer("hi")
	rr := httptest.NewRecorder()
	server.chatHandler(rr, chatRequest(t, "", `{"messages":[{"role":"user","content":"hi"}]}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if envelope := decodeEnvelope(t, rr); envelope.Status != "error" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
}

func TestChatHandlerInvalidJSON(t *testing.T) {
	server := newTestServer("hi")
	rr := httptest.NewRecorder()
	server.chatHandler(rr, chatRequest(t, "+15550001111", `{not json`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChatHandlerRejectsEmptyTranscript(t *testing.T) {
	server := newTestServer("hi")
	rr := httptest.NewRecorder()
	server.chatHandler(rr, chatRequest(t, "+15550001111", `{"messages":[]}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	server := newTestServer("hi")
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	server.chatHandler(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestChatHandlerAnswersQuestion(t *testing.T) {
	server := newTestServer("Our office opens at nine.")
	rr := httptest.NewRecorder()
	server.chatHandler(rr, chatRequest(t, "+15550001111", `{"messages":[{"role":"user","content":"when do you open?"}]}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp turnResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode turn response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(resp.Messages))
	}
	last := resp.Messages[len(resp.Messages)-1]
	if last.Role != models.RoleAssistant || !strings.Contains(last.Content, "Our office opens at nine.") {
		t.Errorf("last message = %+v", last)
	}
}

func TestChatHandlerServesInvoicePDF(t *testing.T) {
	server := newTestServer("")

	req := models.TurnRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "confirm"}},
		ConversationState: models.ConversationState{
			InvoiceCreation: &models.InvoiceState{Step: models.StepConfirmCreation},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	rr := httptest.NewRecorder()
	server.chatHandler(rr, chatRequest(t, "+15550001111", string(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment; filename=invoice_") || !strings.HasSuffix(disposition, ".pdf") {
		t.Errorf("Content-Disposition = %q", disposition)
	}
	if rr.Body.String() != "%PDF-1.4 test" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer("")
	rr := httptest.NewRecorder()
	server.healthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if envelope := decodeEnvelope(t, rr); envelope.Status != "ok" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
}

func TestTwilioWebhookMounted(t *testing.T) {
	ai := &stubGenAI{}
	orchestrator := chat.NewOrchestrator(
		wizard.New(&stubGateway{}),
		rag.NewAnswerer(ai, rag.NewInMemoryStore(), 2),
		reminder.NewParser(ai),
		reminder.NewScheduler(reminder.NewSimpleTimer(), noopSender{}),
		"",
	)
	service := messaging.NewTwilioService(twiliowhatsapp.NewMockClient())
	server := NewServer(orchestrator, service)

	form := url.Values{}
	form.Set("From", "whatsapp:+15550001111")
	form.Set("Body", "hello")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	select {
	case resp := <-service.Responses():
		if resp.From != "whatsapp:+15550001111" || resp.Body != "hello" {
			t.Errorf("emitted response = %+v", resp)
		}
	default:
		t.Error("no response emitted from webhook")
	}
}
