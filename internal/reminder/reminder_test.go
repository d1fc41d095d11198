package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// mockGenAI returns a canned model response for parser tests.
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
	return nil, errors.New("not implemented")
}

func TestParseExtractsTimeAndMessage(t *testing.T) {
	parser := NewParser(&mockGenAI{
		response: `{"reminder_time": "2026-09-01 17:00:00", "reminder_message": "call the accountant"}`,
	})
	when, message, err := parser.Parse(context.Background(), "remind me to call the accountant at 5pm on sept 1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if message != "call the accountant" {
		t.Errorf("message = %q", message)
	}
	want := time.Date(2026, 9, 1, 17, 0, 0, 0, time.Local)
	if !when.Equal(want) {
		t.Errorf("when = %v, want %v", when, want)
	}
}

func TestParseStripsCodeFences(t *testing.T) {
	parser := NewParser(&mockGenAI{
		response: "```json\n{\"reminder_time\": \"2026-09-01 09:00:00\", \"reminder_message\": \"pay rent\"}\n```",
	})
	_, message, err := parser.Parse(context.Background(), "remind me to pay rent on sept 1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if message != "pay rent" {
		t.Errorf("message = %q", message)
	}
}

func TestParseEmptyObjectIsNoReminder(t *testing.T) {
	parser := NewParser(&mockGenAI{response: "{}"})
	_, _, err := parser.Parse(context.Background(), "what's the weather?")
	if !errors.Is(err, ErrNoReminder) {
		t.Errorf("error = %v, want ErrNoReminder", err)
	}
}

func TestParseMalformedJSONIsNoReminder(t *testing.T) {
	parser := NewParser(&mockGenAI{response: "sure, I'll remind you!"})
	_, _, err := parser.Parse(context.Background(), "remind me")
	if !errors.Is(err, ErrNoReminder) {
		t.Errorf("error = %v, want ErrNoReminder", err)
	}
}

func TestParseMalformedTimeIsNoReminder(t *testing.T) {
	parser := NewParser(&mockGenAI{
		response: `{"reminder_time": "tomorrow-ish", "reminder_message": "stretch"}`,
	})
	_, _, err := parser.Parse(context.Background(), "remind me to stretch tomorrow-ish")
	if !errors.Is(err, ErrNoReminder) {
		t.Errorf("error = %v, want ErrNoReminder", err)
	}
}

func TestParseModelFailurePropagates(t *testing.T) {
	parser := NewParser(&mockGenAI{err: errors.New("model unavailable")})
	_, _, err := parser.Parse(context.Background(), "remind me later")
	if err == nil || errors.Is(err, ErrNoReminder) {
		t.Errorf("model failure should not map to ErrNoReminder, got %v", err)
	}
}

// mockSender records sent messages.
type mockSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockSender) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+body)
	return m.err
}

func (m *mockSender) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestSchedulerDeliversReminder(t *testing.T) {
	sender := &mockSender{}
	scheduler := NewScheduler(NewSimpleTimer(), sender)
	defer scheduler.Stop()

	err := scheduler.Schedule("+15550001111", time.Now().Add(20*time.Millisecond), "drink water")
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if scheduler.Active() != 1 {
		t.Errorf("active reminders = %d, want 1", scheduler.Active())
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := sender.messages()
	if len(got) != 1 || got[0] != "+15550001111|Reminder: drink water" {
		t.Errorf("delivered = %v", got)
	}
}

func TestSchedulerPastTimeDeliversImmediately(t *testing.T) {
	sender := &mockSender{}
	scheduler := NewScheduler(NewSimpleTimer(), sender)
	defer scheduler.Stop()

	if err := scheduler.Schedule("+15550001111", time.Now().Add(-time.Hour), "overdue"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(sender.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(sender.messages()) != 1 {
		t.Errorf("past reminder not delivered immediately: %v", sender.messages())
	}
}

func TestSchedulerSwallowsDeliveryFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("channel down")}
	scheduler := NewScheduler(NewSimpleTimer(), sender)
	defer scheduler.Stop()

	if err := scheduler.Schedule("+15550001111", time.Now().Add(10*time.Millisecond), "x"); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	// No panic, no error surfaced; the failure is logged only.
}

func TestSimpleTimerStopCancelsPending(t *testing.T) {
	timer := NewSimpleTimer()

	var fired bool
	if _, err := timer.ScheduleAt(time.Now().Add(50*time.Millisecond), func() { fired = true }); err != nil {
		t.Fatalf("ScheduleAt failed: %v", err)
	}
	if len(timer.ListActive()) != 1 {
		t.Fatalf("active timers = %d, want 1", len(timer.ListActive()))
	}

	timer.Stop()
	time.Sleep(100 * time.Millisecond)
	if fired {
		t.Error("stopped timer still fired")
	}
	if len(timer.ListActive()) != 0 {
		t.Errorf("active timers = %d, want 0", len(timer.ListActive()))
	}
}

func TestConfirmationMessage(t *testing.T) {
	when := time.Date(2026, 9, 1, 17, 0, 0, 0, time.Local)
	got := ConfirmationMessage(when, "call the accountant")
	if !strings.Contains(got, "Tuesday, September 01, 2026 at 05:00 PM") {
		t.Errorf("confirmation = %q", got)
	}
	if !strings.Contains(got, "'call the accountant'") {
		t.Errorf("confirmation missing message: %q", got)
	}
}
