package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/genai"
)

// TimeLayout is the wire format the model is asked to return.
const TimeLayout = "2006-01-02 15:04:05"

// ErrNoReminder indicates the utterance did not contain a parseable
// reminder time. The caller should ask the user to rephrase.
var ErrNoReminder = errors.New("no reminder found in message")

const parserSystemPrompt = "You extract reminder details from natural language and respond only with JSON."

// Parser extracts a reminder time and message from free text by delegating
// to the generative model.
type Parser struct {
	genAI genai.ClientInterface
	now   func() time.Time
}

// NewParser creates a reminder parser.
func NewParser(genAI genai.ClientInterface) *Parser {
	return &Parser{genAI: genAI, now: time.Now}
}

type parsedReminder struct {
	ReminderTime    string `json:"reminder_time"`
	ReminderMessage string `json:"reminder_message"`
}

// Parse asks the model to extract the reminder time and message from the
// utterance. ErrNoReminder is returned when no time can be extracted.
func (p *Parser) Parse(ctx context.Context, utterance string) (time.Time, string, error) {
	prompt := fmt.Sprintf(
		"User query will be in natural language, and you should correctly extract the reminder time and message."+
			" Extract the reminder time and message from the following text: '%s'."+
			" Provide the output in JSON format with the keys 'reminder_time' and 'reminder_message'."+
			" If the query contains relative terms like 'today,' 'tomorrow,' or 'day after tomorrow,'"+
			" calculate the exact date based on the current date (assume today is %s)"+
			" and include the time provided by the user. If the query specifies a specific date, ensure it is converted to this format: <YYYY-MM-DD HH:MM:SS>."+
			" If no time is mentioned, default to '09:00:00' on the calculated date."+
			" If the user query is not related to datetime or a reminder, return an empty JSON object: {}.",
		utterance, p.now().Format("2006-01-02"))

	response, err := p.genAI.GeneratePrompt(ctx, parserSystemPrompt, prompt)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("reminder extraction failed: %w", err)
	}

	cleaned := strings.TrimSpace(response)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var parsed parsedReminder
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		slog.Warn("Parser.Parse: model returned non-JSON output", "error", err)
		return time.Time{}, "", ErrNoReminder
	}
	timeStr := strings.TrimSpace(parsed.ReminderTime)
	message := strings.TrimSpace(parsed.ReminderMessage)
	if timeStr == "" || message == "" {
		return time.Time{}, "", ErrNoReminder
	}

	when, err := time.ParseInLocation(TimeLayout, timeStr, time.Local)
	if err != nil {
		slog.Warn("Parser.Parse: model returned malformed time", "value", timeStr, "error", err)
		return time.Time{}, "", ErrNoReminder
	}
	slog.Debug("Parser.Parse: reminder extracted", "when", when, "message", message)
	return when, message, nil
}
