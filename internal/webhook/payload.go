// Package webhook receives AgentMail delivery events, deduplicates them,
// and drives the triage agent over each inbound message.
package webhook

import (
	"fmt"
	"strings"
)

// EmailMessage is the message envelope inside an AgentMail delivery.
type EmailMessage struct {
	MessageID string   `json:"message_id"`
	ThreadID  string   `json:"thread_id"`
	From      string   `json:"from"`
	Subject   string   `json:"subject"`
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
}

// Delivery is the webhook body AgentMail posts for inbox events.
type Delivery struct {
	EventID string       `json:"event_id"`
	Message EmailMessage `json:"message"`
}

// ShouldReply applies the label gate: only inbound messages still awaiting
// a reply are processed. Sent mail and already-answered mail are skipped.
func (m EmailMessage) ShouldReply() bool {
	received := false
	for _, label := range m.Labels {
		switch label {
		case "received":
			received = true
		case "replied":
			return false
		}
	}
	return received
}

// Prompt renders the message as the agent's user turn.
func (m EmailMessage) Prompt() string {
	return fmt.Sprintf("From: %s\nSubject: %s\nBody:\n%s", m.From, m.Subject, m.Text)
}

// ThreadKey returns the conversation key, falling back to the message id
// for deliveries without a thread.
func (m EmailMessage) ThreadKey() string {
	if strings.TrimSpace(m.ThreadID) != "" {
		return m.ThreadID
	}
	return m.MessageID
}
