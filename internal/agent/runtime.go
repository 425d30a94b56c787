// Package agent adapts the LLM runtime behind a narrow contract: given a
// thread's history and a new prompt it returns either a plain-text reply
// or a structured emergency signal, decided once at this boundary.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/careinbox/careinbox/internal/conversation"
)

// EmergencySignal is raised when the model flags a message for human
// review instead of replying.
type EmergencySignal struct {
	Message string `json:"message"`
}

// Outcome is the tagged result of one agent run. Exactly one of Emergency
// or Reply is meaningful; History is the full updated thread context.
type Outcome struct {
	Emergency *EmergencySignal
	Reply     string
	History   []conversation.ChatMessage
}

// Runtime runs the triage agent over a conversation turn.
type Runtime interface {
	Run(ctx context.Context, history []conversation.ChatMessage, prompt string) (Outcome, error)
}

// emergencyPayload is the exact JSON shape the system prompt instructs the
// model to emit for red-flag messages.
type emergencyPayload struct {
	Emergency bool   `json:"emergency"`
	Message   string `json:"message"`
}

// DetectEmergency inspects the model's final text for a braces-delimited
// emergency object. Malformed JSON or emergency:false is treated as an
// ordinary reply.
func DetectEmergency(text string) (*EmergencySignal, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}

	var payload emergencyPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, false
	}
	if !payload.Emergency {
		return nil, false
	}

	message := payload.Message
	if message == "" {
		message = "Emergency flagged by agent"
	}
	return &EmergencySignal{Message: message}, true
}
