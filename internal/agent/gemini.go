package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/careinbox/careinbox/internal/clock"
	"github.com/careinbox/careinbox/internal/conversation"
	"github.com/careinbox/careinbox/internal/scheduling"
	"github.com/careinbox/careinbox/pkg/logging"
)

// maxToolRounds bounds the function-calling loop so a misbehaving model
// cannot spin the scheduling tool forever.
const maxToolRounds = 4

const scheduleToolName = "schedule_appointment"

// scheduleToolDecl describes the scheduling tool to the model.
var scheduleToolDecl = &genai.FunctionDeclaration{
	Name:        scheduleToolName,
	Description: "Check clinic availability, reserve appointment slots, or get fallback time suggestions. Call with confirmed=false to propose times and confirmed=true once the patient has committed to a specific time.",
	Parameters: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"patient_name": {
				Type:        genai.TypeString,
				Description: "The patient's legal name.",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Reason for the visit.",
			},
			"preferred_slots": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Concrete preferred times given by the patient, ISO-8601 where possible. Empty when the patient gave no time.",
			},
			"confirmed": {
				Type:        genai.TypeBoolean,
				Description: "True only when the patient has explicitly confirmed one of the offered times.",
			},
		},
		Required: []string{"patient_name", "reason"},
	},
}

// GeminiRuntime implements Runtime using Google's Gemini API with the
// schedule_appointment function tool wired to the scheduling engine.
type GeminiRuntime struct {
	client       *genai.Client
	modelID      string
	tool         *scheduling.Tool
	inboxAddress string
	clock        clock.Clock
	logger       *logging.Logger
}

// NewGeminiRuntime creates the agent runtime.
func NewGeminiRuntime(ctx context.Context, apiKey, modelID string, tool *scheduling.Tool, inboxAddress string, clk clock.Clock, logger *logging.Logger) (*GeminiRuntime, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	if tool == nil {
		return nil, errors.New("agent: scheduling tool is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create gemini client: %w", err)
	}

	return &GeminiRuntime{
		client:       client,
		modelID:      modelID,
		tool:         tool,
		inboxAddress: inboxAddress,
		clock:        clk,
		logger:       logger,
	}, nil
}

// Run executes one agent turn: prior history plus the new prompt, driving
// the function-calling loop until the model produces final text.
func (r *GeminiRuntime) Run(ctx context.Context, history []conversation.ChatMessage, prompt string) (Outcome, error) {
	model := r.client.GenerativeModel(r.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(SystemPrompt(r.inboxAddress, r.clock.Now().In(scheduling.ClinicZone))))
	model.Tools = []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{scheduleToolDecl}}}

	cs := model.StartChat()
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == conversation.ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == conversation.ChatRoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return Outcome{}, fmt.Errorf("agent: gemini completion failed: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		call, ok := firstFunctionCall(resp)
		if !ok {
			break
		}
		result := r.invokeTool(ctx, call)
		resp, err = cs.SendMessage(ctx, genai.FunctionResponse{
			Name:     call.Name,
			Response: result,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("agent: gemini tool round failed: %w", err)
		}
	}

	finalText := strings.TrimSpace(collectText(resp))

	updated := make([]conversation.ChatMessage, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: prompt},
		conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: finalText},
	)

	if signal, ok := DetectEmergency(finalText); ok {
		return Outcome{Emergency: signal, History: updated}, nil
	}
	return Outcome{Reply: finalText, History: updated}, nil
}

// invokeTool dispatches a model function call to the scheduling engine and
// shapes the result for the function response.
func (r *GeminiRuntime) invokeTool(ctx context.Context, call genai.FunctionCall) map[string]any {
	if call.Name != scheduleToolName {
		r.logger.Warn("agent requested unknown tool", "tool", call.Name)
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}
	}

	req := parseScheduleArgs(call.Args)
	result := r.tool.Decide(ctx, req)
	return toResponseMap(result)
}

func parseScheduleArgs(args map[string]any) scheduling.ScheduleRequest {
	req := scheduling.ScheduleRequest{}
	if v, ok := args["patient_name"].(string); ok {
		req.PatientName = v
	}
	if v, ok := args["reason"].(string); ok {
		req.Reason = v
	}
	if v, ok := args["confirmed"].(bool); ok {
		req.Confirmed = v
	}
	if raw, ok := args["preferred_slots"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				req.PreferredSlots = append(req.PreferredSlots, s)
			}
		}
	}
	return req
}

// toResponseMap round-trips the result through JSON so the function
// response carries exactly the documented wire shape.
func toResponseMap(result scheduling.ScheduleResult) map[string]any {
	data, err := json.Marshal(result)
	if err != nil {
		return map[string]any{"status": scheduling.StatusError, "note": "internal serialization error"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"status": scheduling.StatusError, "note": "internal serialization error"}
	}
	return out
}

func firstFunctionCall(resp *genai.GenerateContentResponse) (genai.FunctionCall, bool) {
	if resp == nil {
		return genai.FunctionCall{}, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				return call, true
			}
		}
	}
	return genai.FunctionCall{}, false
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
