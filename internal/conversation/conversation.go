// Package conversation holds the chat message model and the per-thread
// memory that gives the agent runtime rolling context for each email
// conversation.
package conversation

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of an email conversation as fed to the agent
// runtime.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
