// Package provider defines the text-generation backend interface used by the gateway.
package provider

import "context"

// Role identifies the sender of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is a completed provider response.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider is a remote text-generation service.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "anthropic", "mock").
	Name() string

	// Chat sends the conversation and returns the complete reply.
	Chat(ctx context.Context, messages []Message) (*Response, error)
}

// SplitSystem separates the system prompt from the conversational turns.
// Multiple system messages are joined with a blank line.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleSystem {
			turns = append(turns, m)
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system, turns
}
