// Package gateway asks a remote model how a task list should be ordered.
//
// The gateway only transports text: it formats the prompt, makes a single call, and
// hands back the reply untouched. Interpreting the reply is the reorder engine's job.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/GoCodeAlone/ranked/config"
	"github.com/GoCodeAlone/ranked/provider"
	"github.com/GoCodeAlone/ranked/provider/anthropic"
	"github.com/GoCodeAlone/ranked/provider/gemini"
	"github.com/GoCodeAlone/ranked/provider/mock"
	"github.com/GoCodeAlone/ranked/provider/openai"
	"github.com/GoCodeAlone/ranked/task"
)

// ErrUpstreamUnreachable wraps every failure to obtain a reply from the model:
// transport errors, timeouts, rejected credentials, and bad status codes.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

const systemPrompt = "You order to-do lists by implied priority, urgency, and logical grouping. " +
	"You answer with a JSON array of strings and nothing else."

// Gateway sends reorder prompts to a provider.
type Gateway struct {
	provider provider.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Gateway. A zero timeout leaves the call bounded only by ctx.
func New(p provider.Provider, timeout time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{provider: p, timeout: timeout, logger: logger}
}

// ProviderName reports which backend the gateway talks to.
func (g *Gateway) ProviderName() string { return g.provider.Name() }

// RequestReorder asks for an ordering of tasks that includes newTaskText and returns
// the raw reply.
func (g *Gateway) RequestReorder(ctx context.Context, tasks task.List, newTaskText string) (string, error) {
	return g.ask(ctx, BuildPrompt(tasks, newTaskText))
}

// RequestRerank asks for a fresh ordering of tasks alone and returns the raw reply.
func (g *Gateway) RequestRerank(ctx context.Context, tasks task.List) (string, error) {
	return g.ask(ctx, BuildRerankPrompt(tasks))
}

func (g *Gateway) ask(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	g.logger.Debug("sending prompt", slog.String("provider", g.provider.Name()), slog.String("prompt", prompt))

	start := time.Now()
	resp, err := g.provider.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUpstreamUnreachable, g.provider.Name(), err)
	}
	g.logger.Debug("model reply",
		slog.String("provider", g.provider.Name()),
		slog.String("reply", resp.Content),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Content, nil
}

// BuildPrompt renders the add-task prompt. Each task is listed as "text [ID:id]";
// the reply is expected to echo task texts only.
func BuildPrompt(tasks task.List, newTaskText string) string {
	var b strings.Builder
	b.WriteString(`Given the following list of tasks (format: "Text [ID:ID_VALUE]"), and a new task, `)
	b.WriteString("reorder the entire list based on implied priority, urgency, or logical grouping. ")
	b.WriteString("Your output MUST be a JSON array of strings, where each string is the exact text of a task ")
	b.WriteString("from the original list OR the exact text of the new task. ")
	b.WriteString("Do not include IDs, numbers, or any other explanations. ")
	b.WriteString("Ensure all original task texts and the new task text are present in the reordered list.\n\n")
	writeTasks(&b, tasks)
	fmt.Fprintf(&b, "\nNew Task: %q\n\n", newTaskText)
	b.WriteString("Reordered Order (JSON array of strings, each string is an existing task text or the new task text):")
	return b.String()
}

// BuildRerankPrompt renders the prompt for reordering an existing list.
func BuildRerankPrompt(tasks task.List) string {
	var b strings.Builder
	b.WriteString(`Given the following list of tasks (format: "Text [ID:ID_VALUE]"), `)
	b.WriteString("reorder the entire list based on implied priority, urgency, or logical grouping. ")
	b.WriteString("Your output MUST be a JSON array of strings, where each string is the exact text of a task ")
	b.WriteString("from the list. Do not include IDs, numbers, or any other explanations. ")
	b.WriteString("Ensure every task text is present exactly once.\n\n")
	writeTasks(&b, tasks)
	b.WriteString("\nReordered Order (JSON array of strings):")
	return b.String()
}

func writeTasks(b *strings.Builder, tasks task.List) {
	b.WriteString("Tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(b, "%s [ID:%s]\n", t.Text, t.ID)
	}
}

// NewProvider builds the provider named by cfg. A missing credential is logged and
// the provider is still returned; the remote service will reject its calls.
func NewProvider(cfg config.GatewayConfig, logger *slog.Logger) (provider.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UsesADC() {
		if cfg.Provider != "gemini" && cfg.Provider != "" {
			return nil, fmt.Errorf("adc credentials are not supported by provider %s", cfg.Provider)
		}
		ts, err := google.DefaultTokenSource(context.Background(), gemini.Scope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		return gemini.New(gemini.Config{TokenSource: ts, Model: cfg.Model, Endpoint: cfg.BaseURL}), nil
	}

	key := cfg.APIKey()
	if key == "" && cfg.Provider != "mock" {
		logger.Error("gateway credential is not set, reorder requests will fall back",
			slog.String("provider", cfg.Provider), slog.String("env", cfg.APIKeyEnv))
	}
	switch cfg.Provider {
	case "gemini", "":
		return gemini.New(gemini.Config{APIKey: key, Model: cfg.Model, Endpoint: cfg.BaseURL}), nil
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: key, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "openai":
		return openai.New(openai.Config{APIKey: key, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "mock":
		return mock.New(cfg.MockReplies...), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}
}
