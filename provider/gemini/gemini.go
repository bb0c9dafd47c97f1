// Package gemini provides a provider backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/GoCodeAlone/ranked/provider"
)

const defaultModel = "gemini-1.5-flash"

// placeholderKey is sent when no credential is configured so that the remote
// service rejects the call instead of the client refusing to start.
const placeholderKey = "unset"

// Scope is the OAuth scope requested for token-based authentication.
const Scope = "https://www.googleapis.com/auth/generative-language"

// Config holds configuration for the Gemini provider.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string // optional API endpoint override
	// TokenSource authenticates with OAuth tokens instead of APIKey.
	TokenSource oauth2.TokenSource
}

// Provider is a Gemini provider. The underlying client is created on first use.
type Provider struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
}

// New creates a Gemini provider, filling unset fields with defaults.
func New(cfg Config) *Provider {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.APIKey == "" && cfg.TokenSource == nil {
		cfg.APIKey = placeholderKey
	}
	return &Provider{cfg: cfg}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

func (p *Provider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	var opts []option.ClientOption
	if p.cfg.TokenSource != nil {
		opts = append(opts, option.WithTokenSource(p.cfg.TokenSource))
	} else {
		opts = append(opts, option.WithAPIKey(p.cfg.APIKey))
	}
	if p.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.Endpoint))
	}
	c, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	p.client = c
	return c, nil
}

// Close releases the client, if one was created.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// Chat sends the conversation and returns the reply text.
func (p *Provider) Chat(ctx context.Context, messages []provider.Message) (*provider.Response, error) {
	system, turns := provider.SplitSystem(messages)
	if len(turns) == 0 {
		return nil, errors.New("gemini: no user message")
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(p.cfg.Model)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	cs := model.StartChat()
	cs.History = toHistory(turns[:len(turns)-1])

	last := turns[len(turns)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	return convertResponse(resp), nil
}

// toHistory maps prior turns onto Gemini's "user" and "model" roles.
func toHistory(turns []provider.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == provider.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

func convertResponse(resp *genai.GenerateContentResponse) *provider.Response {
	out := &provider.Response{}
	if resp == nil {
		return out
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = provider.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out.Content = b.String()
	return out
}
