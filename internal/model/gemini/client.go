package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/gosuda/deepsearch/internal/domain"
	"github.com/gosuda/deepsearch/internal/model"
)

// Interface compliance check.
var _ model.Backend = (*Client)(nil)

// Client implements [model.Backend] for the Google Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithMaxTokens caps output tokens per turn.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = int32(n)
		}
	}
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client:    gc,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream starts one streamed model turn.
func (c *Client) Stream(ctx context.Context, req model.Request) (model.Stream, error) {
	m := req.Model
	if m == "" {
		m = c.model
	}

	contents := ConvertMessages(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: %w: empty conversation", model.ErrUpstream)
	}
	config := c.buildConfig(req)

	seq := c.client.Models.GenerateContentStream(ctx, m, contents, config)
	return newStream(ctx, seq), nil
}

func (c *Client) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: c.maxTokens,
		Tools:           ConvertTools(req.Tools),
	}

	if system := systemInstruction(req); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	return config
}

// systemInstruction joins the request prompt with any system messages in the
// conversation, since Gemini only accepts user and model turns.
func systemInstruction(req model.Request) string {
	var parts []string
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			if text := m.Text(); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
