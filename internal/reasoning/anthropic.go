// Package reasoning connects the killer engine and the dialogue resolver to
// a hosted language model. Every call is bounded by the caller's context; the
// game falls back to its local tables on any error.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cory-johannsen/destiny/internal/config"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("reasoning: model returned no text")

// Completer turns a system prompt and a user prompt into reply text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Anthropic is a Completer over the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a client for cfg. Extra options are applied after the
// API key, which lets tests point the client at a local server.
//
// Precondition: cfg must be validated with Enabled set.
func NewAnthropic(cfg config.ReasoningConfig, opts ...option.RequestOption) *Anthropic {
	all := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(all...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends one user turn and joins the text blocks of the reply.
func (a *Anthropic) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("reasoning: messages request: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyReply
	}
	return sb.String(), nil
}
