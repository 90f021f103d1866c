// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// messageCreator is the subset of the SDK message service the backend uses.
type messageCreator interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicBackend generates with the Anthropic Messages API.
type AnthropicBackend struct {
	desc     types.ModelDescriptor
	messages messageCreator
}

// NewAnthropicBackend returns an unloaded backend for desc.
func NewAnthropicBackend(desc types.ModelDescriptor) *AnthropicBackend {
	return &AnthropicBackend{desc: desc}
}

// Load creates the SDK client. It fails without an API key.
func (b *AnthropicBackend) Load(_ context.Context) error {
	if b.messages != nil {
		return nil
	}
	if b.desc.APIKey == "" {
		return eris.Errorf("model: %s: anthropic API key not configured", b.desc.Name)
	}

	opts := []option.RequestOption{option.WithAPIKey(b.desc.APIKey)}
	if b.desc.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(b.desc.Endpoint))
	}
	client := sdk.NewClient(opts...)
	b.messages = &client.Messages
	return nil
}

// Generate sends the prompt as a single user message and joins the text
// blocks of the reply.
func (b *AnthropicBackend) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	if b.messages == nil {
		return "", eris.Errorf("model: %s: not loaded", b.desc.Name)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(b.desc.Model),
		MaxTokens: int64(p.MaxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
		Temperature: sdk.Float(p.Temperature),
	}

	msg, err := b.messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	zap.L().Debug("anthropic message",
		zap.String("model", b.desc.Model),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return sb.String(), nil
}

// Unload drops the client.
func (b *AnthropicBackend) Unload() error {
	b.messages = nil
	return nil
}
