package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikrogrup/itbot/backend/internal/config"
)

// OpenAIChatModel adapts a langchaingo OpenAI client to eino's chat model interface.
type OpenAIChatModel struct {
	llm         llms.Model
	model       string
	temperature float32
	maxTokens   int
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel builds the OpenAI-backed chat model from cfg.
func NewOpenAIChatModel(_ context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return newOpenAIChatModel(llm, cfg), nil
}

func newOpenAIChatModel(llm llms.Model, cfg config.AIConfig) *OpenAIChatModel {
	return &OpenAIChatModel{
		llm:         llm,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate performs a single non-streaming completion.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		Temperature: &m.temperature,
		MaxTokens:   &m.maxTokens,
	}, opts...)

	callOpts := make([]llms.CallOption, 0, 3)
	if options.Model != nil && *options.Model != "" {
		callOpts = append(callOpts, llms.WithModel(*options.Model))
	}
	if options.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*options.Temperature)))
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(*options.MaxTokens))
	}

	resp, err := m.llm.GenerateContent(ctx, toMessageContent(input), callOpts...)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(resp.Choices[0].Content, nil), nil
}

// Stream wraps Generate; partial output is never forwarded.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toMessageContent(input []*schema.Message) []llms.MessageContent {
	contents := make([]llms.MessageContent, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		var role llms.ChatMessageType
		switch msg.Role {
		case schema.System:
			role = llms.ChatMessageTypeSystem
		case schema.Assistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		contents = append(contents, llms.TextParts(role, msg.Content))
	}
	return contents
}
