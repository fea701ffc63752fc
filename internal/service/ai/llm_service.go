package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mikrogrup/itbot/backend/internal/config"
	"github.com/mikrogrup/itbot/backend/internal/model/chat"
)

// Service relays a bounded conversation context to the completion endpoint.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[[]*schema.Message, *schema.Message]
}

// NewService creates the chat model for cfg and compiles the completion chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx, NewOpenAIChatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel compiles the completion chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// Complete sends entries as one request and returns the generated text. An empty string with
// a nil error means the endpoint produced no answer.
func (s *Service) Complete(ctx context.Context, entries []chat.ContextEntry) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	response, err := s.chain.Invoke(ctx, buildMessages(entries))
	if err != nil {
		return "", fmt.Errorf("failed to run completion chain: %w", err)
	}
	if response == nil {
		return "", nil
	}

	log.Printf("[ai] completion finished, context=%d, length=%d", len(entries), len(response.Content))
	return strings.TrimSpace(response.Content), nil
}

func buildMessages(entries []chat.ContextEntry) []*schema.Message {
	messages := make([]*schema.Message, 0, len(entries))
	for _, entry := range entries {
		switch entry.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	return messages
}
