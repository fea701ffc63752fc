package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikrogrup/itbot/backend/internal/config"
	"github.com/mikrogrup/itbot/backend/internal/model/chat"
)

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	received []*schema.Message
	deadline bool
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.received = input
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestCompleteSendsContextInOrder(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("  VPN ayarlarınızı kontrol edin.  ", nil)}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{})
	require.NoError(t, err)

	got, err := svc.Complete(context.Background(), []chat.ContextEntry{
		{Role: chat.RoleAssistant, Content: "Merhaba!"},
		{Role: chat.RoleUser, Content: "VPN çalışmıyor"},
	})
	require.NoError(t, err)

	assert.Equal(t, "VPN ayarlarınızı kontrol edin.", got)
	require.Len(t, fake.received, 2)
	assert.Equal(t, schema.Assistant, fake.received[0].Role)
	assert.Equal(t, schema.User, fake.received[1].Role)
	assert.Equal(t, "VPN çalışmıyor", fake.received[1].Content)
	assert.False(t, fake.deadline)
}

func TestCompleteAppliesTimeout(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("ok", nil)}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{Timeout: time.Minute})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), []chat.ContextEntry{{Role: chat.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.True(t, fake.deadline)
}

func TestCompleteEmptyReply(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("   ", nil)}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{})
	require.NoError(t, err)

	got, err := svc.Complete(context.Background(), []chat.ContextEntry{{Role: chat.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompletePropagatesErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("connection reset")}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), []chat.ContextEntry{{Role: chat.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, config.AIConfig{})
	assert.Error(t, err)
}
