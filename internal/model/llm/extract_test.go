package llm

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantFrame(content string, finish string) *schema.Message {
	m := &schema.Message{Role: schema.Assistant, Content: content}
	if finish != "" {
		m.ResponseMeta = &schema.ResponseMeta{FinishReason: finish}
	}
	return m
}

func TestExtractResponse_FinalAnswer(t *testing.T) {
	stream := schema.StreamReaderFromArray([]*schema.Message{
		assistantFrame("巴黎是", ""),
		assistantFrame("法国的首都。", "stop"),
	})

	res, err := ExtractResponse(stream)
	require.NoError(t, err)
	assert.Equal(t, StepFinalAnswer, res.Kind)
	assert.Equal(t, "巴黎是法国的首都。", res.Answer)
	require.NotNil(t, res.Assistant)
	assert.Equal(t, schema.Assistant, res.Assistant.Role)
}

func TestExtractResponse_ToolInvocation(t *testing.T) {
	call := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: schema.FunctionCall{Name: "knowledge.search", Arguments: `{"query":"trends"}`},
		}},
		ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"},
	}
	stream := schema.StreamReaderFromArray([]*schema.Message{call})

	res, err := ExtractResponse(stream)
	require.NoError(t, err)
	assert.Equal(t, StepToolInvocation, res.Kind)
	require.NotNil(t, res.ToolCall)
	assert.Equal(t, "call-1", res.ToolCall.ID)
	assert.Equal(t, "knowledge.search", res.ToolCall.Function.Name)
}

func TestExtractResponse_SynthesizesMissingCallID(t *testing.T) {
	call := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: "knowledge.search", Arguments: `{}`},
		}},
		ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"},
	}
	stream := schema.StreamReaderFromArray([]*schema.Message{call})

	res, err := ExtractResponse(stream)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ToolCall.ID)
	assert.Equal(t, "function", res.ToolCall.Type)
}

func TestExtractResponse_KeepsSingleCall(t *testing.T) {
	call := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "a", Type: "function", Function: schema.FunctionCall{Name: "knowledge.search"}},
			{ID: "b", Type: "function", Function: schema.FunctionCall{Name: "knowledge.search"}},
		},
		ResponseMeta: &schema.ResponseMeta{FinishReason: "tool_calls"},
	}
	stream := schema.StreamReaderFromArray([]*schema.Message{call})

	res, err := ExtractResponse(stream)
	require.NoError(t, err)
	assert.Equal(t, "a", res.ToolCall.ID)
	// 历史里的 assistant 消息只保留被执行的那一个调用
	assert.Len(t, res.Assistant.ToolCalls, 1)
}

func TestExtractResponse_ExhaustedWithoutTerminal(t *testing.T) {
	stream := schema.StreamReaderFromArray([]*schema.Message{
		assistantFrame("部分输出", ""),
	})

	_, err := ExtractResponse(stream)
	assert.ErrorIs(t, err, ErrNoTerminalEvent)
}

func TestExtractResponse_EmptyStream(t *testing.T) {
	stream := schema.StreamReaderFromArray([]*schema.Message{})

	_, err := ExtractResponse(stream)
	assert.ErrorIs(t, err, ErrNoTerminalEvent)
}

func TestRateLimiter_ZeroConfigAllowsAll(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestRateLimiter_ConcurrencyBound(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{MaxConcurrent: 1})
	require.NoError(t, l.Acquire(context.Background()))

	// 额度占满时，已取消的 ctx 让第二次获取立即失败而不是永久阻塞
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Acquire(ctx))

	l.Release()
}
