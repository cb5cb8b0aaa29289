package llm

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
)

// 模型层哨兵错误
var (
	// ErrModelUnavailable 外部模型服务失败，原样向上传递
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrNoTerminalEvent 事件流在终止事件之前耗尽；永不解释为空回答
	ErrNoTerminalEvent = errors.New("model stream ended without terminal event")
)

// StepKind 单步决策的类别
type StepKind int

const (
	// StepFinalAnswer 模型给出最终回答，本轮结束
	StepFinalAnswer StepKind = iota
	// StepToolInvocation 模型请求调用一个工具
	StepToolInvocation
)

// StepResult 单步决策结果：二选一的 tagged union，不做运行时类型探测
type StepResult struct {
	Kind StepKind

	// Answer 当 Kind==StepFinalAnswer 时的回答文本
	Answer string

	// ToolCall 当 Kind==StepToolInvocation 时要执行的调用（恰好一个）
	ToolCall *schema.ToolCall

	// Assistant 写回历史的 assistant 消息（含 ToolCalls 或回答文本）
	Assistant *schema.Message
}

// Stepper 模型步进能力：给定累计历史，产出下一步决策。
// 实现内部消费模型的事件流并只交付终止事件（见 ExtractResponse）
type Stepper interface {
	Step(ctx context.Context, messages []*schema.Message) (*StepResult, error)
	// Model 返回模型标识（健康检查展示用）
	Model() string
}
