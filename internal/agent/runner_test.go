package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-faq/internal/model/llm"
	"rag-faq/internal/runtime/session"
	"rag-faq/internal/tool"
	"rag-faq/internal/tool/registry"
	"rag-faq/internal/tool/search"
)

// scriptedStepper 按脚本逐步返回决策；超出脚本后重复最后一条
type scriptedStepper struct {
	mu      sync.Mutex
	script  []scriptedStep
	calls   int
	prompts [][]*schema.Message
}

type scriptedStep struct {
	res *llm.StepResult
	err error
}

func (s *scriptedStepper) Step(_ context.Context, messages []*schema.Message) (*llm.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	s.prompts = append(s.prompts, messages)
	st := s.script[idx]
	return st.res, st.err
}

func (s *scriptedStepper) Model() string { return "stub-model" }

func finalStep(answer string) scriptedStep {
	return scriptedStep{res: &llm.StepResult{
		Kind:      llm.StepFinalAnswer,
		Answer:    answer,
		Assistant: schema.AssistantMessage(answer, nil),
	}}
}

func toolStep(id, name, args string) scriptedStep {
	call := schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
	return scriptedStep{res: &llm.StepResult{
		Kind:      llm.StepToolInvocation,
		ToolCall:  &call,
		Assistant: schema.AssistantMessage("", []schema.ToolCall{call}),
	}}
}

// fakeTool 按脚本返回结果或错误
type fakeTool struct {
	name      string
	results   []fakeToolResult
	calls     int
	onExecute func()
}

type fakeToolResult struct {
	content string
	err     error
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }
func (f *fakeTool) Schema() tool.Schema {
	return tool.Schema{Type: "object"}
}

func (f *fakeTool) Execute(context.Context, map[string]any) (tool.ToolResult, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	if f.onExecute != nil {
		f.onExecute()
	}
	r := f.results[idx]
	if r.err != nil {
		return tool.ToolResult{}, r.err
	}
	return tool.ToolResult{Content: r.content}, nil
}

type stubSearcher struct {
	passages []search.Passage
	err      error
}

func (s *stubSearcher) Search(context.Context, string) ([]search.Passage, error) {
	return s.passages, s.err
}

func newSession() *session.Session {
	return session.New(session.Key{App: "rag_app", UserID: "api_user"})
}

func newAgent(tools ...tool.Tool) *Agent {
	reg := registry.New()
	for _, t := range tools {
		reg.Register(t)
	}
	return New("rag_agent", "回答问题前先检索依据。", reg)
}

func TestRunTurn_DirectAnswer(t *testing.T) {
	stepper := &scriptedStepper{script: []scriptedStep{finalStep("你好！")}}
	runner := NewRunner(stepper)
	sess := newSession()

	out, err := runner.RunTurn(context.Background(), sess, newAgent(), "你好")
	require.NoError(t, err)
	assert.Equal(t, "你好！", out.Answer)
	assert.False(t, out.Grounded)
	assert.Empty(t, out.Sources)
	assert.Equal(t, 1, out.Steps)

	msgs := sess.CopyMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
}

func TestRunTurn_RetrievesThenAnswers(t *testing.T) {
	searcher := &stubSearcher{passages: []search.Passage{
		{Text: "2025 年春夏流行oversized剪裁。", Score: 0.92},
		{Text: "可持续面料成为主流选择。", Score: 0.87},
	}}
	searchTool := search.NewTool(searcher, "fashion-docs")

	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", search.ToolName, `{"query":"2025 服装流行趋势"}`),
		finalStep("2025 年的趋势是 oversized 剪裁与可持续面料。"),
	}}
	runner := NewRunner(stepper)
	sess := newSession()

	out, err := runner.RunTurn(context.Background(), sess, newAgent(searchTool), "今年服装流行什么？")
	require.NoError(t, err)
	assert.True(t, out.Grounded)
	assert.Equal(t, []string{
		"2025 年春夏流行oversized剪裁。",
		"可持续面料成为主流选择。",
	}, out.Sources)
	assert.Equal(t, 2, out.Steps)

	// 历史顺序：user -> assistant(调用) -> tool(结果) -> assistant(回答)
	msgs := sess.CopyMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, session.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, session.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.Equal(t, session.RoleAssistant, msgs[3].Role)

	// 第二步的模型输入必须已包含工具结果
	require.Len(t, stepper.prompts, 2)
	second := stepper.prompts[1]
	var sawToolResult bool
	for _, m := range second {
		if m.Role == schema.Tool && m.ToolCallID == "call-1" {
			sawToolResult = true
			var passages []search.Passage
			require.NoError(t, json.Unmarshal([]byte(m.Content), &passages))
			assert.Len(t, passages, 2)
		}
	}
	assert.True(t, sawToolResult)

	records := sess.CopyToolCalls()
	require.Len(t, records, 1)
	assert.Equal(t, search.ToolName, records[0].Tool)
}

func TestRunTurn_UndeclaredToolFatal(t *testing.T) {
	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", "db.delete", `{}`),
	}}
	runner := NewRunner(stepper)
	sess := newSession()

	_, err := runner.RunTurn(context.Background(), sess, newAgent(), "删库")
	require.Error(t, err)
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindUndeclaredToolInvoked, te.Kind)

	// 未声明的调用不执行也不写回
	assert.Equal(t, 1, sess.Len())
	assert.Empty(t, sess.CopyToolCalls())
}

func TestRunTurn_ToolFailureRecoversOnce(t *testing.T) {
	ft := &fakeTool{
		name: search.ToolName,
		results: []fakeToolResult{
			{err: search.NewRetrievalError(search.KindRetrievalUnavailable, "后端超时", nil)},
			{content: `[{"text":"重试成功的依据。","score":0.8}]`},
		},
	}
	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", search.ToolName, `{"query":"q"}`),
		toolStep("call-2", search.ToolName, `{"query":"q"}`),
		finalStep("基于重试结果的回答。"),
	}}
	runner := NewRunner(stepper)
	sess := newSession()

	out, err := runner.RunTurn(context.Background(), sess, newAgent(ft), "问题")
	require.NoError(t, err)
	assert.Equal(t, 2, ft.calls)
	assert.True(t, out.Grounded)
	assert.Equal(t, []string{"重试成功的依据。"}, out.Sources)

	// 失败以 tool 消息形式喂回了模型
	require.GreaterOrEqual(t, len(stepper.prompts), 2)
	var sawFailure bool
	for _, m := range stepper.prompts[1] {
		if m.Role == schema.Tool && m.ToolCallID == "call-1" {
			sawFailure = true
			assert.Contains(t, m.Content, "tool execution failed")
		}
	}
	assert.True(t, sawFailure)
}

func TestRunTurn_ToolFailureTwiceSurfacesKind(t *testing.T) {
	ft := &fakeTool{
		name: search.ToolName,
		results: []fakeToolResult{
			{err: search.NewRetrievalError(search.KindDataStoreNotFound, "数据存储不存在", nil)},
		},
	}
	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", search.ToolName, `{"query":"q"}`),
		toolStep("call-2", search.ToolName, `{"query":"q"}`),
	}}
	runner := NewRunner(stepper)
	sess := newSession()

	_, err := runner.RunTurn(context.Background(), sess, newAgent(ft), "问题")
	require.Error(t, err)
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, search.KindDataStoreNotFound, te.Kind)
	assert.Equal(t, 2, ft.calls)

	// 终止失败后历史仍成对：每个 assistant 调用都有同 ID 的 tool 消息跟随
	msgs := sess.CopyMessages()
	for i, m := range msgs {
		if m.Role == session.RoleAssistant && len(m.ToolCalls) > 0 {
			require.Less(t, i+1, len(msgs), "调用消息缺少配对的 tool 消息")
			assert.Equal(t, session.RoleTool, msgs[i+1].Role)
			assert.Equal(t, m.ToolCalls[0].ID, msgs[i+1].ToolCallID)
		}
	}
	assert.Equal(t, session.RoleTool, msgs[len(msgs)-1].Role)
}

func TestRunTurn_StepCapExhausted(t *testing.T) {
	ft := &fakeTool{
		name:    search.ToolName,
		results: []fakeToolResult{{content: `[{"text":"片段","score":0.5}]`}},
	}
	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", search.ToolName, `{"query":"q"}`),
	}}
	runner := NewRunner(stepper, WithMaxSteps(3))
	sess := newSession()

	_, err := runner.RunTurn(context.Background(), sess, newAgent(ft), "问题")
	require.Error(t, err)
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindTurnIncomplete, te.Kind)
	// 恰好步进步数上限次，不多不少
	assert.Equal(t, 3, stepper.calls)
}

func TestRunTurn_StreamExhaustedIsIncomplete(t *testing.T) {
	stepper := &scriptedStepper{script: []scriptedStep{
		{err: llm.ErrNoTerminalEvent},
	}}
	runner := NewRunner(stepper)

	_, err := runner.RunTurn(context.Background(), newSession(), newAgent(), "问题")
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindTurnIncomplete, te.Kind)
}

func TestRunTurn_ModelUnavailable(t *testing.T) {
	stepper := &scriptedStepper{script: []scriptedStep{
		{err: llm.ErrModelUnavailable},
	}}
	runner := NewRunner(stepper)

	_, err := runner.RunTurn(context.Background(), newSession(), newAgent(), "问题")
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindModelUnavailable, te.Kind)
	assert.True(t, errors.Is(err, llm.ErrModelUnavailable))
}

func TestRunTurn_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stepper := &scriptedStepper{script: []scriptedStep{finalStep("不该到这里")}}
	runner := NewRunner(stepper)
	sess := newSession()

	_, err := runner.RunTurn(ctx, sess, newAgent(), "问题")
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindCanceled, te.Kind)
	// 取消发生在任何写入之前，会话保持原样
	assert.Equal(t, 0, sess.Len())
	assert.Equal(t, 0, stepper.calls)
}

func TestRunTurn_CanceledDuringTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ft := &fakeTool{
		name:      search.ToolName,
		results:   []fakeToolResult{{content: `[{"text":"片段","score":0.5}]`}},
		onExecute: cancel,
	}
	stepper := &scriptedStepper{script: []scriptedStep{
		toolStep("call-1", search.ToolName, `{"query":"q"}`),
		finalStep("不该到这里"),
	}}
	runner := NewRunner(stepper)
	sess := newSession()

	_, err := runner.RunTurn(ctx, sess, newAgent(ft), "问题")
	te, ok := AsTurnError(err)
	require.True(t, ok)
	assert.Equal(t, KindCanceled, te.Kind)

	// 取消后不再写回工具结果，也不再步进；未配对的调用消息被回收，
	// 历史只剩用户消息，复用该会话不会携带悬空的 tool_calls
	msgs := sess.CopyMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, 1, stepper.calls)
}

func TestRunTurn_SerializesPerSession(t *testing.T) {
	stepper := &scriptedStepper{script: []scriptedStep{finalStep("回答")}}
	runner := NewRunner(stepper)
	sess := newSession()
	ag := newAgent()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := runner.RunTurn(context.Background(), sess, ag, "问题")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 轮次串行：历史呈现 user/assistant 交替成对，无交叉
	msgs := sess.CopyMessages()
	require.Len(t, msgs, 16)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, session.RoleUser, m.Role)
		} else {
			assert.Equal(t, session.RoleAssistant, m.Role)
		}
	}
}
