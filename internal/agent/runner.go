// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"

	"rag-faq/internal/model/llm"
	"rag-faq/internal/runtime/session"
	"rag-faq/internal/tool/search"
	"rag-faq/pkg/log"
	"rag-faq/pkg/metrics"
)

// TurnOutcome 单轮对话结果
type TurnOutcome struct {
	Answer   string        `json:"answer"`
	Sources  []string      `json:"sources,omitempty"` // 回答引用的检索片段
	Grounded bool          `json:"grounded"`          // 回答前是否命中过检索
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Runner 轮次编排器：驱动 模型步进 -> 工具执行 -> 结果写回 的有界循环。
// 每步最多执行一个工具调用，且其结果写回历史后才进入下一步
type Runner struct {
	stepper  llm.Stepper
	maxSteps int
	logger   *log.Logger
}

// RunnerOption 可选配置
type RunnerOption func(*Runner)

// WithMaxSteps 设置单轮最大模型步数
func WithMaxSteps(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner 创建 Runner，默认最大 8 步
func NewRunner(stepper llm.Stepper, opts ...RunnerOption) *Runner {
	r := &Runner{stepper: stepper, maxSteps: 8}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = &log.Logger{Logger: slog.Default()}
	}
	return r
}

// RunTurn 执行一轮对话：追加用户消息，循环步进直到模型给出最终回答。
// 同一 Session 的轮次串行执行；ctx 取消后不再写入任何会话状态。
// 工具失败允许一次恢复（错误喂回模型重试），连续第二次失败按原类别上抛；
// 未声明工具的调用立即终止本轮，不做恢复
func (r *Runner) RunTurn(ctx context.Context, sess *session.Session, ag *Agent, question string) (*TurnOutcome, error) {
	sess.LockTurn()
	defer sess.UnlockTurn()

	start := time.Now()
	logger := r.logger.With("agent", ag.Name, "session_id", sess.ID())

	finish := func(outcome string) {
		metrics.TurnDuration.WithLabelValues(ag.Name).Observe(time.Since(start).Seconds())
		metrics.TurnTotal.WithLabelValues(outcome).Inc()
	}
	fail := func(kind, msg string, err error) (*TurnOutcome, error) {
		finish(kind)
		logger.Warn("turn failed", "kind", kind, "error", err)
		return nil, NewTurnError(kind, msg, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(KindCanceled, "轮次开始前已取消", err)
	}
	sess.Append(session.UserMessage(question))

	var (
		sources      []string
		grounded     bool
		toolFailures int
	)

	for step := 0; step < r.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return fail(KindCanceled, "轮次执行中被取消", err)
		}

		res, err := r.stepper.Step(ctx, r.promptMessages(sess, ag))
		if err != nil {
			kind := ErrorKind(err)
			return fail(kind, "模型步进失败", err)
		}

		if res.Kind == llm.StepFinalAnswer {
			sess.Append(session.FromSchema(res.Assistant))
			finish("success")
			logger.Info("turn finished", "steps", step+1, "grounded", grounded)
			return &TurnOutcome{
				Answer:   res.Answer,
				Sources:  sources,
				Grounded: grounded,
				Steps:    step + 1,
				Duration: time.Since(start),
			}, nil
		}

		call := res.ToolCall
		name := call.Function.Name
		if !ag.Declared(name) {
			return fail(KindUndeclaredToolInvoked, "模型请求了未声明的工具: "+name, nil)
		}
		sess.Append(session.FromSchema(res.Assistant))

		output, execErr := r.executeCall(ctx, ag, call)
		if err := ctx.Err(); err != nil {
			// 取消后不再写回结果；回收未配对的调用消息，复用会话时历史保持成对
			sess.DropLast()
			return fail(KindCanceled, "工具执行后被取消", err)
		}

		if execErr != nil {
			sess.AddObservation(name, callInput(call), "", execErr.Error())
			// 失败也写回 tool 消息，调用保持配对；首次失败喂回模型重试一次
			sess.Append(&session.Message{
				Role:       session.RoleTool,
				Content:    "tool execution failed: " + execErr.Error(),
				ToolCallID: call.ID,
			})
			toolFailures++
			if toolFailures > 1 {
				kind := ErrorKind(execErr)
				return fail(kind, "工具重试后仍失败: "+name, execErr)
			}
			logger.Warn("tool call failed, feeding error back", "tool", name, "error", execErr)
			continue
		}

		toolFailures = 0
		sess.AddObservation(name, callInput(call), output, "")
		sess.Append(&session.Message{
			Role:       session.RoleTool,
			Content:    output,
			ToolCallID: call.ID,
		})
		if name == search.ToolName {
			grounded = true
			sources = appendSources(sources, output)
		}
	}

	finish(KindTurnIncomplete)
	logger.Warn("turn hit step cap", "max_steps", r.maxSteps)
	return nil, NewTurnError(KindTurnIncomplete, "达到最大步数，轮次未得出回答", nil)
}

// promptMessages 组装本步的模型输入：系统指令 + 完整会话历史
func (r *Runner) promptMessages(sess *session.Session, ag *Agent) []*schema.Message {
	history := session.MessagesToSchema(sess.CopyMessages())
	if ag.Instruction == "" {
		return history
	}
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(ag.Instruction))
	return append(msgs, history...)
}

// executeCall 执行单个工具调用并记录指标
func (r *Runner) executeCall(ctx context.Context, ag *Agent, call *schema.ToolCall) (string, error) {
	t, _ := ag.Tool(call.Function.Name)
	input := callInput(call)

	begin := time.Now()
	result, err := t.Execute(ctx, input)
	metrics.ToolCallDuration.WithLabelValues(call.Function.Name).Observe(time.Since(begin).Seconds())
	if err != nil {
		metrics.ToolCallTotal.WithLabelValues(call.Function.Name, "error").Inc()
		return "", err
	}
	metrics.ToolCallTotal.WithLabelValues(call.Function.Name, "ok").Inc()
	return result.Content, nil
}

// callInput 解析调用参数；非法 JSON 按空参数处理，交给工具自己校验
func callInput(call *schema.ToolCall) map[string]any {
	input := make(map[string]any)
	if call.Function.Arguments != "" {
		_ = json.Unmarshal([]byte(call.Function.Arguments), &input)
	}
	return input
}

// appendSources 从检索结果中提取片段文本，保序去重
func appendSources(sources []string, output string) []string {
	var passages []search.Passage
	if err := json.Unmarshal([]byte(output), &passages); err != nil {
		return sources
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		seen[s] = true
	}
	for _, p := range passages {
		if p.Text != "" && !seen[p.Text] {
			seen[p.Text] = true
			sources = append(sources, p.Text)
		}
	}
	return sources
}
