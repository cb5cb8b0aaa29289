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

package llm

import (
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"rag-faq/pkg/errors"
	"rag-faq/pkg/metrics"
)

// ExtractResponse 消费模型事件流直到终止事件，归并为单个决策。
// 流在终止事件之前耗尽返回 ErrNoTerminalEvent，不把空流当作空回答。
// 调用方只看到最终决策，不接触中间帧。
func ExtractResponse(stream *schema.StreamReader[*schema.Message]) (*StepResult, error) {
	defer stream.Close()

	var (
		frames       []*schema.Message
		finishReason string
	)
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrModelUnavailable, err.Error())
		}
		frames = append(frames, frame)
		if frame.ResponseMeta != nil && frame.ResponseMeta.FinishReason != "" {
			finishReason = frame.ResponseMeta.FinishReason
		}
	}

	if len(frames) == 0 || finishReason == "" {
		return nil, ErrNoTerminalEvent
	}

	msg, err := schema.ConcatMessages(frames)
	if err != nil {
		return nil, errors.Wrap(ErrModelUnavailable, "concat stream frames: "+err.Error())
	}

	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(msg.ResponseMeta.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(msg.ResponseMeta.Usage.CompletionTokens))
	}

	return resultFromMessage(msg, finishReason)
}

// resultFromMessage 把归并后的 assistant 消息转成单步决策
func resultFromMessage(msg *schema.Message, finishReason string) (*StepResult, error) {
	if len(msg.ToolCalls) > 0 {
		// 每步只执行一个调用；多余的调用丢弃并从写回历史的消息中剔除，
		// 保证历史里每个 ToolCall 都有配对的 ToolResult
		call := msg.ToolCalls[0]
		if call.ID == "" {
			call.ID = uuid.New().String()
		}
		if call.Type == "" {
			call.Type = "function"
		}
		msg.ToolCalls = []schema.ToolCall{call}
		return &StepResult{
			Kind:      StepToolInvocation,
			ToolCall:  &call,
			Assistant: msg,
		}, nil
	}

	if strings.EqualFold(finishReason, "tool_calls") {
		// 终止事件声称有工具调用却没带任何调用，流不完整
		return nil, ErrNoTerminalEvent
	}

	return &StepResult{
		Kind:      StepFinalAnswer,
		Answer:    msg.Content,
		Assistant: msg,
	}, nil
}
