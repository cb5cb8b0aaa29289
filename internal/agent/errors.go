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
	"errors"
	"fmt"

	"rag-faq/internal/model/llm"
	"rag-faq/internal/tool/search"
)

// 轮次失败类别（对外稳定的 kind 标签，HTTP 层据此映射状态码）
const (
	KindTurnIncomplete        = "TurnIncomplete"        // 步数耗尽或模型流提前结束，轮次未得出回答
	KindUndeclaredToolInvoked = "UndeclaredToolInvoked" // 模型请求了未声明的工具，配置错误
	KindModelUnavailable      = "ModelUnavailable"      // 模型服务失败
	KindToolFailed            = "ToolFailed"            // 工具重试后仍失败且无检索类别可透传
	KindCanceled              = "Canceled"              // 调用方取消
)

// TurnError 轮次级类型化失败
type TurnError struct {
	Kind    string
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[turn] %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[turn] %s: %s", e.Kind, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *TurnError) Unwrap() error {
	return e.Err
}

// NewTurnError 创建轮次错误
func NewTurnError(kind, message string, err error) *TurnError {
	return &TurnError{Kind: kind, Message: message, Err: err}
}

// AsTurnError 取出链上的 TurnError
func AsTurnError(err error) (*TurnError, bool) {
	var te *TurnError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ErrorKind 归类任意错误为稳定 kind：检索错误透传自身类别，
// 模型/取消错误映射到轮次类别，其余归为 ToolFailed
func ErrorKind(err error) string {
	if te, ok := AsTurnError(err); ok {
		return te.Kind
	}
	if re, ok := search.AsRetrievalError(err); ok {
		return re.Kind
	}
	switch {
	case errors.Is(err, llm.ErrNoTerminalEvent):
		return KindTurnIncomplete
	case errors.Is(err, llm.ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindToolFailed
	}
}
