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
	"context"
	"fmt"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"rag-faq/pkg/config"
	"rag-faq/pkg/errors"
)

// ChatStepper 基于 eino ChatModel 的步进实现。
// 工具集在构造时绑定一次，之后每步的可用工具固定不变。
type ChatStepper struct {
	model     model.ToolCallingChatModel
	modelName string
	limiter   *RateLimiter
}

// NewChatStepper 创建步进器并绑定工具集；tools 为空时不绑定
func NewChatStepper(m model.ToolCallingChatModel, modelName string, tools []*schema.ToolInfo, limiter *RateLimiter) (*ChatStepper, error) {
	if len(tools) > 0 {
		bound, err := m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		m = bound
	}
	return &ChatStepper{model: m, modelName: modelName, limiter: limiter}, nil
}

// Model 返回模型标识
func (s *ChatStepper) Model() string {
	return s.modelName
}

// Step 发起一次流式推理并归并为单步决策
func (s *ChatStepper) Step(ctx context.Context, messages []*schema.Message) (*StepResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	stream, err := s.model.Stream(ctx, messages)
	if err != nil {
		return nil, errors.Wrap(ErrModelUnavailable, err.Error())
	}
	return ExtractResponse(stream)
}

// NewChatModel 根据配置创建底层 ChatModel。
// apiKey 由调用方经 secrets 解析后传入，配置文件不落明文密钥
func NewChatModel(ctx context.Context, cfg *config.ModelConfig, apiKey string) (model.ToolCallingChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		mc := &openaimodel.ChatModelConfig{
			Model:  cfg.Name,
			APIKey: apiKey,
		}
		if cfg.BaseURL != "" {
			mc.BaseURL = cfg.BaseURL
		}
		if cfg.MaxTokens > 0 {
			mc.MaxTokens = &cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			t := float32(cfg.Temperature)
			mc.Temperature = &t
		}
		cm, err := openaimodel.NewChatModel(ctx, mc)
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}
