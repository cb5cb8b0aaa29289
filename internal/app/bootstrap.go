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

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rag-faq/internal/agent"
	"rag-faq/internal/model/llm"
	"rag-faq/internal/runtime/session"
	"rag-faq/internal/tool/registry"
	"rag-faq/internal/tool/search"
	"rag-faq/pkg/config"
	"rag-faq/pkg/errors"
	"rag-faq/pkg/log"
	"rag-faq/pkg/secrets"
)

// 初始化生命周期状态
const (
	InitNotStarted   = "not_started"
	InitInitializing = "initializing"
	InitReady        = "ready"
	InitFailed       = "failed"
)

// InitStatus 服务初始化状态：健康检查据此上报就绪情况。
// 初始化失败后服务继续运行，但问答端点返回 503
type InitStatus struct {
	mu    sync.RWMutex
	state string
	err   string
}

// NewInitStatus 创建状态机，初始为 not_started
func NewInitStatus() *InitStatus {
	return &InitStatus{state: InitNotStarted}
}

// MarkInitializing 进入初始化中
func (s *InitStatus) MarkInitializing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = InitInitializing
	s.err = ""
}

// MarkReady 初始化完成
func (s *InitStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = InitReady
	s.err = ""
}

// MarkFailed 初始化失败并记录原因
func (s *InitStatus) MarkFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = InitFailed
	if err != nil {
		s.err = err.Error()
	}
}

// State 当前状态
func (s *InitStatus) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready 是否可以服务问答请求
func (s *InitStatus) Ready() bool {
	return s.State() == InitReady
}

// Check 就绪校验：未就绪时返回携带当前状态的 ErrNotReady
func (s *InitStatus) Check() error {
	if s.Ready() {
		return nil
	}
	return errors.Wrapf(errors.ErrNotReady, "init state %s", s.State())
}

// Err 初始化失败原因（未失败时为空）
func (s *InitStatus) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Bootstrap 进程级装配结果：配置、日志与问答核心组件
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Status  *InitStatus
	Secrets secrets.Store

	Agent    *agent.Agent
	Runner   *agent.Runner
	Sessions session.SessionManager
}

// NewBootstrap 创建基础设施（日志、状态机、Secret Store），不触达外部服务
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	var logCfg *log.Config
	if cfg != nil {
		logCfg = &log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var secretStore secrets.Store
	if cfg != nil {
		secretStore, err = secrets.NewStore(secrets.Config{
			Provider: cfg.Secrets.Provider,
			Config:   cfg.Secrets.Config,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 Secret Store 失败: %w", err)
		}
	}

	return &Bootstrap{
		Config:  cfg,
		Logger:  logger,
		Status:  NewInitStatus(),
		Secrets: secretStore,
	}, nil
}

// Initialize 装配问答核心：检索工具、聊天模型、编排器与会话管理。
// 失败时标记 failed 并返回错误，进程不退出
func (b *Bootstrap) Initialize(ctx context.Context) error {
	b.Status.MarkInitializing()

	if b.Config == nil {
		err := fmt.Errorf("缺少配置")
		b.Status.MarkFailed(err)
		return err
	}
	cfg := b.Config

	modelKey, err := b.resolveSecret(ctx, cfg.Model.APIKey, "model_api_key")
	if err != nil {
		b.Status.MarkFailed(err)
		return err
	}
	searchKey, err := b.resolveSecret(ctx, cfg.DataStore.APIKey, "datastore_api_key")
	if err != nil {
		b.Status.MarkFailed(err)
		return err
	}

	searcher := search.NewClient(search.ClientConfig{
		BaseURL:     cfg.DataStore.BaseURL,
		DataStoreID: cfg.DataStore.ID,
		APIKey:      searchKey,
		TopK:        cfg.DataStore.TopK,
		Timeout:     parseDuration(cfg.API.Timeout, 15*time.Second),
	})
	reg := registry.New()
	reg.Register(search.NewTool(searcher, cfg.DataStore.Label))
	ag := agent.New(cfg.Agent.Name, cfg.Agent.Instruction, reg)

	chatModel, err := llm.NewChatModel(ctx, &cfg.Model, modelKey)
	if err != nil {
		b.Status.MarkFailed(err)
		return fmt.Errorf("初始化聊天模型失败: %w", err)
	}
	limiter := llm.NewRateLimiter(llm.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimits.LLM.RequestsPerMinute,
		MaxConcurrent:     cfg.RateLimits.LLM.MaxConcurrent,
	})
	stepper, err := llm.NewChatStepper(chatModel, cfg.Model.Name, reg.ToolInfos(), limiter)
	if err != nil {
		b.Status.MarkFailed(err)
		return fmt.Errorf("绑定工具失败: %w", err)
	}

	b.Agent = ag
	b.Runner = agent.NewRunner(stepper,
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithLogger(b.Logger),
	)
	b.Sessions = session.NewManager(session.NewMemoryStore())

	b.Status.MarkReady()
	b.Logger.Info("问答核心初始化完成",
		"model", cfg.Model.Name,
		"datastore", cfg.DataStore.Label,
		"max_steps", cfg.Agent.MaxSteps,
	)
	return nil
}

// resolveSecret 配置值非空直接使用，否则回退到 Secret Store；
// 两处都没有时返回空串（端点可能不需要鉴权，留给上游校验）
func (b *Bootstrap) resolveSecret(ctx context.Context, configured, key string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if b.Secrets == nil {
		return "", nil
	}
	v, err := b.Secrets.Get(ctx, key)
	if err != nil {
		return "", nil
	}
	return v, nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
