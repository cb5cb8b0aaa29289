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

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key Session 身份：按 (应用, 用户, 会话 ID) 唯一定位
type Key struct {
	App    string
	UserID string
	ID     string
}

// Session 对话进程：唯一状态载体。历史只追加，不重排
type Session struct {
	Key       Key
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages  []*Message       // 对话历史（append-only）
	ToolCalls []ToolCallRecord // 工具调用记录

	Metadata map[string]any

	mu     sync.RWMutex
	turnMu sync.Mutex
}

// New 创建新 Session（ID 为空时生成）
func New(key Key) *Session {
	now := time.Now()
	if key.ID == "" {
		key.ID = "session-" + uuid.New().String()
	}
	return &Session{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  nil,
		ToolCalls: nil,
		Metadata:  make(map[string]any),
	}
}

// ID 返回会话 ID
func (s *Session) ID() string { return s.Key.ID }

// LockTurn 获取本会话的轮次执行权：同一 Session 同时只允许一个轮次在执行
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn 释放轮次执行权
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

// Append 追加一条对话消息（单次原子追加，仅持有轮次的调用方使用）
func (s *Session) Append(m *Message) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	if m.Timestamp.IsZero() {
		m.Timestamp = s.UpdatedAt
	}
	s.Messages = append(s.Messages, m)
}

// DropLast 移除最近一条消息。轮次中止时回收未配对的工具调用消息，
// 保证留在历史里的每个 ToolCall 都有配对的 tool 消息
func (s *Session) DropLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Messages) == 0 {
		return
	}
	s.UpdatedAt = time.Now()
	s.Messages = s.Messages[:len(s.Messages)-1]
}

// AddObservation 追加一次工具调用观察（结果写回 Session）
func (s *Session) AddObservation(tool string, input map[string]any, output string, errStr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
	s.ToolCalls = append(s.ToolCalls, ToolCallRecord{
		Tool:   tool,
		Input:  input,
		Output: output,
		Err:    errStr,
		At:     s.UpdatedAt,
	})
}

// Len 返回历史长度
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// CopyMessages 返回 Messages 的副本（供模型侧只读使用）
func (s *Session) CopyMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]*Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// CopyToolCalls 返回 ToolCalls 的副本
func (s *Session) CopyToolCalls() []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ToolCalls) == 0 {
		return nil
	}
	out := make([]ToolCallRecord, len(s.ToolCalls))
	copy(out, s.ToolCalls)
	return out
}

// ToolCallRecord 单次工具调用记录
type ToolCallRecord struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output"`
	Err    string         `json:"error,omitempty"`
	At     time.Time      `json:"at"`
}
