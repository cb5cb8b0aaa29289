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
	"context"
	"sync"
)

// SessionStore 存储抽象；进程生命周期内有效，无持久化承诺
type SessionStore interface {
	Get(ctx context.Context, key Key) (*Session, error)
	// GetOrCreate 按 key 获取，不存在则创建；并发创建同一 key 必须收敛到同一实例
	GetOrCreate(ctx context.Context, key Key) (*Session, error)
	Delete(ctx context.Context, key Key) error
}

// MemoryStore 内存实现（map + mutex）
type MemoryStore struct {
	mu   sync.RWMutex
	sess map[Key]*Session
}

// NewMemoryStore 创建内存 Session 存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sess: make(map[Key]*Session)}
}

// Get 实现 SessionStore；不存在时返回 (nil, nil)
func (m *MemoryStore) Get(ctx context.Context, key Key) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sess[key]
	if !ok {
		return nil, nil
	}
	return s, nil
}

// GetOrCreate 实现 SessionStore；写锁内二次检查，保证每 key 至多创建一次
func (m *MemoryStore) GetOrCreate(ctx context.Context, key Key) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sess[key]; ok {
		return s, nil
	}
	s := New(key)
	m.sess[s.Key] = s
	return s, nil
}

// Delete 实现 SessionStore
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, key)
	return nil
}
