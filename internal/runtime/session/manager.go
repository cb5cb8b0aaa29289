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

	"rag-faq/pkg/errors"
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	Create(ctx context.Context, app, userID string) (*Session, error)
	Get(ctx context.Context, app, userID, id string) (*Session, error)
	GetOrCreate(ctx context.Context, app, userID, id string) (*Session, error)
	Delete(ctx context.Context, app, userID, id string) error
}

// Manager 基于 SessionStore 的实现
type Manager struct {
	store SessionStore
}

// NewManager 创建 SessionManager
func NewManager(store SessionStore) *Manager {
	return &Manager{store: store}
}

// Create 创建新 Session（ID 由 Store 生成）
func (m *Manager) Create(ctx context.Context, app, userID string) (*Session, error) {
	return m.store.GetOrCreate(ctx, Key{App: app, UserID: userID})
}

// Get 按身份获取 Session；id 为空返回 ErrInvalidArg，不存在时返回 ErrNotFound
func (m *Manager) Get(ctx context.Context, app, userID, id string) (*Session, error) {
	if id == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "session id 不能为空")
	}
	s, err := m.store.Get(ctx, Key{App: app, UserID: userID, ID: id})
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s/%s/%s", app, userID, id)
	}
	return s, nil
}

// GetOrCreate 若 id 为空则 Create，否则按 key 惰性创建
func (m *Manager) GetOrCreate(ctx context.Context, app, userID, id string) (*Session, error) {
	return m.store.GetOrCreate(ctx, Key{App: app, UserID: userID, ID: id})
}

// Delete 显式销毁 Session
func (m *Manager) Delete(ctx context.Context, app, userID, id string) error {
	return m.store.Delete(ctx, Key{App: app, UserID: userID, ID: id})
}
