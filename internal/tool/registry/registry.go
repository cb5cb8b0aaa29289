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

package registry

import (
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"

	"rag-faq/internal/tool"
)

// Registry 工具注册表：注册、发现、供 ChatModel 绑定的 ToolInfo 列表
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// New 创建新的 ToolRegistry
func New() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register 注册工具
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Declared 判断名称是否为已注册工具
func (r *Registry) Declared(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List 返回所有已注册工具（按名称排序，结果稳定）
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	list := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		list = append(list, r.tools[name])
	}
	return list
}

// ToolInfos 返回所有工具的 eino ToolInfo（供 ChatModel WithTools 使用）
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	list := r.List()
	infos := make([]*schema.ToolInfo, 0, len(list))
	for _, t := range list {
		infos = append(infos, tool.ToolInfo(t))
	}
	return infos
}
