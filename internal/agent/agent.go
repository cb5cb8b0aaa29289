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
	"github.com/cloudwego/eino/schema"

	"rag-faq/internal/tool"
	"rag-faq/internal/tool/registry"
)

// Agent 策略定义：名称、系统指令与声明的工具集合。
// 声明之外的工具调用一律视为配置错误，不会被执行
type Agent struct {
	Name        string
	Instruction string

	tools *registry.Registry
}

// New 创建 Agent
func New(name, instruction string, tools *registry.Registry) *Agent {
	if tools == nil {
		tools = registry.New()
	}
	return &Agent{Name: name, Instruction: instruction, tools: tools}
}

// Declared 判断工具是否在声明集合内
func (a *Agent) Declared(name string) bool {
	return a.tools.Declared(name)
}

// Tool 按名称取声明的工具
func (a *Agent) Tool(name string) (tool.Tool, bool) {
	return a.tools.Get(name)
}

// ToolInfos 返回声明工具的 eino ToolInfo 列表（供 ChatModel 绑定）
func (a *Agent) ToolInfos() []*schema.ToolInfo {
	return a.tools.ToolInfos()
}
