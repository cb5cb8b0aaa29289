package session

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// 消息角色（与 eino schema.RoleType 语义对齐）
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message 对话消息（追加后不可变；与 schema.Message 语义对齐，带时间戳）
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []schema.ToolCall `json:"tool_calls,omitempty"`   // assistant 消息的工具调用请求
	ToolCallID string            `json:"tool_call_id,omitempty"` // tool 消息关联的调用 ID
	Timestamp  time.Time         `json:"timestamp"`
}

// UserMessage 创建 user 消息
func UserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// ToSchema 转为 schema.Message（供 ChatModel 使用）
func (m *Message) ToSchema() *schema.Message {
	return &schema.Message{
		Role:       schema.RoleType(m.Role),
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}
}

// FromSchema 从 schema.Message 创建
func FromSchema(sm *schema.Message) *Message {
	return &Message{
		Role:       string(sm.Role),
		Content:    sm.Content,
		ToolCalls:  sm.ToolCalls,
		ToolCallID: sm.ToolCallID,
		Timestamp:  time.Now(),
	}
}

// MessagesToSchema 将 []*Message 转为 []*schema.Message
func MessagesToSchema(list []*Message) []*schema.Message {
	if len(list) == 0 {
		return nil
	}
	out := make([]*schema.Message, len(list))
	for i, m := range list {
		out[i] = m.ToSchema()
	}
	return out
}
