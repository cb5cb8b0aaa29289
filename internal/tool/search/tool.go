package search

import (
	"context"
	"encoding/json"

	"rag-faq/internal/tool"
	"rag-faq/pkg/metrics"
)

// ToolName 检索工具名（Agent 声明的工具集合中的标识）
const ToolName = "knowledge.search"

// Tool 将 Searcher 暴露为 Agent 可调用的 tool.Tool
type Tool struct {
	searcher Searcher
	label    string
}

// NewTool 创建检索工具；label 为数据存储展示标签，仅用于描述
func NewTool(searcher Searcher, label string) *Tool {
	return &Tool{searcher: searcher, label: label}
}

// Name 实现 tool.Tool
func (t *Tool) Name() string { return ToolName }

// Description 实现 tool.Tool
func (t *Tool) Description() string {
	desc := "在托管数据存储中检索与问题相关的文档片段，回答前先用它查找依据。"
	if t.label != "" {
		desc += " 数据存储: " + t.label
	}
	return desc
}

// Schema 实现 tool.Tool
func (t *Tool) Schema() tool.Schema {
	return tool.Schema{
		Type:        "object",
		Description: "检索参数",
		Properties: map[string]tool.SchemaProperty{
			"query": {Type: "string", Description: "检索问题或关键词"},
		},
		Required: []string{"query"},
	}
}

// Execute 实现 tool.Tool：失败保持类型化错误，折叠为 ToolResult 由调用方决定
func (t *Tool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	queryText, _ := input["query"].(string)
	if queryText == "" {
		return tool.ToolResult{}, NewRetrievalError(KindInvalidQuery, "query 不能为空", nil)
	}
	passages, err := t.searcher.Search(ctx, queryText)
	if err != nil {
		return tool.ToolResult{}, err
	}
	metrics.RetrievalPassages.Observe(float64(len(passages)))
	out, err := json.Marshal(passages)
	if err != nil {
		return tool.ToolResult{}, NewRetrievalError(KindRetrievalUnavailable, "序列化检索结果失败", err)
	}
	return tool.ToolResult{Content: string(out)}, nil
}
