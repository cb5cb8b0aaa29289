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

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Passage 单条检索片段：文本 + 后端报告的相关度（不透明，仅用于排序展示）
type Passage struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Searcher 检索能力抽象（供 Agent 工具与测试替身使用）
type Searcher interface {
	Search(ctx context.Context, query string) ([]Passage, error)
}

// ClientConfig 托管检索服务客户端配置
type ClientConfig struct {
	BaseURL     string
	DataStoreID string // 数据存储资源路径，如 projects/.../dataStores/clothing-site
	APIKey      string
	TopK        int
	Timeout     time.Duration
}

// Client 托管检索服务客户端：单一数据存储上的 serving config 查询。
// 不做缓存、不做重试、不做重排序，结果顺序以服务端相关度为准
type Client struct {
	cfg  ClientConfig
	http *resty.Client
}

// NewClient 创建检索客户端
func NewClient(cfg ClientConfig) *Client {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	// 重试策略归 Orchestrator 所有，客户端单发
	client.SetRetryCount(0)
	return &Client{cfg: cfg, http: client}
}

// DataStoreID 返回配置的数据存储标识
func (c *Client) DataStoreID() string { return c.cfg.DataStoreID }

// searchRequest 检索请求体
type searchRequest struct {
	Query    string `json:"query"`
	PageSize int    `json:"pageSize"`
}

// searchResponse 检索响应体（serving config search 结果）
type searchResponse struct {
	Results []struct {
		ID       string `json:"id"`
		Document struct {
			Content string `json:"content"`
		} `json:"document"`
		RelevanceScore float64 `json:"relevanceScore"`
	} `json:"results"`
}

// Search 实现 Searcher：按相关度降序返回片段；失败为类型化 RetrievalError
func (c *Client) Search(ctx context.Context, query string) ([]Passage, error) {
	if query == "" {
		return nil, NewRetrievalError(KindInvalidQuery, "query 不能为空", nil)
	}
	if c.cfg.DataStoreID == "" {
		return nil, NewRetrievalError(KindDataStoreNotFound, "未配置数据存储", nil)
	}

	url := fmt.Sprintf("%s/v1/%s/servingConfigs/default_search:search", c.cfg.BaseURL, c.cfg.DataStoreID)
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(searchRequest{Query: query, PageSize: c.cfg.TopK})
	if c.cfg.APIKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := req.Post(url)
	if err != nil {
		return nil, NewRetrievalError(KindRetrievalUnavailable, "检索服务不可达", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, NewRetrievalError(KindInvalidQuery, truncate(resp.String(), 200), nil)
	case http.StatusNotFound:
		return nil, NewRetrievalError(KindDataStoreNotFound, "数据存储不存在: "+c.cfg.DataStoreID, nil)
	default:
		return nil, NewRetrievalError(KindRetrievalUnavailable,
			fmt.Sprintf("检索服务返回 %d: %s", resp.StatusCode(), truncate(resp.String(), 200)), nil)
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, NewRetrievalError(KindRetrievalUnavailable, "解析检索响应失败", err)
	}

	passages := make([]Passage, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Document.Content == "" {
			continue
		}
		passages = append(passages, Passage{Text: r.Document.Content, Score: r.RelevanceScore})
	}
	return passages, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
