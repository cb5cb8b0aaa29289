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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"rag-faq/internal/agent"
	"rag-faq/internal/runtime/session"
	"rag-faq/internal/tool/search"
	"rag-faq/pkg/metrics"
)

// Readiness 初始化状态只读视图（由 app.InitStatus 实现）
type Readiness interface {
	State() string
	Ready() bool
	Err() string
}

// Handler HTTP 请求处理器
type Handler struct {
	runner   *agent.Runner
	agent    *agent.Agent
	sessions session.SessionManager
	status   Readiness

	appName        string
	userID         string
	modelName      string
	dataStoreLabel string
	timeout        time.Duration
}

// NewHandler 创建 Handler
func NewHandler(runner *agent.Runner, ag *agent.Agent, sessions session.SessionManager, status Readiness) *Handler {
	return &Handler{
		runner:   runner,
		agent:    ag,
		sessions: sessions,
		status:   status,
		appName:  "rag_app",
		userID:   "api_user",
	}
}

// SetIdentity 设置会话归属（应用名与用户标识）
func (h *Handler) SetIdentity(appName, userID string) {
	if appName != "" {
		h.appName = appName
	}
	if userID != "" {
		h.userID = userID
	}
}

// SetServiceInfo 设置健康检查展示的模型与数据存储标签
func (h *Handler) SetServiceInfo(model, dataStore string) {
	h.modelName = model
	h.dataStoreLabel = dataStore
}

// SetTimeout 设置单请求超时，0 表示不限制
func (h *Handler) SetTimeout(d time.Duration) {
	h.timeout = d
}

// queryRequest POST /api/query 请求体
type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// queryResponse 问答成功响应
type queryResponse struct {
	Response  string   `json:"response"`
	Status    string   `json:"status"`
	Sources   []string `json:"sources"`
	Grounded  bool     `json:"grounded"`
	SessionID string   `json:"session_id"`
	Steps     int      `json:"steps"`
}

// errorBody 错误响应：status 恒为 "error"，kind 稳定可编程，message 给人看
type errorBody struct {
	Status string      `json:"status"`
	Error  errorDetail `json:"error"`
}

// errResponse 构造错误响应体
func errResponse(kind, message string) errorBody {
	return errorBody{
		Status: "error",
		Error:  errorDetail{Kind: kind, Message: message},
	}
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Root 服务横幅
// GET /
func (h *Handler) Root(c context.Context, ctx *app.RequestContext) {
	banner := fmt.Sprintf("RAG FAQ service (%s). Model: %s. Data store: %s. POST /api/query with {\"question\": ...}.",
		InitStateOf(h.status), h.modelName, h.dataStoreLabel)
	ctx.String(consts.StatusOK, banner)
}

// HealthCheck 就绪探针：ready 时 200，否则 503
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	state := InitStateOf(h.status)
	resp := map[string]any{
		"status":    state,
		"ready":     h.status != nil && h.status.Ready(),
		"model":     h.modelName,
		"datastore": h.dataStoreLabel,
		"components": map[string]bool{
			"agent":  h.agent != nil,
			"runner": h.runner != nil,
		},
	}
	if h.status != nil && h.status.Err() != "" {
		resp["init_error"] = h.status.Err()
	}
	code := consts.StatusOK
	if h.status == nil || !h.status.Ready() {
		code = consts.StatusServiceUnavailable
	}
	ctx.JSON(code, resp)
}

// Query 问答入口：单轮对话，回答附带检索依据
// POST /api/query
func (h *Handler) Query(c context.Context, ctx *app.RequestContext) {
	if h.status == nil || !h.status.Ready() {
		ctx.JSON(consts.StatusServiceUnavailable, errResponse("ServiceUnavailable", "服务未就绪: " + InitStateOf(h.status)))
		return
	}

	var req queryRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, errResponse("InvalidQuery", "请求体不是合法 JSON"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		ctx.JSON(consts.StatusBadRequest, errResponse("InvalidQuery", "question 不能为空"))
		return
	}

	sess, err := h.sessionFor(c, req.SessionID)
	if err != nil {
		hlog.CtxErrorf(c, "获取会话失败: %v", err)
		ctx.JSON(consts.StatusInternalServerError, errResponse("Internal", "获取会话失败"))
		return
	}

	runCtx := c
	if h.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(c, h.timeout)
		defer cancel()
	}

	out, err := h.runner.RunTurn(runCtx, sess, h.agent, req.Question)
	if err != nil {
		kind := agent.ErrorKind(err)
		hlog.CtxWarnf(c, "轮次失败 kind=%s session=%s: %v", kind, sess.ID(), err)
		ctx.JSON(statusOfKind(kind), errResponse(kind, errorMessage(err)))
		return
	}

	sources := out.Sources
	if sources == nil {
		sources = []string{}
	}
	ctx.JSON(consts.StatusOK, queryResponse{
		Response:  out.Answer,
		Status:    "success",
		Sources:   sources,
		Grounded:  out.Grounded,
		SessionID: sess.ID(),
		Steps:     out.Steps,
	})
}

// SelfTest 自检：对数据存储跑一条固定问题，验证模型与检索链路
// GET /api/selftest
func (h *Handler) SelfTest(c context.Context, ctx *app.RequestContext) {
	if h.status == nil || !h.status.Ready() {
		ctx.JSON(consts.StatusServiceUnavailable, errResponse("ServiceUnavailable", "服务未就绪: " + InitStateOf(h.status)))
		return
	}

	question := string(ctx.Query("q"))
	if question == "" {
		question = "这个数据存储里有哪些内容？"
	}
	sess, err := h.sessions.Create(c, h.appName, h.userID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, errResponse("Internal", "创建会话失败"))
		return
	}
	out, err := h.runner.RunTurn(c, sess, h.agent, question)
	if err != nil {
		kind := agent.ErrorKind(err)
		ctx.JSON(statusOfKind(kind), errResponse(kind, errorMessage(err)))
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":   "ok",
		"question": question,
		"response": out.Answer,
		"grounded": out.Grounded,
	})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, errResponse("Internal", "采集指标失败"))
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// sessionFor 按请求取会话：带 session_id 续用既有会话，否则每次新建
func (h *Handler) sessionFor(c context.Context, sessionID string) (*session.Session, error) {
	if sessionID != "" {
		return h.sessions.GetOrCreate(c, h.appName, h.userID, sessionID)
	}
	return h.sessions.Create(c, h.appName, h.userID)
}

// InitStateOf 读取状态，nil 安全
func InitStateOf(r Readiness) string {
	if r == nil {
		return "not_started"
	}
	return r.State()
}

// statusOfKind 错误类别到 HTTP 状态码的映射
func statusOfKind(kind string) int {
	switch kind {
	case search.KindInvalidQuery:
		return consts.StatusBadRequest
	case agent.KindModelUnavailable, search.KindRetrievalUnavailable:
		return consts.StatusBadGateway
	case agent.KindCanceled:
		return consts.StatusRequestTimeout
	default:
		// TurnIncomplete / UndeclaredToolInvoked / DataStoreNotFound 均为服务端问题
		return consts.StatusInternalServerError
	}
}

// errorMessage 提取人类可读信息：类型化错误用 Message，其余用 Error()
func errorMessage(err error) string {
	if te, ok := agent.AsTurnError(err); ok && te.Message != "" {
		return te.Message
	}
	return err.Error()
}
