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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"rag-faq/internal/api/http/middleware"
)

// Router 路由装配器
type Router struct {
	handler       *Handler
	middleware    *middleware.Middleware
	exposeMetrics bool
}

// NewRouter 创建 Router
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	if mw == nil {
		mw = middleware.NewMiddleware()
	}
	return &Router{handler: handler, middleware: mw}
}

// EnableMetrics 暴露 GET /metrics
func (r *Router) EnableMetrics() {
	r.exposeMetrics = true
}

// Build 构建 Hertz server 并注册路由；opts 供调用方追加（如链路追踪）
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	serverOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(serverOpts...)
	h.Use(r.middleware.CORS(), r.middleware.AccessLog())
	r.Register(h)
	return h
}

// Register 注册全部路由
func (r *Router) Register(h *server.Hertz) {
	h.GET("/", r.handler.Root)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/query", r.handler.Query)
	api.GET("/selftest", r.handler.SelfTest)

	if r.exposeMetrics {
		h.GET("/metrics", r.handler.Metrics)
	}
}
