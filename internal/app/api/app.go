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

package api

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"rag-faq/internal/api/http"
	"rag-faq/internal/api/http/middleware"
	"rag-faq/internal/app"
	"rag-faq/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用：装配 Handler、Router、Middleware
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用，在 Bootstrap.Initialize 之后）
func NewApp(bootstrap *app.Bootstrap) *App {
	cfg := bootstrap.Config

	handler := http.NewHandler(bootstrap.Runner, bootstrap.Agent, bootstrap.Sessions, bootstrap.Status)
	var mw *middleware.Middleware
	if cfg != nil {
		handler.SetIdentity(cfg.Agent.AppName, cfg.Agent.UserID)
		handler.SetServiceInfo(cfg.Model.Name, cfg.DataStore.Label)
		if d, err := time.ParseDuration(cfg.API.Timeout); err == nil && d > 0 {
			handler.SetTimeout(d)
		}
		if cfg.API.CORS.Enable && len(cfg.API.CORS.AllowOrigins) > 0 {
			mw = middleware.NewMiddleware(cfg.API.CORS.AllowOrigins...)
		}
	}

	router := http.NewRouter(handler, mw)
	if cfg != nil && cfg.Monitoring.Prometheus.Enable {
		router.EnableMetrics()
	}

	return &App{bootstrap: bootstrap, router: router}
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.logger().Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
	output := os.Stdout
	cfg := a.bootstrap.Config
	if cfg != nil && cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	if cfg != nil {
		levelVar.Set(log.ParseLevel(cfg.Log.Level))
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	if cfg != nil && cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "rag-faq"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.logger().Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		return a.hertz.Shutdown(ctx)
	}
	return nil
}

func (a *App) logger() *log.Logger {
	if a.bootstrap != nil && a.bootstrap.Logger != nil {
		return a.bootstrap.Logger
	}
	return &log.Logger{Logger: slog.Default()}
}
