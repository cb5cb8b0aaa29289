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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	DataStore  DataStoreConfig  `mapstructure:"datastore"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"` // 单请求超时，如 "60s"，空则不限制
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AgentConfig Agent 策略配置：模型标识、行为指令与会话身份
type AgentConfig struct {
	Name        string `mapstructure:"name"`         // Agent 名，默认 rag_agent
	AppName     string `mapstructure:"app_name"`     // 会话归属应用名，默认 rag_app
	UserID      string `mapstructure:"user_id"`      // API 请求使用的用户标识，默认 api_user
	Instruction string `mapstructure:"instruction"`  // 行为指令（system prompt）
	MaxSteps    int    `mapstructure:"max_steps"`    // 单轮最大模型步数，<=0 使用默认 8
}

// ModelConfig 聊天模型配置（OpenAI 兼容端点）
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | qwen 等 OpenAI 兼容提供商
	Name        string  `mapstructure:"name"`     // 模型标识，如 gemini-2.0-flash
	APIKey      string  `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 占位
	BaseURL     string  `mapstructure:"base_url"`
	Location    string  `mapstructure:"location"` // 模型执行区域，仅作标签透传
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DataStoreConfig 托管检索数据存储配置（数据存储与模型区域允许不一致）
type DataStoreConfig struct {
	ID       string `mapstructure:"id"`       // 数据存储标识（含 location/collection 的资源路径）
	Label    string `mapstructure:"label"`    // 对外展示用标签，如 "clothing-site (EU region)"
	Location string `mapstructure:"location"` // 数据存储区域
	BaseURL  string `mapstructure:"base_url"` // 检索服务端点
	APIKey   string `mapstructure:"api_key"`  // 支持 ${ENV_VAR} 占位
	TopK     int    `mapstructure:"top_k"`    // 默认返回条数，<=0 使用默认 10
}

// SecretsConfig Secret Store 配置（api_key 为空时按 provider 解析）
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | vault | memory
	Config   map[string]string `mapstructure:"config"`   // provider 专属配置，如 vault address/token
}

// RateLimitsConfig 限流配置（LLM 维度）
type RateLimitsConfig struct {
	LLM LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig LLM 限流配置
type LLMRateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	applyDefaults(&config)

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换配置中的 ${ENV_VAR} 占位（API Key 等敏感项）
func replaceEnvVars(config *Config) {
	config.Model.APIKey = expandEnv(config.Model.APIKey)
	config.DataStore.APIKey = expandEnv(config.DataStore.APIKey)
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		if val := os.Getenv(envVar); val != "" {
			return val
		}
		return ""
	}
	return s
}

// applyDefaults 填充缺省值，保证零配置也能启动（memory/占位模式由上层决定）
func applyDefaults(config *Config) {
	if config.Agent.Name == "" {
		config.Agent.Name = "rag_agent"
	}
	if config.Agent.AppName == "" {
		config.Agent.AppName = "rag_app"
	}
	if config.Agent.UserID == "" {
		config.Agent.UserID = "api_user"
	}
	if config.Agent.MaxSteps <= 0 {
		config.Agent.MaxSteps = 8
	}
	if config.DataStore.TopK <= 0 {
		config.DataStore.TopK = 10
	}
	if config.API.Port <= 0 {
		config.API.Port = 8080
	}
}
