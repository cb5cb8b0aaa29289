package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal,
		ToolCallDuration, ToolCallTotal,
		RetrievalPassages, LLMTokensTotal,
	)
}

// TurnDuration 单轮对话执行耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ragfaq_turn_duration_seconds",
		Help:    "单轮对话执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"agent"},
)

// TurnTotal 轮次总数（按结局）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragfaq_turn_total",
		Help: "轮次总数（按结局）",
	},
	[]string{"outcome"}, // success | error kind
)

// ToolCallDuration 工具调用耗时（秒）
var ToolCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ragfaq_tool_call_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolCallTotal 工具调用总数（按结果）
var ToolCallTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragfaq_tool_call_total",
		Help: "工具调用总数（按结果）",
	},
	[]string{"tool", "status"}, // ok | error
)

// RetrievalPassages 单次检索返回的片段数
var RetrievalPassages = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ragfaq_retrieval_passages",
		Help:    "单次检索返回的片段数",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragfaq_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
