// Package metrics 定义推荐管线的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmbeddingTexts 已向量化的文本数
	EmbeddingTexts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_embedding_texts_total",
		Help: "Number of texts sent to the embedding encoder.",
	})

	// EmbeddingCalls 向量服务调用次数，按结果区分
	EmbeddingCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_embedding_calls_total",
		Help: "Embedding provider calls by result.",
	}, []string{"result"})

	// EmbeddingModelLoads 模型加载结果
	EmbeddingModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_embedding_model_loads_total",
		Help: "Embedding model initialisation attempts by result.",
	}, []string{"result"})

	// ThemeResults 主题提取结果，按类型区分（空字符串记为 unparsed）
	ThemeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_theme_results_total",
		Help: "Theme extraction outcomes by kind.",
	}, []string{"kind"})

	// IngestBatches 入库批次，按结果区分
	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_ingest_batches_total",
		Help: "Ingestion batches by result.",
	}, []string{"result"})

	// RecommendDuration 推荐请求耗时
	RecommendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommender_recommend_duration_seconds",
		Help:    "Latency of recommendation requests (embed + query).",
		Buckets: prometheus.DefBuckets,
	})
)

// ResultLabel 把错误转换为 ok/error 标签
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
