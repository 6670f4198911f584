package diag

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 指标：
// - e2h_op_total{comp,stage,result}
// - e2h_error_total{comp,code}
// - e2h_op_duration_ms{comp,stage}
// - e2h_skill_instances{split,skill,kind}  kind=kept|empty|dropped
//
// 注册在私有 registry 上，仅通过 WriteMetrics 导出为文本文件。

const metricsNamespace = "e2h"

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	opTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "op_total",
		Help:      "Operations by component, stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "error_total",
		Help:      "Errors by component and classification code.",
	}, []string{"comp", "code"})

	opDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "op_duration_ms",
		Help:      "Stage duration in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"comp", "stage"})

	skillInstances = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "skill_instances",
		Help:      "Derived instances per split and skill after balancing.",
	}, []string{"split", "skill", "kind"})
)

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// ObserveSkill 记录某分区某 skill 平衡后的规模。
func ObserveSkill(split, skill string, kept, empty, dropped int) {
	skillInstances.WithLabelValues(split, skill, "kept").Set(float64(kept))
	skillInstances.WithLabelValues(split, skill, "empty").Set(float64(empty))
	skillInstances.WithLabelValues(split, skill, "dropped").Set(float64(dropped))
}

// Registry 暴露私有 registry（测试与自定义导出使用）。
func Registry() *prometheus.Registry { return registry }

// WriteMetrics 以 Prometheus 文本格式原子写出全部指标；path 为空时不做任何事。
func WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return prometheus.WriteToTextfile(path, registry)
}
