package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	Data Data `json:"data" yaml:"data"`

	// Stage: easy | hard | main。
	Stage string `json:"stage" yaml:"stage" validate:"required,oneof=easy hard main"`
	// Skills: easy 阶段参与平衡的 skill 子集（输出顺序恒为 first..fourth）。
	Skills []string `json:"skills" yaml:"skills" validate:"dive,oneof=first second third fourth"`
	// EmptyRatio: 每族空样本比例上限 [0,1)；指针用于区分“未设置”与显式 0。
	EmptyRatio *float64 `json:"empty_ratio,omitempty" yaml:"empty_ratio,omitempty" validate:"required,gte=0,lt=1"`
	// SentNum: hard 阶段合成的最大句数；1 表示不合成。
	SentNum int `json:"sent_num" yaml:"sent_num" validate:"gte=1"`
	// M: 每个 n 的合成轮数。
	M int `json:"m" yaml:"m" validate:"gte=1"`
	// Seed: 进程级随机种子；指针语义同 EmptyRatio。
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty" validate:"required"`
	// SeedPolicy: keep | skip（hard 阶段对空种子的处理）。
	SeedPolicy string `json:"seed_policy" yaml:"seed_policy" validate:"oneof=keep skip"`
	// DecodingFormat: 目标串格式；仅支持 spotasoc。
	DecodingFormat string `json:"decoding_format" yaml:"decoding_format" validate:"eq=spotasoc"`
	// Concurrency: 写出并发度。
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=1"`

	Logging Logging `json:"logging" yaml:"logging"`
	// MetricsFile: 非空时运行结束导出 Prometheus 文本格式指标。
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components" yaml:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options" yaml:"options"`
}

// Data: 三个分区的输入与截断上限（0 表示不限）。
type Data struct {
	TrainFile       string `json:"train_file" yaml:"train_file" validate:"required"`
	ValidationFile  string `json:"validation_file" yaml:"validation_file" validate:"required"`
	TestFile        string `json:"test_file" yaml:"test_file" validate:"required"`
	SchemaFile      string `json:"schema_file" yaml:"schema_file"`
	MaxTrainSamples int    `json:"max_train_samples" yaml:"max_train_samples" validate:"gte=0"`
	MaxValSamples   int    `json:"max_val_samples" yaml:"max_val_samples" validate:"gte=0"`
	MaxTestSamples  int    `json:"max_test_samples" yaml:"max_test_samples" validate:"gte=0"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `json:"reader" yaml:"reader"`
	Parser  string `json:"parser" yaml:"parser"`
	Encoder string `json:"encoder" yaml:"encoder"`
	Writer  string `json:"writer" yaml:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader  json.RawMessage `json:"reader,omitempty" yaml:"reader,omitempty"`
	Parser  json.RawMessage `json:"parser,omitempty" yaml:"parser,omitempty"`
	Encoder json.RawMessage `json:"encoder,omitempty" yaml:"encoder,omitempty"`
	Writer  json.RawMessage `json:"writer,omitempty" yaml:"writer,omitempty"`
}

// UnmarshalYAML 将 YAML 子树转为等价 JSON，交给工厂层严格解码。
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var raw map[string]any
	if err := n.Decode(&raw); err != nil {
		return err
	}
	for k, v := range raw {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("options.%s: %w", k, err)
		}
		switch k {
		case "reader":
			o.Reader = b
		case "parser":
			o.Parser = b
		case "encoder":
			o.Encoder = b
		case "writer":
			o.Writer = b
		default:
			return fmt.Errorf("options: unknown component %q", k)
		}
	}
	return nil
}

// MarshalYAML 以原生 YAML 结构输出（供 init-config 生成 .yaml 模板）。
func (o Options) MarshalYAML() (any, error) {
	out := map[string]any{}
	for k, raw := range map[string]json.RawMessage{"reader": o.Reader, "parser": o.Parser, "encoder": o.Encoder, "writer": o.Writer} {
		if len(raw) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("options.%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
