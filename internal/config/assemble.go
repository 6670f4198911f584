package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"e2h/internal/assemble"
	"e2h/internal/curriculum"
	"e2h/internal/pipeline"
	"e2h/internal/schema"
	"e2h/pkg/contract"
	"e2h/pkg/registry"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate 对配置做静态校验：结构标签 + 跨字段规则 + 组件注册检查。失败统一包装 ErrConfig。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%w: %s failed on %q (value %v)", contract.ErrConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	// "-" 只能指定给一个分区（STDIN 不可重复读取）
	dash := 0
	for _, p := range []string{cfg.Data.TrainFile, cfg.Data.ValidationFile, cfg.Data.TestFile} {
		if strings.TrimSpace(p) == "-" {
			dash++
		}
	}
	if dash > 1 {
		return fmt.Errorf("%w: '-' (stdin) can be used by one split only", contract.ErrConfig)
	}
	if cfg.Stage == string(assemble.StageEasy) && len(cfg.Skills) == 0 {
		return fmt.Errorf("%w: stage easy requires at least one skill", contract.ErrConfig)
	}
	seen := map[string]bool{}
	for _, s := range cfg.Skills {
		if seen[s] {
			return fmt.Errorf("%w: duplicate skill %q", contract.ErrConfig, s)
		}
		seen[s] = true
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Parser, d.Components.Parser); registry.Parser[name] == nil {
		return fmt.Errorf("%w: parser %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Encoder, d.Components.Encoder); registry.Encoder[name] == nil {
		return fmt.Errorf("%w: encoder %q not registered", contract.ErrConfig, name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", contract.ErrConfig, name)
	}
	return nil
}

// SchemaPath 返回生效的 schema 路径：未配置时位于 test_file 同目录。
func (c Config) SchemaPath() string {
	if p := strings.TrimSpace(c.Data.SchemaFile); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Data.TestFile), schema.FileName)
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Components.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapConfig("reader", err)
	}
	p, err := registry.Parser[effName(cfg.Components.Parser, d.Components.Parser)](cfg.Options.Parser)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapConfig("parser", err)
	}
	enc, err := registry.Encoder[effName(cfg.Components.Encoder, d.Components.Encoder)](cfg.Options.Encoder)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapConfig("encoder", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrapConfig("writer", err)
	}
	comp := pipeline.Components{Reader: r, Parser: p, Encoder: enc, Writer: w}

	skills := make([]contract.Skill, len(cfg.Skills))
	for i, s := range cfg.Skills {
		skills[i] = contract.Skill(s)
	}
	set := pipeline.Settings{
		Files: map[contract.Split]string{
			contract.SplitTrain:      cfg.Data.TrainFile,
			contract.SplitValidation: cfg.Data.ValidationFile,
			contract.SplitTest:       cfg.Data.TestFile,
		},
		SchemaFile: cfg.SchemaPath(),
		Marker:     contract.BaseStructureMarker(),
		Stage:      assemble.Stage(cfg.Stage),
		Skills:     skills,
		EmptyRatio: *cfg.EmptyRatio,
		SentNum:    cfg.SentNum,
		Repeats:    cfg.M,
		Seed:       *cfg.Seed,
		SeedPolicy: curriculum.SeedPolicy(cfg.SeedPolicy),
		MaxSamples: map[contract.Split]int{
			contract.SplitTrain:      cfg.Data.MaxTrainSamples,
			contract.SplitValidation: cfg.Data.MaxValSamples,
			contract.SplitTest:       cfg.Data.MaxTestSamples,
		},
		Concurrency: cfg.Concurrency,
		MetricsFile: cfg.MetricsFile,
	}
	return comp, set, nil
}

// wrapConfig: 工厂错误（未知字段、缺失必需项）归为配置错误。
func wrapConfig(comp string, err error) error {
	if errors.Is(err, contract.ErrConfig) {
		return fmt.Errorf("%s: %w", comp, err)
	}
	return fmt.Errorf("%w: %s: %v", contract.ErrConfig, comp, err)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
