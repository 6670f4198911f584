package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"e2h/pkg/contract"
)

// EnvPrefix: 环境变量覆盖前缀。
const EnvPrefix = "E2H_"

// Defaults 返回带有安全默认值的 Config 雏形。数据路径不设默认。
func Defaults() Config {
	ratio := 0.5
	seed := int64(42)
	return Config{
		Stage:          "easy",
		Skills:         []string{"first", "second", "third", "fourth"},
		EmptyRatio:     &ratio,
		SentNum:        2,
		M:              1,
		Seed:           &seed,
		SeedPolicy:     "keep",
		DecodingFormat: "spotasoc",
		Concurrency:    1,
		Logging:        Logging{Level: "info"},
		Components: Components{
			Reader:  "fs",
			Parser:  "uie",
			Encoder: "jsonl",
			Writer:  "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置（KnownFields 拒绝未知字段）。
func LoadYAML(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// LoadFile 按扩展名选择解析器：.yaml/.yml 走 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		return LoadYAML(f)
	default:
		return LoadJSON(path, nil)
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	// data
	setStr(&out.Data.TrainFile, over.Data.TrainFile)
	setStr(&out.Data.ValidationFile, over.Data.ValidationFile)
	setStr(&out.Data.TestFile, over.Data.TestFile)
	setStr(&out.Data.SchemaFile, over.Data.SchemaFile)
	setInt(&out.Data.MaxTrainSamples, over.Data.MaxTrainSamples)
	setInt(&out.Data.MaxValSamples, over.Data.MaxValSamples)
	setInt(&out.Data.MaxTestSamples, over.Data.MaxTestSamples)

	// 顶层
	setStr(&out.Stage, over.Stage)
	if len(over.Skills) > 0 {
		out.Skills = cloneStrings(over.Skills)
	}
	if over.EmptyRatio != nil {
		v := *over.EmptyRatio
		out.EmptyRatio = &v
	}
	setInt(&out.SentNum, over.SentNum)
	setInt(&out.M, over.M)
	if over.Seed != nil {
		v := *over.Seed
		out.Seed = &v
	}
	setStr(&out.SeedPolicy, over.SeedPolicy)
	setStr(&out.DecodingFormat, over.DecodingFormat)
	setInt(&out.Concurrency, over.Concurrency)
	setStr(&out.Logging.Level, over.Logging.Level)
	setStr(&out.MetricsFile, over.MetricsFile)

	// 组件名（空不覆盖）
	setStr(&out.Components.Reader, over.Components.Reader)
	setStr(&out.Components.Parser, over.Components.Parser)
	setStr(&out.Components.Encoder, over.Components.Encoder)
	setStr(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Parser) > 0 {
		out.Options.Parser = cloneRaw(over.Options.Parser)
	}
	if len(over.Options.Encoder) > 0 {
		out.Options.Encoder = cloneRaw(over.Options.Encoder)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 E2H_；集合之外的键忽略；数值解析失败返回 ErrConfig。
// 支持：TRAIN_FILE, VALIDATION_FILE, TEST_FILE, SCHEMA_FILE, MAX_{TRAIN,VAL,TEST}_SAMPLES,
// STAGE, SKILLS, EMPTY_RATIO, SENT_NUM, M, SEED, SEED_POLICY, DECODING_FORMAT, CONCURRENCY,
// LOG_LEVEL, METRICS_FILE, COMPONENTS_*, OPTIONS_*_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空文件配置
			continue
		}
		var err error
		switch key {
		case "TRAIN_FILE":
			over.Data.TrainFile = val
		case "VALIDATION_FILE":
			over.Data.ValidationFile = val
		case "TEST_FILE":
			over.Data.TestFile = val
		case "SCHEMA_FILE":
			over.Data.SchemaFile = val
		case "MAX_TRAIN_SAMPLES":
			over.Data.MaxTrainSamples, err = strconv.Atoi(val)
		case "MAX_VAL_SAMPLES":
			over.Data.MaxValSamples, err = strconv.Atoi(val)
		case "MAX_TEST_SAMPLES":
			over.Data.MaxTestSamples, err = strconv.Atoi(val)
		case "STAGE":
			over.Stage = val
		case "SKILLS":
			over.Skills = splitComma(val)
		case "EMPTY_RATIO":
			var f float64
			if f, err = strconv.ParseFloat(val, 64); err == nil {
				over.EmptyRatio = &f
			}
		case "SENT_NUM":
			over.SentNum, err = strconv.Atoi(val)
		case "M":
			over.M, err = strconv.Atoi(val)
		case "SEED":
			var s int64
			if s, err = strconv.ParseInt(val, 10, 64); err == nil {
				over.Seed = &s
			}
		case "SEED_POLICY":
			over.SeedPolicy = val
		case "DECODING_FORMAT":
			over.DecodingFormat = val
		case "CONCURRENCY":
			over.Concurrency, err = strconv.Atoi(val)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "METRICS_FILE":
			over.MetricsFile = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_PARSER":
			over.Components.Parser = val
		case "COMPONENTS_ENCODER":
			over.Components.Encoder = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader = json.RawMessage(val)
		case "OPTIONS_PARSER_JSON":
			over.Options.Parser = json.RawMessage(val)
		case "OPTIONS_ENCODER_JSON":
			over.Options.Encoder = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		}
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s%s: %v", contract.ErrConfig, EnvPrefix, key, err)
		}
	}
	return over, nil
}

func setStr(dst *string, v string) {
	if t := strings.TrimSpace(v); t != "" {
		*dst = t
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
