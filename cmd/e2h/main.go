package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "e2h/internal/config"
	"e2h/internal/diag"
	"e2h/internal/pipeline"
	"e2h/internal/stats"
)

var (
	pipelineRun   = pipeline.Run
	pipelineStats = pipeline.Stats
	stdout        io.Writer = os.Stdout
)

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码，由 run 统一翻译。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(err error) error  { return &exitError{code: exitConfig, err: err} }
func runtimeErr(err error) error { return &exitError{code: exitRuntime, err: err} }

// flags 收集全部命令行覆盖项；仅 Changed 的旗标参与合并。
type flags struct {
	config   string
	status   bool
	logLevel string

	train, validation, test, schema string
	stage                           string
	skills                          []string
	emptyRatio                      float64
	sentNum, m                      int
	seed                            int64
	seedPolicy                      string
	concurrency                     int
	metricsFile                     string
	output                          string

	processed bool
	format    string

	yaml bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	root := newRootCmd(&flags{})
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra 自身的用法错误（未知旗标/参数）
	fprintf(os.Stderr, "参数错误: %v\n", err)
	return exitConfig
}

func newRootCmd(f *flags) *cobra.Command {
	root := &cobra.Command{
		Use:           "e2h",
		Short:         "将 UIE 标注数据转换为课程式（easy → hard → main）训练集",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", "", "配置文件路径（.json/.yaml）；缺省读取 ./config.json 或 ./config.yaml（若存在）")
	root.PersistentFlags().BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "日志等级 debug|info|warn|error（覆盖配置）")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "执行转换并写出三个分区",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return runPipeline(cmd, f) },
	}
	dataFlags(runCmd, f)
	runCmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "写出并发度（覆盖配置）")
	runCmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "导出 Prometheus 文本指标的路径")
	runCmd.Flags().StringVar(&f.output, "output", "", "fs writer 输出目录（覆盖 options.writer.output_dir）")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "统计各分区样本数与 text/record 长度分布",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return runStats(cmd, f) },
	}
	dataFlags(statsCmd, f)
	statsCmd.Flags().BoolVar(&f.processed, "processed", false, "统计转换之后的行（默认统计原始样本）")
	statsCmd.Flags().StringVar(&f.format, "format", "table", "输出格式 table|json|yaml")

	initCmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "生成默认配置与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return initConfig(dir, f.yaml)
		},
	}
	initCmd.Flags().BoolVar(&f.yaml, "yaml", false, "生成 config.yaml 而非 config.json")

	root.AddCommand(runCmd, statsCmd, initCmd)
	return root
}

func dataFlags(cmd *cobra.Command, f *flags) {
	fs := cmd.Flags()
	fs.StringVar(&f.train, "train", "", "train 分区路径（文件/目录/-）")
	fs.StringVar(&f.validation, "validation", "", "validation 分区路径")
	fs.StringVar(&f.test, "test", "", "test 分区路径")
	fs.StringVar(&f.schema, "schema", "", "relation.schema 路径（缺省位于 test 同目录）")
	fs.StringVar(&f.stage, "stage", "", "easy|hard|main")
	fs.StringSliceVar(&f.skills, "skills", nil, "easy 阶段的 skill 子集（逗号分隔）")
	fs.Float64Var(&f.emptyRatio, "empty-ratio", 0, "每族空样本比例上限 [0,1)")
	fs.IntVar(&f.sentNum, "sent-num", 0, "hard 阶段合成的最大句数")
	fs.IntVar(&f.m, "m", 0, "每个句数的合成轮数")
	fs.Int64Var(&f.seed, "seed", 0, "随机种子")
	fs.StringVar(&f.seedPolicy, "seed-policy", "", "keep|skip")
}

// resolveConfig: Defaults < 文件 < ENV < CLI，随后校验。
func resolveConfig(cmd *cobra.Command, f *flags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	base, ok, err := loadConfigSource(f.config)
	if err != nil {
		return cfg, fmt.Errorf("配置解析失败: %w", err)
	}
	if ok {
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, fmt.Errorf("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)
	cfg = cfgpkg.Merge(cfg, cliOverlay(cmd, f))
	if f.output != "" {
		raw, err := withOutputDir(cfg.Options.Writer, f.output)
		if err != nil {
			return cfg, err
		}
		cfg.Options.Writer = raw
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		_ = dumpConfig(cfg)
		return cfg, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

// loadConfigSource: --config > E2H_CONFIG_JSON > E2H_CONFIG_FILE > ./config.json > ./config.yaml。
func loadConfigSource(path string) (cfgpkg.Config, bool, error) {
	if path == "" {
		if s := os.Getenv("E2H_CONFIG_JSON"); s != "" {
			c, err := cfgpkg.LoadJSON("", []byte(s))
			return c, true, err
		}
		path = os.Getenv("E2H_CONFIG_FILE")
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		return cfgpkg.Config{}, false, nil
	}
	c, err := cfgpkg.LoadFile(path)
	return c, true, err
}

func cliOverlay(cmd *cobra.Command, f *flags) cfgpkg.Config {
	var over cfgpkg.Config
	fs := cmd.Flags()
	over.Data.TrainFile = f.train
	over.Data.ValidationFile = f.validation
	over.Data.TestFile = f.test
	over.Data.SchemaFile = f.schema
	over.Stage = f.stage
	over.Skills = f.skills
	if fs.Changed("empty-ratio") {
		v := f.emptyRatio
		over.EmptyRatio = &v
	}
	over.SentNum = f.sentNum
	over.M = f.m
	if fs.Changed("seed") {
		v := f.seed
		over.Seed = &v
	}
	over.SeedPolicy = f.seedPolicy
	over.Concurrency = f.concurrency
	over.MetricsFile = f.metricsFile
	over.Logging.Level = f.logLevel
	return over
}

// withOutputDir 在现有 writer options 上替换 output_dir；其余键保持不变。
func withOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("options.writer: %w", err)
		}
	}
	m["output_dir"] = dir
	return json.Marshal(m)
}

func runPipeline(cmd *cobra.Command, f *flags) error {
	start := time.Now()
	corrID := uuid.NewString()
	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		fprintf(os.Stderr, "%v\n", err)
		return configErr(err)
	}
	logger := diag.NewLogger(corrID, cfg.Logging.Level)
	defer logger.Close()

	// 预检：若使用文件系统 Writer，检查输出目录的可写性
	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return configErr(err)
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "first error", &start)
		return configErr(err)
	}
	defer closeWriter(comp, logger)

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	diag.SetTerminal(diag.NewTerminal(os.Stderr, f.status))
	defer diag.SetTerminal(nil)

	logger.Debug("config", "effective", "", map[string]string{
		"stage":       cfg.Stage,
		"skills":      strings.Join(cfg.Skills, ","),
		"empty_ratio": fmt.Sprint(*cfg.EmptyRatio),
		"sent_num":    fmt.Sprint(cfg.SentNum),
		"m":           fmt.Sprint(cfg.M),
		"seed":        fmt.Sprint(*cfg.Seed),
		"seed_policy": cfg.SeedPolicy,
		"schema":      set.SchemaFile,
		"reader":      cfg.Components.Reader,
		"parser":      cfg.Components.Parser,
		"encoder":     cfg.Components.Encoder,
		"writer":      cfg.Components.Writer,
	})

	ctx, stop := signalContext()
	defer stop()
	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return runtimeErr(err)
	}
	t.Finish("run", 0)
	diag.IncOp("pipeline", "finish", "success")
	return nil
}

func runStats(cmd *cobra.Command, f *flags) error {
	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		fprintf(os.Stderr, "%v\n", err)
		return configErr(err)
	}
	switch f.format {
	case "table", "json", "yaml":
	default:
		err := fmt.Errorf("unknown format %q", f.format)
		fprintf(os.Stderr, "%v\n", err)
		return configErr(err)
	}
	logger := diag.NewLogger(uuid.NewString(), cfg.Logging.Level)
	defer logger.Close()
	// stats 不落盘，Writer 不参与
	cfg.Components.Writer = "fs"
	cfg.Options.Writer = json.RawMessage(`{"output_dir":"."}`)
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		return configErr(err)
	}
	ctx, stop := signalContext()
	defer stop()
	rows, err := pipelineStats(ctx, comp, set, f.processed, logger)
	if err != nil {
		fprintf(os.Stderr, "统计失败: %v\n", err)
		return runtimeErr(err)
	}
	if err := writeStats(stdout, f.format, rows); err != nil {
		return runtimeErr(err)
	}
	return nil
}

func writeStats(w io.Writer, format string, rows []stats.Split) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rows)
	default:
		return stats.WriteTable(w, rows)
	}
}

func initConfig(dir string, asYAML bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return configErr(err)
	}
	cfg := cfgpkg.DefaultTemplateConfig()
	name := "config.json"
	if asYAML {
		name = "config.yaml"
	}
	if err := writeConfig(filepath.Join(dir, name), cfg); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return configErr(err)
	}
	// 生成 .env 模板（不覆盖已存在文件）。
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func closeWriter(comp pipeline.Components, logger *diag.Logger) {
	if c, ok := comp.Writer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("writer", "close failed", map[string]string{"err": err.Error()})
		}
	}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

// writeConfig 按扩展名写出 JSON 或 YAML；"-" 写到 stdout；不覆盖已存在文件。
func writeConfig(path string, c cfgpkg.Config) error {
	var b []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(c)
	default:
		b, err = json.MarshalIndent(c, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = stdout.Write(b)
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "。
// - 仅按首个 '=' 分割；若 value 被成对的单/双引号包裹，则去除外层引号；双引号内处理 \n/\t/\\/\"。
// - 不覆盖已存在的环境变量。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# e2h .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值；空值表示未设置。\n\n")
	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString(cfgpkg.EnvPrefix + "CONFIG_FILE=\n")
	b.WriteString(cfgpkg.EnvPrefix + "CONFIG_JSON=\n\n")
	sections := []struct {
		title string
		keys  []string
	}{
		{"数据", []string{"TRAIN_FILE", "VALIDATION_FILE", "TEST_FILE", "SCHEMA_FILE", "MAX_TRAIN_SAMPLES", "MAX_VAL_SAMPLES", "MAX_TEST_SAMPLES"}},
		{"运行参数", []string{"STAGE", "SKILLS", "EMPTY_RATIO", "SENT_NUM", "M", "SEED", "SEED_POLICY", "DECODING_FORMAT", "CONCURRENCY", "LOG_LEVEL", "METRICS_FILE"}},
		{"组件选择", []string{"COMPONENTS_READER", "COMPONENTS_PARSER", "COMPONENTS_ENCODER", "COMPONENTS_WRITER"}},
		{"组件 Options（原样 JSON）", []string{"OPTIONS_READER_JSON", "OPTIONS_PARSER_JSON", "OPTIONS_ENCODER_JSON", "OPTIONS_WRITER_JSON"}},
	}
	for _, s := range sections {
		b.WriteString("# " + s.title + "\n")
		for _, k := range s.keys {
			b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
		}
		b.WriteString("\n")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 启动前检查输出位置的可写性。
// fs writer 检查 output_dir；bolt writer 检查数据库文件所在目录；其他 writer 跳过。
// 目录存在时尝试创建并删除临时文件；不存在时检查父目录。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	var wopts struct {
		OutputDir string `json:"output_dir"`
		Path      string `json:"path"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	var dir string
	switch strings.TrimSpace(cfg.Components.Writer) {
	case "", "fs":
		dir = strings.TrimSpace(wopts.OutputDir)
	case "bolt":
		if p := strings.TrimSpace(wopts.Path); p != "" {
			dir = filepath.Dir(p)
		}
	}
	if dir == "" {
		// 未指定时无法可靠检查，让装配阶段按实现自行报错
		return nil
	}
	if st, err := os.Stat(dir); err == nil {
		if !st.IsDir() {
			return fmt.Errorf("路径存在但不是目录: %s", dir)
		}
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	} else if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		if os.IsNotExist(err) {
			// 多级缺失目录由 writer 递归创建
			return nil
		}
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	return os.RemoveAll(tmpd)
}
