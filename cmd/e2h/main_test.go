package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "e2h/internal/config"
	"e2h/internal/diag"
	"e2h/internal/pipeline"
	"e2h/internal/stats"
	"e2h/pkg/contract"
)

// sandbox 切换到临时目录并返回夹具的绝对路径。
func sandbox(t *testing.T) (dir, fixtures string) {
	t.Helper()
	fixtures, err := filepath.Abs("../../testdata/uie")
	require.NoError(t, err)
	dir = t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir, fixtures
}

func writeJSONConfig(t *testing.T, path string, mut func(c *cfgpkg.Config), fixtures string) {
	t.Helper()
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Data.TrainFile = filepath.Join(fixtures, "train.json")
	cfg.Data.ValidationFile = filepath.Join(fixtures, "val.json")
	cfg.Data.TestFile = filepath.Join(fixtures, "test.json")
	cfg.Logging.Level = "error"
	if mut != nil {
		mut(&cfg)
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func stubRun(t *testing.T, ret error) *pipeline.Settings {
	t.Helper()
	got := &pipeline.Settings{}
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		*got = set
		return ret
	}
	t.Cleanup(func() { pipelineRun = orig })
	return got
}

func TestRunInitConfig(t *testing.T) {
	dir, _ := sandbox(t)
	out := filepath.Join(dir, "out")
	require.Equal(t, exitOK, run([]string{"init-config", out}))
	assert.FileExists(t, filepath.Join(out, "config.json"))
	assert.FileExists(t, filepath.Join(out, ".env"))

	cfg, err := cfgpkg.LoadFile(filepath.Join(out, "config.json"))
	require.NoError(t, err)
	assert.NoError(t, cfgpkg.Validate(cfgpkg.Merge(cfgpkg.Defaults(), cfg)))

	// 已存在不覆盖
	assert.Equal(t, exitConfig, run([]string{"init-config", out}))
}

func TestRunInitConfigYAML(t *testing.T) {
	sandbox(t)
	require.Equal(t, exitOK, run([]string{"init-config", "--yaml"}))
	cfg, err := cfgpkg.LoadFile("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, cfgpkg.DefaultTemplateConfig().Data, cfg.Data)
	assert.JSONEq(t, string(cfgpkg.DefaultTemplateConfig().Options.Writer), string(cfg.Options.Writer))
}

func TestRunSuccess(t *testing.T) {
	_, fx := sandbox(t)
	writeJSONConfig(t, "config.json", nil, fx)
	got := stubRun(t, nil)

	code := run([]string{"run", "--status=false", "--seed", "0", "--empty-ratio", "0", "--stage", "hard", "--m", "3"})
	require.Equal(t, exitOK, code)
	assert.Equal(t, int64(0), got.Seed, "显式 0 种子覆盖默认 42")
	assert.Equal(t, 0.0, got.EmptyRatio)
	assert.Equal(t, "hard", string(got.Stage))
	assert.Equal(t, 3, got.Repeats)
	assert.Equal(t, filepath.Join(fx, "relation.schema"), got.SchemaFile)
}

func TestRunConfigSources(t *testing.T) {
	_, fx := sandbox(t)

	t.Run("E2H_CONFIG_JSON", func(t *testing.T) {
		writeJSONConfig(t, "inline.json", func(c *cfgpkg.Config) { c.SentNum = 4 }, fx)
		b, err := os.ReadFile("inline.json")
		require.NoError(t, err)
		t.Setenv("E2H_CONFIG_JSON", string(b))
		got := stubRun(t, nil)
		require.Equal(t, exitOK, run([]string{"run", "--status=false"}))
		assert.Equal(t, 4, got.SentNum)
	})
	t.Run("E2H_CONFIG_FILE 与 ENV 覆盖", func(t *testing.T) {
		writeJSONConfig(t, "file.json", nil, fx)
		t.Setenv("E2H_CONFIG_FILE", "file.json")
		t.Setenv("E2H_SEED_POLICY", "skip")
		got := stubRun(t, nil)
		require.Equal(t, exitOK, run([]string{"run", "--status=false"}))
		assert.Equal(t, "skip", string(got.SeedPolicy))
	})
	t.Run("--config 不存在", func(t *testing.T) {
		assert.Equal(t, exitConfig, run([]string{"run", "--status=false", "--config", "nope.json"}))
	})
}

func TestRunOutputFlag(t *testing.T) {
	dir, fx := sandbox(t)
	writeJSONConfig(t, "config.json", nil, fx)
	out := filepath.Join(dir, "custom")
	var root string
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) error {
		if r, ok := comp.Writer.(interface{ Root() string }); ok {
			root = r.Root()
		}
		return nil
	}
	t.Cleanup(func() { pipelineRun = orig })
	require.Equal(t, exitOK, run([]string{"run", "--status=false", "--output", out}))
	assert.Equal(t, out, root)
}

func TestRunExitCodes(t *testing.T) {
	_, fx := sandbox(t)

	t.Run("校验失败", func(t *testing.T) {
		writeJSONConfig(t, "bad.json", func(c *cfgpkg.Config) { c.DecodingFormat = "tree" }, fx)
		stubRun(t, nil)
		assert.Equal(t, exitConfig, run([]string{"run", "--status=false", "--config", "bad.json"}))
	})
	t.Run("装配失败", func(t *testing.T) {
		writeJSONConfig(t, "asm.json", func(c *cfgpkg.Config) { c.Options.Reader = json.RawMessage(`{"bogus":1}`) }, fx)
		stubRun(t, nil)
		assert.Equal(t, exitConfig, run([]string{"run", "--status=false", "--config", "asm.json"}))
	})
	t.Run("运行失败", func(t *testing.T) {
		writeJSONConfig(t, "ok.json", nil, fx)
		stubRun(t, fmt.Errorf("assemble: %w", contract.ErrEmptySkillFamily))
		assert.Equal(t, exitRuntime, run([]string{"run", "--status=false", "--config", "ok.json"}))
	})
	t.Run("取消", func(t *testing.T) {
		writeJSONConfig(t, "ok.json", nil, fx)
		stubRun(t, context.Canceled)
		assert.Equal(t, exitRuntime, run([]string{"run", "--status=false", "--config", "ok.json"}))
	})
	t.Run("未知旗标", func(t *testing.T) {
		assert.Equal(t, exitConfig, run([]string{"run", "--bogus"}))
	})
	t.Run("输出目录是文件", func(t *testing.T) {
		require.NoError(t, os.WriteFile("afile", []byte("x"), 0o644))
		writeJSONConfig(t, "ok.json", nil, fx)
		stubRun(t, nil)
		assert.Equal(t, exitConfig, run([]string{"run", "--status=false", "--config", "ok.json", "--output", "afile"}))
	})
}

func TestRunStats(t *testing.T) {
	_, fx := sandbox(t)
	writeJSONConfig(t, "config.json", nil, fx)
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })

	require.Equal(t, exitOK, run([]string{"stats", "--format", "json"}))
	var rows []stats.Split
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Count)

	buf.Reset()
	require.Equal(t, exitOK, run([]string{"stats", "--processed", "--format", "table"}))
	assert.Contains(t, buf.String(), "train")

	assert.Equal(t, exitConfig, run([]string{"stats", "--format", "xml"}))

	orig := pipelineStats
	pipelineStats = func(context.Context, pipeline.Components, pipeline.Settings, bool, *diag.Logger) ([]stats.Split, error) {
		return nil, errors.New("boom")
	}
	t.Cleanup(func() { pipelineStats = orig })
	assert.Equal(t, exitRuntime, run([]string{"stats"}))
}

func TestLoadDotEnv(t *testing.T) {
	sandbox(t)
	content := "# c\nexport E2H_T_A=1\nE2H_T_B=\"x\\ty\"\nE2H_T_C='raw\\n'\nE2H_T_KEEP=new\nnoeq\n"
	require.NoError(t, os.WriteFile(".env", []byte(content), 0o644))
	t.Setenv("E2H_T_KEEP", "old")
	for _, k := range []string{"E2H_T_A", "E2H_T_B", "E2H_T_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	require.NoError(t, loadDotEnv(".env"))
	assert.Equal(t, "1", os.Getenv("E2H_T_A"))
	assert.Equal(t, "x\ty", os.Getenv("E2H_T_B"))
	assert.Equal(t, `raw\n`, os.Getenv("E2H_T_C"))
	assert.Equal(t, "old", os.Getenv("E2H_T_KEEP"), "不覆盖已有环境变量")
	assert.NoError(t, loadDotEnv("missing.env"))
}

func TestPreflightCheckOutputDir(t *testing.T) {
	dir, _ := sandbox(t)
	cfg := cfgpkg.Defaults()
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, filepath.Join(dir, "new")))
	assert.NoError(t, preflightCheckOutputDir(cfg))

	cfg.Components.Writer = "bolt"
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"path":%q}`, filepath.Join(dir, "db", "x.db")))
	assert.NoError(t, preflightCheckOutputDir(cfg))
}
