package testdata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "e2h/internal/config"
	"e2h/internal/pipeline"
	"e2h/internal/serialize"
	"e2h/pkg/contract"
	wbolt "e2h/plugins/writer/bolt"
)

func baseConfig(outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Data = cfgpkg.Data{
		TrainFile:      filepath.Join("uie", "train.json"),
		ValidationFile: filepath.Join("uie", "val.json"),
		TestFile:       filepath.Join("uie", "test.json"),
	}
	cfg.Logging.Level = "error"
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":true}`, outDir))
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) pipeline.Components {
	t.Helper()
	require.NoError(t, cfgpkg.Validate(cfg))
	comp, set, err := cfgpkg.Assemble(cfg)
	require.NoError(t, err)
	require.NoError(t, pipeline.Run(context.Background(), comp, set, nil))
	return comp
}

func readRows(t *testing.T, path string) []contract.Row {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []contract.Row
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		var r contract.Row
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

// easy 阶段：每个输出行的目标串都可按定界语法解析，且 empty 与目标串一致
func TestE2EEasy(t *testing.T) {
	out := t.TempDir()
	runPipeline(t, baseConfig(out))
	m := contract.BaseStructureMarker()
	for _, sp := range contract.Splits {
		rows := readRows(t, filepath.Join(out, string(sp)+".json"))
		require.NotEmpty(t, rows, string(sp))
		for _, r := range rows {
			require.NotNil(t, r.Empty)
			_, err := serialize.Parse(m, r.Record.Record)
			require.NoError(t, err, r.Record.Record)
			assert.Equal(t, *r.Empty, serialize.IsEmpty(m, r.Record.Record))
		}
	}
}

// hard 阶段：train 为合成样本，其余分区原样
func TestE2EHard(t *testing.T) {
	out := t.TempDir()
	cfg := baseConfig(out)
	cfg.Stage = "hard"
	cfg.SentNum = 3
	cfg.M = 2
	runPipeline(t, cfg)

	train := readRows(t, filepath.Join(out, "train.json"))
	// (n=2 + n=3) × M=2 × 2 个种子
	require.Len(t, train, 8)
	for _, r := range train {
		assert.Equal(t, contract.SkillMain, r.Skill)
		assert.Nil(t, r.Empty)
	}
	assert.Len(t, readRows(t, filepath.Join(out, "test.json")), 2)
}

// columns 编码 + bolt 存储
func TestE2EColumnsBolt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "e2h.db")
	cfg := baseConfig("")
	cfg.Stage = "main"
	cfg.Components.Encoder = "columns"
	cfg.Components.Writer = "bolt"
	cfg.Options.Encoder = nil
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"path":%q}`, dbPath))
	comp := runPipeline(t, cfg)

	store, ok := comp.Writer.(*wbolt.Store)
	require.True(t, ok)
	defer store.Close()
	var doc struct {
		Split   string           `json:"split"`
		NumRows int              `json:"num_rows"`
		Columns contract.Columns `json:"columns"`
	}
	n := 0
	require.NoError(t, store.Rows("validation.columns.json", func(_ uint64, line []byte) error {
		n++
		return json.Unmarshal(line, &doc)
	}))
	assert.Equal(t, 1, n, "列式文档为单行")
	assert.Equal(t, "validation", doc.Split)
	assert.Equal(t, 2, doc.NumRows)
	assert.Equal(t, []contract.Skill{contract.SkillMain, contract.SkillMain}, doc.Columns.Skill)
}

// 相同种子两次运行产物逐字节一致
func TestE2EDeterministic(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	runPipeline(t, baseConfig(a))
	runPipeline(t, baseConfig(b))
	for _, sp := range contract.Splits {
		x, err := os.ReadFile(filepath.Join(a, string(sp)+".json"))
		require.NoError(t, err)
		y, err := os.ReadFile(filepath.Join(b, string(sp)+".json"))
		require.NoError(t, err)
		assert.Equal(t, x, y, string(sp))
	}
}
