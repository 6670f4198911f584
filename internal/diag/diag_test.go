package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2h/pkg/contract"
)

// 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	require.NoError(t, w.WriteLine([]byte("first line that is very long")))
	require.NoError(t, w.WriteLine([]byte("second")))
	require.NoError(t, w.Close())

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	var current, rotated bool
	for _, e := range ents {
		switch {
		case e.Name() == "e2h-current.txt":
			current = true
		case strings.HasPrefix(e.Name(), "e2h-") && strings.HasSuffix(e.Name(), ".txt"):
			rotated = true
		}
	}
	assert.True(t, current, "应存在当前文件")
	assert.True(t, rotated, "应存在轮转文件")

	b, err := os.ReadFile(w.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))
}

// 单行超过上限时不反复轮转空文件
func TestRotatingFileOversizedLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 4)
	require.NoError(t, w.WriteLine([]byte("0123456789")))
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ents, 1)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestRotatingFileRotateWithoutOpen(t *testing.T) {
	w := NewRotatingFile(t.TempDir(), 0)
	assert.Equal(t, int64(10*1024*1024), w.maxBytes)
	require.NoError(t, w.rotate())
	assert.NotNil(t, w.f)
	require.NoError(t, w.Close())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("train: %w: second", contract.ErrEmptySkillFamily), CodeEmpty},
		{contract.ErrEmptyColumns, CodeEmpty},
		{contract.ErrNoMergePartner, CodeSampling},
		{contract.ErrConfig, CodeConfig},
		{contract.ErrSchemaInvalid, CodeConfig},
		{contract.ErrGrammar, CodeInvariant},
		{contract.ErrInvalidInput, CodeInvariant},
		{contract.ErrPathInvalid, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}

func decodeEvents(t *testing.T, b []byte) []Event {
	t.Helper()
	var out []Event
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		out = append(out, ev)
	}
	return out
}

func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("corr-1", "debug", &buf)
	tm := l.StartSplit("assemble", "decompose", "train")
	tm.Finish("decomposed", 7)
	l.Skill("train", "fourth", 2, 3, 2)
	l.Warn("config", "seed policy skip", map[string]string{"k": "v"})
	l.ErrorWith("pipeline", string(CodeEmpty), "boom", tm.Since(), "validation", nil)
	l.Debug("parser", "line", "test", nil)

	evs := decodeEvents(t, buf.Bytes())
	require.Len(t, evs, 6)
	assert.Equal(t, "start", evs[0].Stage)
	assert.Equal(t, "train", evs[0].Split)
	assert.Equal(t, "corr-1", evs[0].CorrID)
	assert.Equal(t, "finish", evs[1].Stage)
	assert.Equal(t, int64(7), evs[1].Count)
	assert.Equal(t, "fourth", evs[2].Skill)
	assert.Equal(t, "2", evs[2].KV["dropped"])
	assert.Equal(t, "warn", evs[3].Level)
	assert.Equal(t, "error", evs[4].Level)
	assert.Equal(t, "empty", evs[4].Code)
	assert.Equal(t, "debug", evs[5].Level)
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("c", "warn", &buf)
	l.Info("x", "dropped", nil)
	l.Debug("x", "dropped", "", nil)
	l.Start("x", "dropped").Finish("dropped", 0)
	l.Warn("x", "kept", nil)
	l.Error("x", "code", "kept", nil)
	assert.Len(t, decodeEvents(t, buf.Bytes()), 2)

	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "info", Level(12345).String())
	assert.Equal(t, Info, parseLevel(" bogus "))
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Info("x", "y", nil)
	l.Error("x", "y", "z", nil)
	assert.Equal(t, "", l.CorrID())
	assert.NoError(t, l.Close())
	var tm *Timer
	tm.Finish("x", 0)
	assert.Nil(t, tm.Since())
	(&Timer{}).Finish("x", 0)
}

func TestLoggerNoSinkFallsBackToStderr(t *testing.T) {
	l := &Logger{corrID: "c", level: Info}
	l.Info("x", "stderr", nil)
}

func TestLoggerWithRotatingSink(t *testing.T) {
	dir := t.TempDir()
	l := &Logger{corrID: "c", level: Info, sink: NewRotatingFile(dir, 0)}
	l.Start("comp", "msg").Finish("ok", 1)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(filepath.Join(dir, "e2h-current.txt"))
	require.NoError(t, err)
	assert.Len(t, decodeEvents(t, b), 2)
}

func TestMetrics(t *testing.T) {
	IncOp("pipeline", "run", "success")
	IncOp("pipeline", "run", "success")
	IncError("pipeline", "empty")
	ObserveDuration("pipeline", "run", 12)
	ObserveSkill("train", "fourth", 2, 3, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(opTotal.WithLabelValues("pipeline", "run", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(errorTotal.WithLabelValues("pipeline", "empty")))
	assert.Equal(t, 2.0, testutil.ToFloat64(skillInstances.WithLabelValues("train", "fourth", "dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(skillInstances.WithLabelValues("train", "fourth", "empty")))

	path := filepath.Join(t.TempDir(), "sub", "e2h.prom")
	require.NoError(t, WriteMetrics(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "e2h_op_total")
	assert.Contains(t, string(b), `e2h_skill_instances{kind="kept",skill="fourth",split="train"} 2`)

	assert.NoError(t, WriteMetrics(""))
}

func TestTerminalNonTTY(t *testing.T) {
	var sb strings.Builder
	tm := NewTerminal(&sb, true)
	require.False(t, tm.isTTY)
	tm.RunStart("easy", 42)
	tm.SplitStart("train", "/data/uie/train.json", 12)
	tm.SplitProgress("decompose", 6, 12) // 非 TTY 不输出
	tm.SplitFinish(true, 40, 5100*time.Millisecond)
	tm.RunFinish(true, 41300*time.Millisecond)

	out := sb.String()
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "[run] stage=easy | seed=42")
	assert.Contains(t, out, "[split] train | train.json | 样本=12")
	assert.Contains(t, out, "[done] train | 样本 12 → 行 40 | 用时 5.1s")
	assert.Contains(t, out, "[ok] 全部完成 | 分区 1 | 总用时 41.3s")
}

func TestTerminalTTYThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	tm := NewTerminal(&sb, true)
	tm.isTTY = true
	tm.RunStart("hard", 1)
	tm.SplitStart("train", "train.json", 3)

	tm.SplitProgress("compose", 1, 3)
	first := sb.String()
	assert.Contains(t, first, "\r[split] train | compose 1/3")
	tm.SplitProgress("compose", 2, 3)
	assert.Equal(t, first, sb.String(), "100ms 内应被节流")

	tm.SplitFinish(false, 0, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	require.True(t, idx > 0)
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	require.True(t, cr >= 0)
	assert.Contains(t, seg[cr+1:], " ")
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	tm := NewTerminal(&flakyWriter{fail: true}, true)
	tm.isTTY = false
	tm.RunStart("easy", 1)
	assert.False(t, tm.enabled)
	tm.SplitStart("a", "a", 0)
	tm.SplitProgress("x", 0, 0)
	tm.SplitFinish(true, 0, 0)
	tm.RunFinish(true, 0)
}

func TestTerminalNilAndGlobal(t *testing.T) {
	var tn *Terminal
	tn.RunStart("x", 0)
	tn.SplitStart("a", "b", 1)
	tn.SplitProgress("p", 0, 0)
	tn.SplitFinish(true, 0, 0)
	tn.RunFinish(true, 0)

	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
	SetTerminal(NewTerminal(os.Stderr, false))
	assert.NotNil(t, GetTerminal())
	SetTerminal(nil)
}

func TestTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	assert.False(t, NewTerminal(os.Stderr, true).isTTY)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "", shortenBase("x", 0))
	assert.Equal(t, "abcd…", shortenBase("/x/y/abcdefghij.json", 5))
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
	assert.NotEmpty(t, NowUTC())
}
