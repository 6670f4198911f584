package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// lineSink 接收一行已编码的事件（不含换行）。
type lineSink interface {
	WriteLine(b []byte) error
}

// writerSink 适配任意 io.Writer（测试与 --log-stderr 使用）。
type writerSink struct{ w io.Writer }

func (s writerSink) WriteLine(b []byte) error {
	_, err := s.w.Write(append(b, '\n'))
	return err
}

// Logger 为最小结构化日志器：单行 JSON，默认写入轮转文件，失败时回退 stderr。
type Logger struct {
	corrID string
	level  Level
	sink   lineSink
	mu     sync.Mutex
}

// DefaultLogDir 为默认日志目录。
const DefaultLogDir = "logs"

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/e2h-current.txt，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return &Logger{corrID: corrID, level: parseLevel(level), sink: NewRotatingFile(DefaultLogDir, 10*1024*1024)}
}

// NewLoggerTo 将日志写入 w。
func NewLoggerTo(corrID, level string, w io.Writer) *Logger {
	return &Logger{corrID: corrID, level: parseLevel(level), sink: writerSink{w: w}}
}

// CorrID 返回本进程相关性 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Close 释放文件句柄（若使用轮转文件）。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// Event 为标准事件结构。
type Event struct {
	Level  string            `json:"level"`
	TS     string            `json:"ts"`
	CorrID string            `json:"corr_id"`
	Comp   string            `json:"comp"`
	Stage  string            `json:"stage"` // start|finish|error|event
	Code   string            `json:"code,omitempty"`
	DurMS  int64             `json:"dur_ms,omitempty"`
	Count  int64             `json:"count,omitempty"`
	Split  string            `json:"split,omitempty"`
	Skill  string            `json:"skill,omitempty"`
	Msg    string            `json:"msg"`
	KV     map[string]string `json:"kv,omitempty"`
}

func (l *Logger) log(lv Level, ev Event) {
	if l == nil || lv < l.level {
		return
	}
	ev.Level = lv.String()
	ev.TS = NowUTC()
	ev.CorrID = l.corrID
	b, _ := json.Marshal(ev)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sink == nil {
		_, _ = os.Stderr.Write(append(b, '\n'))
		return
	}
	if err := l.sink.WriteLine(b); err != nil {
		fmt.Fprintf(os.Stderr, "logger sink error: %v\n", err)
		_, _ = os.Stderr.Write(append(b, '\n'))
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWithKV(comp, msg, "", nil)
}

// StartSplit 记录带 split 的 start。
func (l *Logger) StartSplit(comp, msg, split string) *Timer {
	return l.StartWithKV(comp, msg, split, nil)
}

// StartWithKV 记录带 split 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, split string, kv map[string]string) *Timer {
	l.log(Info, Event{Comp: comp, Stage: "start", Split: split, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, split: split, t0: time.Now()}
}

// Info 记录一次性事件。
func (l *Logger) Info(comp, msg string, kv map[string]string) {
	l.log(Info, Event{Comp: comp, Stage: "event", Msg: msg, KV: kv})
}

// Warn 记录告警事件。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(Warn, Event{Comp: comp, Stage: "event", Msg: msg, KV: kv})
}

// Skill 记录一次 skill 族平衡（kept/empty/dropped 进 kv）。
func (l *Logger) Skill(split, skill string, kept, empty, dropped int) {
	l.log(Info, Event{
		Comp: "balance", Stage: "event", Split: split, Skill: skill, Count: int64(kept), Msg: "skill balanced",
		KV: map[string]string{"empty": fmt.Sprint(empty), "dropped": fmt.Sprint(dropped)},
	})
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 split 与键值。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, split string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(Error, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Split: split, Msg: msg, KV: kv})
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, split string, kv map[string]string) {
	l.log(Debug, Event{Comp: comp, Stage: "event", Split: split, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	split string
	t0    time.Time
}

// Finish 记录 finish；可选 count。同时上报耗时指标。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	t.l.log(Info, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, Split: t.split, Msg: msg})
	ObserveDuration(t.comp, "finish", dur)
}

// Since 返回起点，便于 Error 计算耗时。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}
