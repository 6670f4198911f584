package pipeline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"e2h/internal/assemble"
	"e2h/internal/balance"
	"e2h/internal/curriculum"
	"e2h/internal/diag"
	"e2h/internal/schema"
	"e2h/internal/skill"
	"e2h/internal/stats"
	"e2h/pkg/contract"
)

// - 确定性：变换阶段单协程，唯一的 *rand.Rand 按 train、validation、test 顺序消费；
// - 并发仅用于写出：编码完成后三个分区的工件并发落盘，受 Concurrency 限制；
// - 首错返回：任一分区失败即取消其余写出。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader  contract.Reader
	Parser  contract.Parser
	Encoder contract.Encoder
	Writer  contract.Writer
}

// Settings 运行期配置（均已通过 config 校验）。
type Settings struct {
	// Files: 各分区输入路径（文件、分片目录或 "-"）。
	Files map[contract.Split]string
	// SchemaFile: relation.schema 路径；仅 easy 阶段读取。
	SchemaFile string
	Marker     contract.StructureMarker
	Stage      assemble.Stage
	Skills     []contract.Skill
	EmptyRatio float64
	SentNum    int
	// Repeats: 每个 n 的合成轮数（配置项 m）。
	Repeats    int
	Seed       int64
	SeedPolicy curriculum.SeedPolicy
	MaxSamples map[contract.Split]int
	// Concurrency: 写出并发度；<=0 视为 1。
	Concurrency int
	// MetricsFile: 非空时在结束后导出 Prometheus 文本格式指标。
	MetricsFile string
}

// Run 执行完整流程：Reader → Parser → (schema) → assemble.Process → Encoder → Writer。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (err error) {
	if err := sanity(comp, true); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	t0 := time.Now()
	term := diag.GetTerminal()
	term.RunStart(string(set.Stage), set.Seed)
	defer func() {
		term.RunFinish(err == nil, time.Since(t0))
		if merr := diag.WriteMetrics(set.MetricsFile); merr != nil {
			logger.Warn("metrics", "write metrics failed", map[string]string{"path": set.MetricsFile, "err": merr.Error()})
		}
	}()

	ds, err := LoadDataset(ctx, comp, set, logger)
	if err != nil {
		return err
	}

	opts, err := set.assembleOptions(logger)
	if err != nil {
		return err
	}
	opts.Observe = func(sp contract.Split, s contract.Skill, r balance.Result) {
		diag.ObserveSkill(string(sp), string(s), len(r.Kept), r.Empty, r.Dropped)
		logger.Skill(string(sp), string(s), len(r.Kept), r.Empty, r.Dropped)
	}

	at := logger.StartWithKV("assemble", "process", "", map[string]string{"stage": string(set.Stage)})
	out, err := assemble.Process(rand.New(rand.NewSource(set.Seed)), ds, opts)
	if err != nil {
		report(logger, "assemble", "", "process failed", err, at)
		return fmt.Errorf("assemble: %w", err)
	}
	at.Finish("process", int64(totalRows(out)))
	diag.IncOp("assemble", "finish", "success")

	// 编码按固定顺序串行，写出并发
	encoded := make(map[contract.Split]io.Reader, len(contract.Splits))
	for _, sp := range contract.Splits {
		splitT0 := time.Now()
		term.SplitStart(string(sp), set.Files[sp], len(ds[sp]))
		cols := out[sp]
		et := logger.StartSplit("encoder", "encode", string(sp))
		r, err := comp.Encoder.Encode(ctx, sp, cols)
		if err != nil {
			term.SplitFinish(false, cols.Len(), time.Since(splitT0))
			report(logger, "encoder", string(sp), "encode failed", err, et)
			return fmt.Errorf("encoder %s: %w", sp, err)
		}
		et.Finish("encode", int64(cols.Len()))
		diag.IncOp("encoder", "finish", "success")
		encoded[sp] = r
		term.SplitFinish(true, cols.Len(), time.Since(splitT0))
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := set.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, sp := range contract.Splits {
		sp := sp
		id := contract.ArtifactID(string(sp) + comp.Encoder.Ext())
		g.Go(func() error {
			wt := logger.StartWithKV("writer", "write", string(sp), map[string]string{"artifact": string(id)})
			if err := comp.Writer.Write(gctx, id, encoded[sp]); err != nil {
				report(logger, "writer", string(sp), "write failed", err, wt)
				return fmt.Errorf("writer %s: %w", id, err)
			}
			wt.Finish("write", int64(out[sp].Len()))
			diag.IncOp("writer", "finish", "success")
			return nil
		})
	}
	return g.Wait()
}

// LoadDataset 依次读取三个分区；目录分片按 Reader 的遍历顺序拼接。
func LoadDataset(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Dataset, error) {
	if err := sanity(comp, false); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	ds := make(contract.Dataset, len(contract.Splits))
	for _, sp := range contract.Splits {
		path := set.Files[sp]
		rt := logger.StartWithKV("reader", "read", string(sp), map[string]string{"path": path})
		var recs []contract.Record
		err := comp.Reader.Open(ctx, path, func(fid contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			part, err := comp.Parser.Parse(ctx, fid, rc)
			if err != nil {
				return fmt.Errorf("parser: %w", err)
			}
			logger.Debug("parser", "shard parsed", string(sp), map[string]string{"file": string(fid), "records": fmt.Sprint(len(part))})
			recs = append(recs, part...)
			return nil
		})
		if err != nil {
			report(logger, "reader", string(sp), "read failed", err, rt)
			return nil, fmt.Errorf("%s: %w", sp, err)
		}
		rt.Finish("read", int64(len(recs)))
		diag.IncOp("reader", "finish", "success")
		ds[sp] = recs
	}
	return ds, nil
}

// Stats 统计各分区的长度分布。processed 为 true 时统计 assemble 之后的行，否则统计原始样本。
func Stats(ctx context.Context, comp Components, set Settings, processed bool, logger *diag.Logger) ([]stats.Split, error) {
	ds, err := LoadDataset(ctx, comp, set, logger)
	if err != nil {
		return nil, err
	}
	out := make([]stats.Split, 0, len(contract.Splits))
	if !processed {
		for _, sp := range contract.Splits {
			out = append(out, stats.CountRecords(set.Marker, sp, ds[sp]))
		}
		return out, nil
	}
	opts, err := set.assembleOptions(logger)
	if err != nil {
		return nil, err
	}
	res, err := assemble.Process(rand.New(rand.NewSource(set.Seed)), ds, opts)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	for _, sp := range contract.Splits {
		out = append(out, stats.Count(set.Marker, sp, res[sp]))
	}
	return out, nil
}

// assembleOptions 将 Settings 映射为 assemble.Options；easy 阶段读取 schema 构造分解器。
func (s Settings) assembleOptions(logger *diag.Logger) (assemble.Options, error) {
	opts := assemble.Options{
		Marker:     s.Marker,
		Stage:      s.Stage,
		Skills:     s.Skills,
		EmptyRatio: s.EmptyRatio,
		SentNum:    s.SentNum,
		Repeats:    s.Repeats,
		SeedPolicy: s.SeedPolicy,
		MaxSamples: s.MaxSamples,
	}
	if s.Stage != assemble.StageEasy {
		return opts, nil
	}
	st := logger.Start("schema", "read")
	sch, err := schema.Read(s.SchemaFile)
	if err != nil {
		report(logger, "schema", "", "read failed", err, st)
		return opts, fmt.Errorf("schema: %w", err)
	}
	st.Finish("read", int64(len(sch.Types)))
	opts.Decomposer = skill.New(s.Marker, sch.Types)
	return opts, nil
}

// report: 统一的失败记录（日志 + 计数）。
func report(logger *diag.Logger, comp, split, msg string, err error, t *diag.Timer) {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), msg, t.Since(), split, map[string]string{"err": err.Error()})
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func totalRows(out assemble.Output) int {
	n := 0
	for _, c := range out {
		n += c.Len()
	}
	return n
}

func sanity(c Components, withOutput bool) error {
	if c.Reader == nil || c.Parser == nil {
		return fmt.Errorf("%w: reader/parser required", contract.ErrConfig)
	}
	if withOutput && (c.Encoder == nil || c.Writer == nil) {
		return fmt.Errorf("%w: encoder/writer required", contract.ErrConfig)
	}
	return nil
}
