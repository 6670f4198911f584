// Package assemble 按 stage 编排分解、平衡与合成，产出三个分区的列式数据。
package assemble

import (
	"errors"
	"fmt"
	"math/rand"

	"e2h/internal/balance"
	"e2h/internal/curriculum"
	"e2h/internal/skill"
	"e2h/pkg/contract"
)

// Stage: 课程阶段。
type Stage string

const (
	StageEasy Stage = "easy"
	StageHard Stage = "hard"
	StageMain Stage = "main"
)

// Options 汇总一次处理所需的只读参数。
type Options struct {
	Marker     contract.StructureMarker
	Decomposer *skill.Decomposer
	Stage      Stage
	Skills     []contract.Skill
	EmptyRatio float64
	SentNum    int
	Repeats    int
	SeedPolicy curriculum.SeedPolicy
	// MaxSamples 按分区截取前 N 行；缺省或 0 表示不限。
	MaxSamples map[contract.Split]int
	// Observe 可选；每个被平衡的 skill 族回调一次。
	Observe func(split contract.Split, s contract.Skill, r balance.Result)
}

// Output: 三个分区的处理结果。
type Output map[contract.Split]contract.Columns

func (o Options) selected(s contract.Skill) bool {
	for _, x := range o.Skills {
		if x == s {
			return true
		}
	}
	return false
}

// Decompose 分解整个分区：四族派生实例各自平衡后，按 first..fourth 的固定顺序
// 拼接入选族，再转为列式存储。入选族为空或拼接结果为空时报错。
func Decompose(rng *rand.Rand, split contract.Split, records []contract.Record, opts Options) (contract.Columns, error) {
	if opts.Decomposer == nil {
		return contract.Columns{}, fmt.Errorf("%w: decomposer not set", contract.ErrConfig)
	}
	var fam skill.Families
	for i, rec := range records {
		f, err := opts.Decomposer.Decompose(rec)
		if err != nil {
			return contract.Columns{}, fmt.Errorf("%s record %d: %w", split, i, err)
		}
		fam.Add(f)
	}
	var rows []contract.Row
	for _, s := range contract.Skills {
		if !opts.selected(s) {
			continue
		}
		res, err := balance.Balance(rng, s, fam.Get(s), opts.EmptyRatio)
		if err != nil {
			return contract.Columns{}, fmt.Errorf("%s: %w", split, err)
		}
		if opts.Observe != nil {
			opts.Observe(split, s, res)
		}
		for _, in := range res.Kept {
			rows = append(rows, in.Row())
		}
	}
	cols, err := contract.ToColumns(rows)
	if err != nil {
		return contract.Columns{}, fmt.Errorf("%s: %w", split, err)
	}
	return cols, nil
}

// TagMain 将样本原样标记为 main 任务行（不带 empty 列）。
func TagMain(records []contract.Record) []contract.Row {
	view := contract.MainView{}
	rows := make([]contract.Row, len(records))
	for i, rec := range records {
		rows[i] = contract.Row{Record: rec.Clone(), Skill: view.Skill(), SkillInput: view.Input()}
	}
	return rows
}

// Process 按 stage 处理三个分区，随机数按 train、validation、test 的顺序消费。
//   - easy: 每个分区都做技能分解；
//   - hard: train 替换为 n = 2..SentNum 的合成样本，随后全部标记为 main；
//   - main: 全部标记为 main。
//
// main 行允许为空分区（得到零行列存储）；easy 下空结果直接报错。
func Process(rng *rand.Rand, ds contract.Dataset, opts Options) (Output, error) {
	for _, s := range opts.Skills {
		if !isSkill(s) {
			return nil, fmt.Errorf("%w: unknown skill %q", contract.ErrConfig, s)
		}
	}
	out := make(Output, len(contract.Splits))
	switch opts.Stage {
	case StageEasy:
		for _, sp := range contract.Splits {
			cols, err := Decompose(rng, sp, ds[sp], opts)
			if err != nil {
				return nil, err
			}
			out[sp] = cols.Head(opts.MaxSamples[sp])
		}
	case StageHard, StageMain:
		src := ds
		if opts.Stage == StageHard && opts.SentNum >= 2 {
			hard, err := curriculum.BuildHardRange(rng, opts.Marker, ds[contract.SplitTrain], opts.SentNum, opts.Repeats, opts.SeedPolicy)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", contract.SplitTrain, err)
			}
			src = make(contract.Dataset, len(ds))
			for k, v := range ds {
				src[k] = v
			}
			src[contract.SplitTrain] = hard
		}
		for _, sp := range contract.Splits {
			cols, err := contract.ToColumns(TagMain(src[sp]))
			if err != nil && !errors.Is(err, contract.ErrEmptyColumns) {
				return nil, fmt.Errorf("%s: %w", sp, err)
			}
			out[sp] = cols.Head(opts.MaxSamples[sp])
		}
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", contract.ErrConfig, opts.Stage)
	}
	return out, nil
}

func isSkill(s contract.Skill) bool {
	for _, x := range contract.Skills {
		if x == s {
			return true
		}
	}
	return false
}
