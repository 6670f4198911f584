// Package balance 对单个 skill 族做空样本下采样。
package balance

import (
	"fmt"
	"math/rand"

	"e2h/pkg/contract"
)

// Result 记录一次下采样的前后规模。
type Result struct {
	Kept    []contract.Instance
	Empty   int // 输入中的空样本数
	Dropped int // 被丢弃的空样本数
}

// Balance 将空样本比例压到 ratio 以内（0 <= ratio < 1）。
// 比例超限时打乱空样本并截断为 floor(|non_empty|*ratio/(1-ratio))，输出为 non_empty 后接保留的空样本；
// 否则原样返回。空族返回 ErrEmptySkillFamily。
func Balance(rng *rand.Rand, skill contract.Skill, items []contract.Instance, ratio float64) (Result, error) {
	if ratio < 0 || ratio >= 1 {
		return Result{}, fmt.Errorf("%w: empty_ratio %v out of [0,1)", contract.ErrInvalidInput, ratio)
	}
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: %s", contract.ErrEmptySkillFamily, skill)
	}
	var empty, nonEmpty []contract.Instance
	for _, in := range items {
		if in.Empty {
			empty = append(empty, in)
		} else {
			nonEmpty = append(nonEmpty, in)
		}
	}
	if float64(len(empty))/float64(len(items)) <= ratio {
		return Result{Kept: items, Empty: len(empty)}, nil
	}
	rng.Shuffle(len(empty), func(i, j int) { empty[i], empty[j] = empty[j], empty[i] })
	keep := int(float64(len(nonEmpty)) * ratio / (1 - ratio))
	if keep > len(empty) {
		keep = len(empty)
	}
	out := make([]contract.Instance, 0, len(nonEmpty)+keep)
	out = append(out, nonEmpty...)
	out = append(out, empty[:keep]...)
	return Result{Kept: out, Empty: len(empty), Dropped: len(empty) - keep}, nil
}
