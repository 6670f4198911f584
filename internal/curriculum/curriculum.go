// Package curriculum 通过拼接多条 easy 样本合成 hard 阶段的多句样本。
package curriculum

import (
	"fmt"
	"math/rand"

	"e2h/internal/serialize"
	"e2h/pkg/contract"
)

// SeedPolicy 决定原本为空的种子样本在合并后是否保留。
type SeedPolicy string

const (
	// SeedKeep: 保留所有种子（输出规模与输入一致）。
	SeedKeep SeedPolicy = "keep"
	// SeedSkip: 丢弃合并前为空的种子。
	SeedSkip SeedPolicy = "skip"
)

// Merge 将 src 逐字段拼接到 dst：序列字段顺序拼接，text 以单空格连接，
// record 剥离双方外层 sent 定界符后共用一个新外壳。dst 必须是调用方独占的副本。
func Merge(m contract.StructureMarker, dst *contract.Record, src contract.Record) error {
	di, err := serialize.Interior(m, dst.Record)
	if err != nil {
		return fmt.Errorf("merge seed: %w", err)
	}
	si, err := serialize.Interior(m, src.Record)
	if err != nil {
		return fmt.Errorf("merge partner: %w", err)
	}
	src = src.Clone()
	dst.Tokens = append(dst.Tokens, src.Tokens...)
	dst.Text = dst.Text + " " + src.Text
	dst.Entity = append(dst.Entity, src.Entity...)
	dst.Relation = append(dst.Relation, src.Relation...)
	dst.Event = append(dst.Event, src.Event...)
	dst.Spot = append(dst.Spot, src.Spot...)
	dst.Asoc = append(dst.Asoc, src.Asoc...)
	dst.SpotAsoc = append(dst.SpotAsoc, src.SpotAsoc...)
	dst.Record = serialize.Wrap(m, di, si)
	return nil
}

// BuildHard 产出 repeats 份独立采样的合成数据并首尾相接。
// 每份中，输入的每条样本（含空样本）各自与 n-1 个从非空池中有放回均匀采样的伙伴合并。
// rng 由调用方传入并在进程内只播种一次。
func BuildHard(rng *rand.Rand, m contract.StructureMarker, train []contract.Record, n, repeats int, policy SeedPolicy) ([]contract.Record, error) {
	if n < 1 || repeats < 1 {
		return nil, fmt.Errorf("%w: sent_num=%d M=%d", contract.ErrInvalidInput, n, repeats)
	}
	pool := make([]contract.Record, 0, len(train))
	for _, rec := range train {
		if !rec.IsEmpty() {
			pool = append(pool, rec)
		}
	}
	if n > 1 && len(pool) == 0 {
		return nil, fmt.Errorf("%w: %d instances, none non-empty", contract.ErrNoMergePartner, len(train))
	}
	out := make([]contract.Record, 0, len(train)*repeats)
	for r := 0; r < repeats; r++ {
		for _, rec := range train {
			cp := rec.Clone()
			seedEmpty := cp.IsEmpty()
			for k := 1; k < n; k++ {
				if err := Merge(m, &cp, pool[rng.Intn(len(pool))]); err != nil {
					return nil, err
				}
			}
			if policy == SeedSkip && seedEmpty && n > 1 {
				continue
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

// BuildHardRange 对 n = 2..sentNum 依次调用 BuildHard 并拼接，得到混合难度的训练集。
// sentNum < 2 时返回 nil。
func BuildHardRange(rng *rand.Rand, m contract.StructureMarker, train []contract.Record, sentNum, repeats int, policy SeedPolicy) ([]contract.Record, error) {
	var out []contract.Record
	for n := 2; n <= sentNum; n++ {
		part, err := BuildHard(rng, m, train, n, repeats, policy)
		if err != nil {
			return nil, fmt.Errorf("sent_num %d: %w", n, err)
		}
		out = append(out, part...)
	}
	return out, nil
}
