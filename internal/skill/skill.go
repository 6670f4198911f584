// Package skill 将一个标注样本分解为四个子任务视图。
//
// 每个派生实例都从源样本深拷贝而来，彼此之间不共享可变状态；
// Empty 在序列化前按结构计算，不解析目标串。
package skill

import (
	"fmt"

	"e2h/internal/serialize"
	"e2h/pkg/contract"
)

// Decomposer 持有只读的定界符与全局关系类型表，可跨调用共享。
type Decomposer struct {
	marker    contract.StructureMarker
	relations []string
}

// New 构造分解器；relations 去重并保持首次出现顺序。
func New(marker contract.StructureMarker, relations []string) *Decomposer {
	seen := make(map[string]struct{}, len(relations))
	uniq := make([]string, 0, len(relations))
	for _, r := range relations {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		uniq = append(uniq, r)
	}
	return &Decomposer{marker: marker, relations: uniq}
}

// Relations 返回去重后的关系类型表（副本）。
func (d *Decomposer) Relations() []string {
	out := make([]string, len(d.relations))
	copy(out, d.relations)
	return out
}

// Families 为一次分解的四族产物。
type Families struct {
	First  []contract.Instance
	Second []contract.Instance
	Third  []contract.Instance
	Fourth []contract.Instance
}

// Get 按 skill 取族；未知 skill 返回 nil。
func (f *Families) Get(s contract.Skill) []contract.Instance {
	switch s {
	case contract.SkillFirst:
		return f.First
	case contract.SkillSecond:
		return f.Second
	case contract.SkillThird:
		return f.Third
	case contract.SkillFourth:
		return f.Fourth
	}
	return nil
}

// Add 将单条样本的分解结果追加到各族。
func (f *Families) Add(o Families) {
	f.First = append(f.First, o.First...)
	f.Second = append(f.Second, o.Second...)
	f.Third = append(f.Third, o.Third...)
	f.Fourth = append(f.Fourth, o.Fourth...)
}

// Decompose 对单条样本产出四族派生实例。
func (d *Decomposer) Decompose(rec contract.Record) (Families, error) {
	fourth, err := d.Fourth(rec)
	if err != nil {
		return Families{}, err
	}
	return Families{
		First:  []contract.Instance{d.First(rec)},
		Second: d.Second(rec),
		Third:  []contract.Instance{d.Third(rec)},
		Fourth: fourth,
	}, nil
}

// First: 仅检测 spot。剥离每项 asoc 后序列化，每条样本恰好一个实例。
func (d *Decomposer) First(rec contract.Record) contract.Instance {
	sa := contract.CloneSpotAsoc(rec.SpotAsoc)
	for i := range sa {
		sa[i].Asoc = []contract.Asoc{}
	}
	return d.instance(rec, contract.FirstView{}, sa)
}

// Second: 对每个 spot 给出其关联；无关联的 spot 产出空目标串。
func (d *Decomposer) Second(rec contract.Record) []contract.Instance {
	if len(rec.SpotAsoc) == 0 {
		return nil
	}
	out := make([]contract.Instance, 0, len(rec.SpotAsoc))
	for _, sa := range rec.SpotAsoc {
		var target []contract.SpotAsoc
		if len(sa.Asoc) > 0 {
			target = contract.CloneSpotAsoc([]contract.SpotAsoc{sa})
		}
		out = append(out, d.instance(rec, contract.SecondView{Label: sa.Label, Span: sa.Span}, target))
	}
	return out
}

// Third: 直接序列化扁平的 asoc 标签列表，忽略片段。
func (d *Decomposer) Third(rec contract.Record) contract.Instance {
	cp := rec.Clone()
	cp.Record = serialize.Asoc(d.marker, rec.Asoc)
	return contract.Instance{Record: cp, View: contract.ThirdView{}, Empty: len(rec.Asoc) == 0}
}

// Fourth: 按关系类型分组产出三元组实例；全局表中本样本未出现的类型各产出一个负例。
// 正例按首次出现顺序，负例按全局表顺序。
func (d *Decomposer) Fourth(rec contract.Record) ([]contract.Instance, error) {
	var order []string
	groups := make(map[string][]contract.SpotAsoc)
	for i, rel := range rec.Relation {
		if len(rel.Args) < 2 {
			return nil, fmt.Errorf("%w: relation %d (%s) has %d args, need 2", contract.ErrInvalidInput, i, rel.Type, len(rel.Args))
		}
		if _, ok := groups[rel.Type]; !ok {
			order = append(order, rel.Type)
		}
		subj, obj := rel.Args[0], rel.Args[1]
		groups[rel.Type] = append(groups[rel.Type], contract.SpotAsoc{
			Span:  subj.Text,
			Label: subj.Type,
			Asoc:  []contract.Asoc{{rel.Type, obj.Text}},
		})
	}
	out := make([]contract.Instance, 0, len(order)+len(d.relations))
	for _, typ := range order {
		out = append(out, d.instance(rec, contract.FourthView{Relation: typ}, groups[typ]))
	}
	for _, typ := range d.relations {
		if _, ok := groups[typ]; ok {
			continue
		}
		out = append(out, d.instance(rec, contract.FourthView{Relation: typ}, nil))
	}
	return out, nil
}

// instance 深拷贝源样本并写入目标串；Empty 由目标结构决定。
func (d *Decomposer) instance(rec contract.Record, view contract.SkillView, target []contract.SpotAsoc) contract.Instance {
	cp := rec.Clone()
	cp.Record = serialize.SpotAsoc(d.marker, target)
	return contract.Instance{Record: cp, View: view, Empty: len(target) == 0}
}
