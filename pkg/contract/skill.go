package contract

// Skill: 派生实例所属的子任务标签。
type Skill string

const (
	SkillFirst  Skill = "first"
	SkillSecond Skill = "second"
	SkillThird  Skill = "third"
	SkillFourth Skill = "fourth"
	SkillMain   Skill = "main"
)

// Skills 为四个子任务的固定顺序（拼接顺序依赖于此）。
var Skills = []Skill{SkillFirst, SkillSecond, SkillThird, SkillFourth}

// Placeholder 为 skill_input 未使用槽位的字面占位符。
const Placeholder = "empty"

// SkillInput: 子任务上下文，恒为二元。
type SkillInput [2]string

// SkillView: 派生视图的标签联合；每个实现只携带与自身相关的字段。
type SkillView interface {
	Skill() Skill
	Input() SkillInput
}

// FirstView: 仅检测 spot。
type FirstView struct{}

func (FirstView) Skill() Skill      { return SkillFirst }
func (FirstView) Input() SkillInput { return SkillInput{Placeholder, Placeholder} }

// SecondView: 给定 spot，分类其关联。
type SecondView struct {
	Label string
	Span  string
}

func (SecondView) Skill() Skill        { return SkillSecond }
func (v SecondView) Input() SkillInput { return SkillInput{v.Label, v.Span} }

// ThirdView: 仅检测关联类型。
type ThirdView struct{}

func (ThirdView) Skill() Skill      { return SkillThird }
func (ThirdView) Input() SkillInput { return SkillInput{Placeholder, Placeholder} }

// FourthView: 给定关系类型，抽取三元组。
type FourthView struct {
	Relation string
}

func (FourthView) Skill() Skill        { return SkillFourth }
func (v FourthView) Input() SkillInput { return SkillInput{v.Relation, Placeholder} }

// MainView: 完整抽取任务（基线 / hard 阶段）。
type MainView struct{}

func (MainView) Skill() Skill      { return SkillMain }
func (MainView) Input() SkillInput { return SkillInput{Placeholder, Placeholder} }

// Instance: 一次分解产出的派生实例。
// Record 为源样本的深拷贝，其 Record 字段已替换为该视图的目标串。
type Instance struct {
	Record Record
	View   SkillView
	Empty  bool
}

// Row 为其扁平输出形状。
func (in Instance) Row() Row {
	empty := in.Empty
	return Row{Record: in.Record, Skill: in.View.Skill(), SkillInput: in.View.Input(), Empty: &empty}
}
