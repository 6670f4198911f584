package contract

// Span: 带类型的文本片段（实体、关系/事件论元共用此形状）。
type Span struct {
	Type   string `json:"type"`
	Offset []int  `json:"offset,omitempty"`
	Text   string `json:"text"`
}

// Relation: 关系标注；Args 按 [subject, object] 顺序排列。
type Relation struct {
	Type string `json:"type"`
	Args []Span `json:"args"`
}

// Event: 事件标注（触发词 + 论元）。
type Event struct {
	Type   string `json:"type"`
	Offset []int  `json:"offset,omitempty"`
	Text   string `json:"text"`
	Args   []Span `json:"args,omitempty"`
}

// Asoc: (asoc_label, asoc_span) 二元组；JSON 形如 ["works_for","Acme"]。
type Asoc [2]string

// Label 返回关联类型。
func (a Asoc) Label() string { return a[0] }

// Span 返回关联目标片段。
func (a Asoc) Span() string { return a[1] }

// SpotAsoc: 一个 spot 及其出边关联，是目标串的结构化来源。
type SpotAsoc struct {
	Span  string `json:"span"`
	Label string `json:"label"`
	Asoc  []Asoc `json:"asoc"`
}

// Record: 原子输入样本（单句/单文档）。
// 约束：
// - 合并前视为不可变；派生实例必须先 Clone；
// - Record 字段为序列化后的目标串（可由解析器补齐）。
type Record struct {
	Text     string     `json:"text"`
	Tokens   []string   `json:"tokens"`
	Record   string     `json:"record"`
	Entity   []Span     `json:"entity"`
	Relation []Relation `json:"relation"`
	Event    []Event    `json:"event"`
	Spot     []string   `json:"spot"`
	Asoc     []string   `json:"asoc"`
	SpotAsoc []SpotAsoc `json:"spot_asoc"`
}

// IsEmpty 结构化判定：无任何 spot_asoc 即视为空样本。
func (r Record) IsEmpty() bool { return len(r.SpotAsoc) == 0 }

// Clone 深拷贝全部序列字段，保证派生实例之间互不影响。
func (r Record) Clone() Record {
	out := r
	out.Tokens = cloneStrings(r.Tokens)
	out.Entity = cloneSpans(r.Entity)
	if r.Relation != nil {
		out.Relation = make([]Relation, len(r.Relation))
		for i, rel := range r.Relation {
			out.Relation[i] = Relation{Type: rel.Type, Args: cloneSpans(rel.Args)}
		}
	}
	if r.Event != nil {
		out.Event = make([]Event, len(r.Event))
		for i, ev := range r.Event {
			out.Event[i] = Event{Type: ev.Type, Offset: cloneInts(ev.Offset), Text: ev.Text, Args: cloneSpans(ev.Args)}
		}
	}
	out.Spot = cloneStrings(r.Spot)
	out.Asoc = cloneStrings(r.Asoc)
	out.SpotAsoc = CloneSpotAsoc(r.SpotAsoc)
	return out
}

// CloneSpotAsoc 深拷贝 spot_asoc 列表（含每项的 asoc 切片）。
func CloneSpotAsoc(in []SpotAsoc) []SpotAsoc {
	if in == nil {
		return nil
	}
	out := make([]SpotAsoc, len(in))
	for i, sa := range in {
		out[i] = SpotAsoc{Span: sa.Span, Label: sa.Label}
		if sa.Asoc != nil {
			out[i].Asoc = make([]Asoc, len(sa.Asoc))
			copy(out[i].Asoc, sa.Asoc)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func cloneSpans(in []Span) []Span {
	if in == nil {
		return nil
	}
	out := make([]Span, len(in))
	for i, s := range in {
		out[i] = Span{Type: s.Type, Offset: cloneInts(s.Offset), Text: s.Text}
	}
	return out
}

// Split: 数据集分区名。
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// Splits 为固定处理顺序（随机数消费顺序依赖于此）。
var Splits = []Split{SplitTrain, SplitValidation, SplitTest}

// Dataset: 三分区原始样本集合。
type Dataset map[Split][]Record
