package contract

import "fmt"

// Row: 最终训练行（样本字段 + skill/skill_input；empty 仅在分解产物中出现）。
type Row struct {
	Record
	Skill      Skill      `json:"skill"`
	SkillInput SkillInput `json:"skill_input"`
	Empty      *bool      `json:"empty,omitempty"`
}

// Columns: 列式存储，每个字段名一列，所有列等长。
type Columns struct {
	Text       []string     `json:"text"`
	Tokens     [][]string   `json:"tokens"`
	Record     []string     `json:"record"`
	Entity     [][]Span     `json:"entity"`
	Relation   [][]Relation `json:"relation"`
	Event      [][]Event    `json:"event"`
	Spot       [][]string   `json:"spot"`
	Asoc       [][]string   `json:"asoc"`
	SpotAsoc   [][]SpotAsoc `json:"spot_asoc"`
	Skill      []Skill      `json:"skill"`
	SkillInput []SkillInput `json:"skill_input"`
	// Empty 仅当所有行都携带 empty 标记时存在。
	Empty []bool `json:"empty,omitempty"`
}

// ToColumns 将行序列转为列式存储。零行时返回 ErrEmptyColumns，
// 而不是依赖首行推断列名。
func ToColumns(rows []Row) (Columns, error) {
	if len(rows) == 0 {
		return Columns{}, ErrEmptyColumns
	}
	n := len(rows)
	c := Columns{
		Text:       make([]string, n),
		Tokens:     make([][]string, n),
		Record:     make([]string, n),
		Entity:     make([][]Span, n),
		Relation:   make([][]Relation, n),
		Event:      make([][]Event, n),
		Spot:       make([][]string, n),
		Asoc:       make([][]string, n),
		SpotAsoc:   make([][]SpotAsoc, n),
		Skill:      make([]Skill, n),
		SkillInput: make([]SkillInput, n),
	}
	withEmpty := rows[0].Empty != nil
	if withEmpty {
		c.Empty = make([]bool, n)
	}
	for i, r := range rows {
		if (r.Empty != nil) != withEmpty {
			return Columns{}, fmt.Errorf("%w: row %d empty column mismatch", ErrInvariantViolation, i)
		}
		c.Text[i] = r.Text
		c.Tokens[i] = r.Tokens
		c.Record[i] = r.Record.Record
		c.Entity[i] = r.Entity
		c.Relation[i] = r.Relation
		c.Event[i] = r.Event
		c.Spot[i] = r.Spot
		c.Asoc[i] = r.Asoc
		c.SpotAsoc[i] = r.SpotAsoc
		c.Skill[i] = r.Skill
		c.SkillInput[i] = r.SkillInput
		if withEmpty {
			c.Empty[i] = *r.Empty
		}
	}
	return c, nil
}

// Len 返回行数。
func (c Columns) Len() int { return len(c.Text) }

// Row 读回第 i 行（0 <= i < Len）。
func (c Columns) Row(i int) Row {
	r := Row{
		Record: Record{
			Text:     c.Text[i],
			Tokens:   c.Tokens[i],
			Record:   c.Record[i],
			Entity:   c.Entity[i],
			Relation: c.Relation[i],
			Event:    c.Event[i],
			Spot:     c.Spot[i],
			Asoc:     c.Asoc[i],
			SpotAsoc: c.SpotAsoc[i],
		},
		Skill:      c.Skill[i],
		SkillInput: c.SkillInput[i],
	}
	if c.Empty != nil {
		e := c.Empty[i]
		r.Empty = &e
	}
	return r
}

// Head 截取前 n 行；n<=0 或 n>=Len 时原样返回。
func (c Columns) Head(n int) Columns {
	if n <= 0 || n >= c.Len() {
		return c
	}
	out := Columns{
		Text:       c.Text[:n],
		Tokens:     c.Tokens[:n],
		Record:     c.Record[:n],
		Entity:     c.Entity[:n],
		Relation:   c.Relation[:n],
		Event:      c.Event[:n],
		Spot:       c.Spot[:n],
		Asoc:       c.Asoc[:n],
		SpotAsoc:   c.SpotAsoc[:n],
		Skill:      c.Skill[:n],
		SkillInput: c.SkillInput[:n],
	}
	if c.Empty != nil {
		out.Empty = c.Empty[:n]
	}
	return out
}
