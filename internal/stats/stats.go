// Package stats 统计分区规模与 text/record 的长度分布（按空白切分计 token）。
package stats

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"e2h/internal/serialize"
	"e2h/pkg/contract"
)

// Length: 长度分布摘要。
type Length struct {
	Min  int     `json:"min" yaml:"min"`
	Max  int     `json:"max" yaml:"max"`
	Mean float64 `json:"mean" yaml:"mean"`
}

// Split: 单个分区的统计。
type Split struct {
	Split  contract.Split `json:"split" yaml:"split"`
	Count  int            `json:"count" yaml:"count"`
	Empty  int            `json:"empty" yaml:"empty"`
	Text   Length         `json:"text" yaml:"text"`
	Record Length         `json:"record" yaml:"record"`
}

// Count 统计一个分区；空目标串按规范空串的字符串形态判定。
func Count(m contract.StructureMarker, split contract.Split, cols contract.Columns) Split {
	out := Split{Split: split, Count: cols.Len()}
	var text, rec lengthAcc
	for i := 0; i < cols.Len(); i++ {
		text.add(len(strings.Fields(cols.Text[i])))
		rec.add(len(strings.Fields(cols.Record[i])))
		if serialize.IsEmpty(m, cols.Record[i]) {
			out.Empty++
		}
	}
	out.Text = text.result()
	out.Record = rec.result()
	return out
}

// CountRecords 与 Count 相同，但直接作用于原始样本。
func CountRecords(m contract.StructureMarker, split contract.Split, recs []contract.Record) Split {
	out := Split{Split: split, Count: len(recs)}
	var text, rec lengthAcc
	for _, r := range recs {
		text.add(len(strings.Fields(r.Text)))
		rec.add(len(strings.Fields(r.Record)))
		if serialize.IsEmpty(m, r.Record) {
			out.Empty++
		}
	}
	out.Text = text.result()
	out.Record = rec.result()
	return out
}

type lengthAcc struct {
	n, min, max, sum int
}

func (a *lengthAcc) add(v int) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	a.n++
	a.sum += v
}

func (a lengthAcc) result() Length {
	if a.n == 0 {
		return Length{}
	}
	return Length{Min: a.min, Max: a.max, Mean: float64(a.sum) / float64(a.n)}
}

// WriteTable 以对齐表格写出多个分区的统计。
func WriteTable(w io.Writer, rows []Split) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "split\tcount\tempty\ttext min/max/mean\trecord min/max/mean")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d/%d/%.2f\t%d/%d/%.2f\n",
			r.Split, r.Count, r.Empty,
			r.Text.Min, r.Text.Max, r.Text.Mean,
			r.Record.Min, r.Record.Max, r.Record.Mean)
	}
	return tw.Flush()
}
