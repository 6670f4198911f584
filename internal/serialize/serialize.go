// Package serialize 负责把结构化标注转为定界目标串，以及反向解析。
//
// 语法（单空格连接）：
//
//	sent_start (record_start label target_span_start span
//	            (span_start asoc_label target_span_start asoc_span span_end)*
//	            record_end)* sent_end
//
// 全部函数为纯函数；输入顺序即输出顺序，不排序。
package serialize

import (
	"strings"

	"e2h/pkg/contract"
)

// SpotAsoc 序列化完整 spot_asoc 列表；空列表得到 "sent_start sent_end"。
func SpotAsoc(m contract.StructureMarker, list []contract.SpotAsoc) string {
	parts := make([]string, 0, len(list)+2)
	parts = append(parts, m.SentStart)
	for _, sa := range list {
		toks := make([]string, 0, 5+5*len(sa.Asoc))
		toks = append(toks, m.RecordStart, sa.Label, m.TargetSpanStart, sa.Span)
		for _, a := range sa.Asoc {
			toks = append(toks, m.SpanStart, a.Label(), m.TargetSpanStart, a.Span(), m.SpanEnd)
		}
		toks = append(toks, m.RecordEnd)
		parts = append(parts, strings.Join(toks, " "))
	}
	parts = append(parts, m.SentEnd)
	return strings.Join(parts, " ")
}

// Spot 序列化 spot 标签列表：每项 "span_start label span_end"。
func Spot(m contract.StructureMarker, labels []string) string {
	return labelList(m, labels)
}

// Asoc 与 Spot 形状一致，语义上仅用于关联标签。
func Asoc(m contract.StructureMarker, labels []string) string {
	return labelList(m, labels)
}

func labelList(m contract.StructureMarker, labels []string) string {
	toks := make([]string, 0, 3*len(labels)+2)
	toks = append(toks, m.SentStart)
	for _, l := range labels {
		toks = append(toks, m.SpanStart, l, m.SpanEnd)
	}
	toks = append(toks, m.SentEnd)
	return strings.Join(toks, " ")
}

// IsEmpty 按字符串形态判定规范空串（两个 token 且第二个为 sent_end）。
// 分解阶段使用结构化判定；此函数用于外部提供的目标串。
func IsEmpty(m contract.StructureMarker, record string) bool {
	f := strings.Fields(record)
	return len(f) == 2 && f[1] == m.SentEnd
}
