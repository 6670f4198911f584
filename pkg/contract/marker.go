package contract

// StructureMarker: 目标串语法使用的定界符集合。构造后只读，可跨调用共享。
type StructureMarker struct {
	SentStart       string `json:"sent_start" yaml:"sent_start"`
	SentEnd         string `json:"sent_end" yaml:"sent_end"`
	RecordStart     string `json:"record_start" yaml:"record_start"`
	RecordEnd       string `json:"record_end" yaml:"record_end"`
	SpanStart       string `json:"span_start" yaml:"span_start"`
	SpanEnd         string `json:"span_end" yaml:"span_end"`
	TextStart       string `json:"text_start" yaml:"text_start"`
	SourceSpanStart string `json:"source_span_start" yaml:"source_span_start"`
	SourceSpanEnd   string `json:"source_span_end" yaml:"source_span_end"`
	TargetSpanStart string `json:"target_span_start" yaml:"target_span_start"`
	NullSpan        string `json:"null_span" yaml:"null_span"`
	NullLabel       string `json:"null_label" yaml:"null_label"`
}

// BaseStructureMarker 返回 T5 哨兵词表下的默认定界符。
func BaseStructureMarker() StructureMarker {
	return StructureMarker{
		SentStart:       "<extra_id_0>",
		SentEnd:         "<extra_id_1>",
		RecordStart:     "<extra_id_0>",
		RecordEnd:       "<extra_id_1>",
		SpanStart:       "<extra_id_0>",
		SpanEnd:         "<extra_id_1>",
		TextStart:       "<extra_id_2>",
		SourceSpanStart: "<extra_id_3>",
		SourceSpanEnd:   "<extra_id_4>",
		TargetSpanStart: "<extra_id_5>",
		NullSpan:        "<extra_id_6>",
		NullLabel:       "<extra_id_7>",
	}
}

// Empty 返回规范空串 "sent_start sent_end"。
func (m StructureMarker) Empty() string { return m.SentStart + " " + m.SentEnd }
