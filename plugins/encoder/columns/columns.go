// Package columns 将一个分区编码为单个列式 JSON 对象（每个字段名一列）。
package columns

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"e2h/pkg/contract"
)

// Options 为列式编码器配置。
type Options struct {
	// Indent: 非空时按该缩进美化输出。
	Indent string `json:"indent"`
	// EscapeHTML: 是否转义 < > &，默认关闭。
	EscapeHTML bool `json:"escape_html"`
	// Ext: 工件扩展名，默认 ".columns.json"。
	Ext string `json:"ext"`
}

// Encoder 实现 contract.Encoder。
type Encoder struct {
	indent string
	escape bool
	ext    string
}

// New 创建编码器。
func New(opts *Options) *Encoder {
	e := &Encoder{ext: ".columns.json"}
	if opts != nil {
		e.indent = opts.Indent
		e.escape = opts.EscapeHTML
		if ext := strings.TrimSpace(opts.Ext); ext != "" {
			e.ext = ext
		}
	}
	return e
}

var _ contract.Encoder = (*Encoder)(nil)

// Ext 返回工件扩展名。
func (e *Encoder) Ext() string { return e.ext }

// document 为落盘形状：分区名、行数与各列。
type document struct {
	Split   contract.Split   `json:"split"`
	NumRows int              `json:"num_rows"`
	Columns contract.Columns `json:"columns"`
}

// Encode 写出单个 JSON 文档。零行分区的各列为 null。
func (e *Encoder) Encode(ctx context.Context, split contract.Split, cols contract.Columns) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(e.escape)
	if e.indent != "" {
		enc.SetIndent("", e.indent)
	}
	if err := enc.Encode(document{Split: split, NumRows: cols.Len(), Columns: cols}); err != nil {
		return nil, err
	}
	return &buf, nil
}
