// Package jsonl 将列式结果逐行编码为 JSON Lines（每行一个训练行对象）。
package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"e2h/pkg/contract"
)

// Options 为 jsonl 编码器配置。
type Options struct {
	// EscapeHTML: 是否将 < > & 转义为 < 等；定界符含尖括号，默认关闭。
	EscapeHTML bool `json:"escape_html"`
	// Ext: 工件扩展名，默认 ".json"。
	Ext string `json:"ext"`
}

// Encoder 实现 contract.Encoder。
type Encoder struct {
	escape bool
	ext    string
}

// New 创建编码器。
func New(opts *Options) *Encoder {
	e := &Encoder{ext: ".json"}
	if opts != nil {
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

// Encode 按行序写出；零行得到空流。
func (e *Encoder) Encode(ctx context.Context, _ contract.Split, cols contract.Columns) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(e.escape)
	for i := 0; i < cols.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := enc.Encode(cols.Row(i)); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}
