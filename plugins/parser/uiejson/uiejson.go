// Package uiejson 解析 UIE 风格的 JSON Lines 分区文件。
package uiejson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"e2h/internal/serialize"
	"e2h/pkg/contract"
)

// Options 为 uie 解析器的可选配置。
type Options struct {
	// Strict: 拒绝未知字段（默认忽略，便于携带 id 等附加字段）。
	Strict bool `json:"strict"`
	// VerifyRecord: 对已给出的 record 做语法校验，并要求其条目数与 spot_asoc 一致。
	VerifyRecord bool `json:"verify_record"`
	// Marker: 定界符覆盖；为空使用默认 T5 哨兵。
	Marker *contract.StructureMarker `json:"marker"`
}

// Parser 实现 contract.Parser。
type Parser struct {
	strict bool
	verify bool
	marker contract.StructureMarker
}

// New 创建解析器。
func New(opts *Options) *Parser {
	p := &Parser{marker: contract.BaseStructureMarker()}
	if opts == nil {
		return p
	}
	p.strict = opts.Strict
	p.verify = opts.VerifyRecord
	if opts.Marker != nil {
		p.marker = *opts.Marker
	}
	return p
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse 逐行解码；空行跳过，record 缺失时由 spot_asoc 序列化补齐。
// 错误携带文件与行号。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) ([]contract.Record, error) {
	br := bufio.NewReader(r)
	var out []contract.Record
	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s:%d: %w", fileID, line, err)
		}
		if line == 1 {
			raw = bytes.TrimPrefix(raw, utf8BOM)
		}
		if b := bytes.TrimSpace(raw); len(b) > 0 {
			rec, perr := p.decode(b)
			if perr != nil {
				return nil, fmt.Errorf("%s:%d: %w", fileID, line, perr)
			}
			out = append(out, rec)
		}
		if errors.Is(err, io.EOF) {
			return out, ctx.Err()
		}
	}
}

func (p *Parser) decode(b []byte) (contract.Record, error) {
	var rec contract.Record
	dec := json.NewDecoder(bytes.NewReader(b))
	if p.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&rec); err != nil {
		return contract.Record{}, fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	if dec.More() {
		return contract.Record{}, fmt.Errorf("%w: trailing data after object", contract.ErrInvalidInput)
	}
	for i := range rec.SpotAsoc {
		if rec.SpotAsoc[i].Asoc == nil {
			rec.SpotAsoc[i].Asoc = []contract.Asoc{}
		}
	}
	if rec.Record == "" {
		rec.Record = serialize.SpotAsoc(p.marker, rec.SpotAsoc)
		return rec, nil
	}
	if p.verify {
		parsed, err := serialize.Parse(p.marker, rec.Record)
		if err != nil {
			return contract.Record{}, err
		}
		if len(parsed) != len(rec.SpotAsoc) {
			return contract.Record{}, fmt.Errorf("%w: record has %d entries, spot_asoc has %d",
				contract.ErrInvariantViolation, len(parsed), len(rec.SpotAsoc))
		}
	}
	return rec, nil
}
