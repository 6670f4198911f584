package registry

import (
	"bytes"
	"encoding/json"

	"e2h/pkg/contract"
	ecol "e2h/plugins/encoder/columns"
	ejsonl "e2h/plugins/encoder/jsonl"
	puie "e2h/plugins/parser/uiejson"
	rfs "e2h/plugins/reader/filesystem"
	wbolt "e2h/plugins/writer/bolt"
	wfs "e2h/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.Parser, error)

// NewEncoder 工厂签名：接收原样 JSON Options。
type NewEncoder func(raw json.RawMessage) (contract.Encoder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/分片目录/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Parser 工厂注册表。
var Parser = map[string]NewParser{
	// uie: 每行一个 JSON 样本
	"uie": func(raw json.RawMessage) (contract.Parser, error) {
		var opts puie.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return puie.New(&opts), nil
	},
}

// Encoder 工厂注册表。
var Encoder = map[string]NewEncoder{
	// jsonl: 每行一个训练样本
	"jsonl": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ejsonl.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejsonl.New(&opts), nil
	},
	// columns: 单个列式 JSON 文档
	"columns": func(raw json.RawMessage) (contract.Encoder, error) {
		var opts ecol.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ecol.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// bolt: 每个工件一个 bucket，逐行存储
	"bolt": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wbolt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wbolt.New(&opts)
	},
}
