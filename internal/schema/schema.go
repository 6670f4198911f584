// Package schema 读取关系 schema 文件（relation.schema）。
//
// 文件最多三行：
//  1. 关系类型列表（必需），如 ["works_for", "born_in"]；
//  2. 论元角色列表（可选）；
//  3. 类型到角色的映射（可选）。
//
// 每行按 YAML flow 语法解析，因此 JSON 与单引号列表都可接受。
package schema

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"e2h/pkg/contract"
)

// FileName 为默认文件名（位于测试集文件同目录）。
const FileName = "relation.schema"

// Schema: 关系类型词表及可选的角色信息。
type Schema struct {
	Types     []string            `json:"types"`
	Roles     []string            `json:"roles,omitempty"`
	TypeRoles map[string][]string `json:"type_roles,omitempty"`
}

// Read 打开并解析 path。
func Read(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, fmt.Errorf("%w: open %s: %v", contract.ErrSchemaInvalid, path, err)
	}
	defer f.Close()
	s, err := Parse(f)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse 从 r 解析 schema。第一行缺失或不是字符串列表时返回 ErrSchemaInvalid。
func Parse(r io.Reader) (Schema, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for sc.Scan() && len(lines) < 3 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Schema{}, fmt.Errorf("%w: %v", contract.ErrSchemaInvalid, err)
	}
	if len(lines) == 0 || lines[0] == "" {
		return Schema{}, fmt.Errorf("%w: missing relation type line", contract.ErrSchemaInvalid)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(lines[0]), &doc); err != nil {
		return Schema{}, fmt.Errorf("%w: line 1: %v", contract.ErrSchemaInvalid, err)
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.SequenceNode {
		return Schema{}, fmt.Errorf("%w: line 1: not a list", contract.ErrSchemaInvalid)
	}
	s := Schema{Types: []string{}}
	if err := doc.Content[0].Decode(&s.Types); err != nil {
		return Schema{}, fmt.Errorf("%w: line 1: %v", contract.ErrSchemaInvalid, err)
	}
	if len(lines) > 1 && lines[1] != "" {
		if err := yaml.Unmarshal([]byte(lines[1]), &s.Roles); err != nil {
			return Schema{}, fmt.Errorf("%w: line 2: %v", contract.ErrSchemaInvalid, err)
		}
	}
	if len(lines) > 2 && lines[2] != "" {
		if err := yaml.Unmarshal([]byte(lines[2]), &s.TypeRoles); err != nil {
			return Schema{}, fmt.Errorf("%w: line 3: %v", contract.ErrSchemaInvalid, err)
		}
	}
	return s, nil
}
