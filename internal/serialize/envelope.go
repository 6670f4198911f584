package serialize

import (
	"fmt"
	"strings"

	"e2h/pkg/contract"
)

// Interior 剥离外层 sent_start/sent_end，返回内部 token 序列（可为空）。
func Interior(m contract.StructureMarker, record string) ([]string, error) {
	f := strings.Fields(record)
	if len(f) < 2 || f[0] != m.SentStart || f[len(f)-1] != m.SentEnd {
		return nil, fmt.Errorf("%w: missing sentence envelope in %q", contract.ErrGrammar, record)
	}
	return f[1 : len(f)-1], nil
}

// Wrap 将若干段内部 token 依序拼接，并包裹在单个 sent_start ... sent_end 中。
func Wrap(m contract.StructureMarker, interiors ...[]string) string {
	n := 2
	for _, in := range interiors {
		n += len(in)
	}
	toks := make([]string, 0, n)
	toks = append(toks, m.SentStart)
	for _, in := range interiors {
		toks = append(toks, in...)
	}
	toks = append(toks, m.SentEnd)
	return strings.Join(toks, " ")
}
