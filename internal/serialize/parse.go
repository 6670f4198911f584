package serialize

import (
	"fmt"
	"strings"

	"e2h/pkg/contract"
)

// Parse 将 SpotAsoc 产出的目标串解析回结构。
// 多词 label/span 按单空格还原；文本内不得出现定界符。
func Parse(m contract.StructureMarker, record string) ([]contract.SpotAsoc, error) {
	toks, err := Interior(m, record)
	if err != nil {
		return nil, err
	}
	p := &parser{m: m, toks: toks}
	var out []contract.SpotAsoc
	for !p.done() {
		sa, err := p.record()
		if err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, nil
}

type parser struct {
	m    contract.StructureMarker
	toks []string
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) expect(tok, role string) error {
	if p.done() || p.toks[p.pos] != tok {
		return fmt.Errorf("%w: expect %s at token %d", contract.ErrGrammar, role, p.pos+1)
	}
	p.pos++
	return nil
}

// until 收集文本直到遇到任一 stop（不消费 stop）。
func (p *parser) until(stops ...string) (string, error) {
	start := p.pos
	for !p.done() {
		for _, s := range stops {
			if p.toks[p.pos] == s {
				return strings.Join(p.toks[start:p.pos], " "), nil
			}
		}
		p.pos++
	}
	return "", fmt.Errorf("%w: unterminated text at token %d", contract.ErrGrammar, start+1)
}

func (p *parser) record() (contract.SpotAsoc, error) {
	var sa contract.SpotAsoc
	if err := p.expect(p.m.RecordStart, "record_start"); err != nil {
		return sa, err
	}
	label, err := p.until(p.m.TargetSpanStart)
	if err != nil {
		return sa, err
	}
	p.pos++
	span, err := p.until(p.m.SpanStart, p.m.RecordEnd)
	if err != nil {
		return sa, err
	}
	sa.Label, sa.Span = label, span
	sa.Asoc = []contract.Asoc{}
	for !p.done() && p.toks[p.pos] == p.m.SpanStart {
		p.pos++
		al, err := p.until(p.m.TargetSpanStart)
		if err != nil {
			return sa, err
		}
		p.pos++
		as, err := p.until(p.m.SpanEnd)
		if err != nil {
			return sa, err
		}
		p.pos++
		sa.Asoc = append(sa.Asoc, contract.Asoc{al, as})
	}
	if err := p.expect(p.m.RecordEnd, "record_end"); err != nil {
		return sa, err
	}
	return sa, nil
}
