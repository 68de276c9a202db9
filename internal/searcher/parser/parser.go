package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/tokenizer"
)

// TypePattern matches one type of a signature. A pattern without Params
// matches the named type with any parameters.
type TypePattern struct {
	Name     string        `json:"name,omitempty"`
	Wildcard bool          `json:"wildcard,omitempty"`
	Unit     bool          `json:"unit,omitempty"`
	Params   []TypePattern `json:"params,omitempty"`
}

func (p TypePattern) String() string {
	switch {
	case p.Wildcard:
		return "_"
	case p.Unit:
		return "()"
	case len(p.Params) == 0:
		return p.Name
	}
	parts := make([]string, len(p.Params))
	for i, q := range p.Params {
		parts[i] = q.String()
	}
	return p.Name + "<" + strings.Join(parts, ", ") + ">"
}

// SignaturePattern is a parsed "a, b -> r" query. Ret is nil when the query
// does not constrain the return type.
type SignaturePattern struct {
	Args []TypePattern `json:"args"`
	Ret  *TypePattern  `json:"ret,omitempty"`
}

func (s *SignaturePattern) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = a.String()
	}
	out := strings.Join(parts, ", ")
	if s.Ret != nil {
		out += " -> " + s.Ret.String()
	}
	return out
}

// QueryPlan is a parsed search term. Name is the normalised term used by the
// name tiers. Signature is set only when the term parsed as a pattern;
// PatternErr explains why a pattern-looking term did not.
type QueryPlan struct {
	RawQuery   string
	Name       string
	Signature  *SignaturePattern
	PatternErr error
}

// Empty reports whether the plan can match nothing.
func (p *QueryPlan) Empty() bool {
	return p.Name == ""
}

// Parse never fails: a malformed pattern leaves Signature nil so the query
// falls back to the name tiers.
func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: query,
		Name:     tokenizer.Normalize(query),
	}
	if plan.Name == "" || !tokenizer.IsPattern(plan.Name) {
		return plan
	}
	plan.Signature, plan.PatternErr = ParsePattern(plan.Name)
	return plan
}

// ParsePattern parses
//
//	pattern := ['('] [type {',' type}] [')'] ['->' type]
//	type    := '_' | '*' | '(' ')' | ident ['<' type {',' type} '>']
func ParsePattern(text string) (*SignaturePattern, error) {
	tokens, err := tokenizer.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tokenizing pattern: %w", err)
	}
	p := &patternParser{tokens: tokens}
	sig := &SignaturePattern{Args: []TypePattern{}}

	parens := p.peek().Kind == tokenizer.LParen && p.peekAt(1).Kind != tokenizer.RParen
	if p.peek().Kind == tokenizer.LParen && p.peekAt(1).Kind == tokenizer.RParen && p.peekAt(2).Kind == tokenizer.Arrow {
		p.pos += 2
	} else {
		if parens {
			p.pos++
		}
		if k := p.peek().Kind; k != tokenizer.Arrow && k != tokenizer.EOF {
			for {
				t, err := p.parseType(0)
				if err != nil {
					return nil, err
				}
				sig.Args = append(sig.Args, t)
				if p.peek().Kind != tokenizer.Comma {
					break
				}
				p.pos++
			}
		}
		if parens {
			if err := p.expect(tokenizer.RParen); err != nil {
				return nil, err
			}
		}
	}

	if p.peek().Kind == tokenizer.Arrow {
		p.pos++
		ret, err := p.parseType(0)
		if err != nil {
			return nil, err
		}
		sig.Ret = &ret
	}
	if err := p.expect(tokenizer.EOF); err != nil {
		return nil, err
	}
	return sig, nil
}

// ParseType parses a single type such as "option<f32>". Wildcards are
// rejected.
func ParseType(text string) (TypePattern, error) {
	tokens, err := tokenizer.Tokenize(text)
	if err != nil {
		return TypePattern{}, fmt.Errorf("tokenizing type: %w", err)
	}
	p := &patternParser{tokens: tokens}
	t, err := p.parseType(0)
	if err != nil {
		return TypePattern{}, err
	}
	if err := p.expect(tokenizer.EOF); err != nil {
		return TypePattern{}, err
	}
	if t.hasWildcard() {
		return TypePattern{}, fmt.Errorf("wildcard in concrete type %q", text)
	}
	return t, nil
}

func (p TypePattern) hasWildcard() bool {
	if p.Wildcard {
		return true
	}
	for _, q := range p.Params {
		if q.hasWildcard() {
			return true
		}
	}
	return false
}

const maxPatternDepth = 16

type patternParser struct {
	tokens []tokenizer.Token
	pos    int
}

func (p *patternParser) peek() tokenizer.Token {
	return p.peekAt(0)
}

func (p *patternParser) peekAt(n int) tokenizer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *patternParser) expect(k tokenizer.Kind) error {
	t := p.peek()
	if t.Kind != k {
		return fmt.Errorf("expected %s at %d, found %s", k, t.Position, t.Kind)
	}
	p.pos++
	return nil
}

func (p *patternParser) parseType(depth int) (TypePattern, error) {
	if depth > maxPatternDepth {
		return TypePattern{}, fmt.Errorf("type pattern nested deeper than %d", maxPatternDepth)
	}
	t := p.peek()
	switch t.Kind {
	case tokenizer.Wildcard:
		p.pos++
		return TypePattern{Wildcard: true}, nil
	case tokenizer.LParen:
		p.pos++
		if err := p.expect(tokenizer.RParen); err != nil {
			return TypePattern{}, err
		}
		return TypePattern{Unit: true}, nil
	case tokenizer.Ident:
		p.pos++
	default:
		return TypePattern{}, fmt.Errorf("expected type at %d, found %s", t.Position, t.Kind)
	}

	out := TypePattern{Name: t.Term}
	if p.peek().Kind != tokenizer.LAngle {
		return out, nil
	}
	p.pos++
	for {
		param, err := p.parseType(depth + 1)
		if err != nil {
			return TypePattern{}, err
		}
		out.Params = append(out.Params, param)
		if p.peek().Kind != tokenizer.Comma {
			break
		}
		p.pos++
	}
	if err := p.expect(tokenizer.RAngle); err != nil {
		return TypePattern{}, err
	}
	return out, nil
}
