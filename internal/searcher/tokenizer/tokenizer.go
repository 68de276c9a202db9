// Package tokenizer lexes search terms. Name terms are normalised to a
// lowercase, whitespace-collapsed form; signature patterns are split into
// type tokens and punctuation.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind classifies a Token.
type Kind int

const (
	Ident Kind = iota
	Wildcard
	Comma
	Arrow
	LAngle
	RAngle
	LParen
	RParen
	EOF
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "identifier"
	case Wildcard:
		return "wildcard"
	case Comma:
		return "','"
	case Arrow:
		return "'->'"
	case LAngle:
		return "'<'"
	case RAngle:
		return "'>'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	default:
		return "end of input"
	}
}

// Token is one lexeme and its byte offset in the input.
type Token struct {
	Kind     Kind
	Term     string
	Position int
}

// Normalize lowercases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// IsPattern reports whether text reads as a signature pattern rather than a
// name.
func IsPattern(text string) bool {
	return strings.Contains(text, ",") || strings.Contains(text, "->")
}

// Tokenize splits a signature pattern into tokens ending with EOF.
// Identifiers keep their case. Reference sigils and the mut/dyn/impl keywords
// carry no meaning for matching and are dropped.
func Tokenize(text string) ([]Token, error) {
	tokens := make([]Token, 0, len(text)/2+1)
	for i := 0; i < len(text); {
		r := rune(text[i])
		switch {
		case unicode.IsSpace(r), r == '&':
			i++
		case r == ',':
			tokens = append(tokens, Token{Kind: Comma, Term: ",", Position: i})
			i++
		case r == '<':
			tokens = append(tokens, Token{Kind: LAngle, Term: "<", Position: i})
			i++
		case r == '>':
			tokens = append(tokens, Token{Kind: RAngle, Term: ">", Position: i})
			i++
		case r == '(':
			tokens = append(tokens, Token{Kind: LParen, Term: "(", Position: i})
			i++
		case r == ')':
			tokens = append(tokens, Token{Kind: RParen, Term: ")", Position: i})
			i++
		case r == '*':
			tokens = append(tokens, Token{Kind: Wildcard, Term: "*", Position: i})
			i++
		case r == '-':
			if i+1 < len(text) && text[i+1] == '>' {
				tokens = append(tokens, Token{Kind: Arrow, Term: "->", Position: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("unexpected '-' at %d", i)
		default:
			start := i
			for i < len(text) && isIdentByte(text[i]) {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("unexpected %q at %d", text[i], i)
			}
			word := text[start:i]
			switch strings.ToLower(word) {
			case "_":
				tokens = append(tokens, Token{Kind: Wildcard, Term: word, Position: start})
			case "mut", "dyn", "impl":
			default:
				tokens = append(tokens, Token{Kind: Ident, Term: word, Position: start})
			}
		}
	}
	return append(tokens, Token{Kind: EOF, Position: len(text)}), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == ':' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
