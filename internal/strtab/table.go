// Package strtab implements the interned string table of the compact index
// encoding. Records refer to strings by table position, by a reserved sentinel
// code, or by an inline literal; Table.Resolve is the only place those forms
// are told apart.
package strtab

import (
	"encoding/json"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
)

// RefKind discriminates the Ref variants.
type RefKind uint8

const (
	RefNull RefKind = iota
	RefInterned
	RefSentinel
	RefLiteral
)

// Ref is a string reference as found in a record.
type Ref struct {
	Kind  RefKind
	Index int
	Code  int
	Text  string
}

func Null() Ref                { return Ref{Kind: RefNull} }
func Interned(index int) Ref   { return Ref{Kind: RefInterned, Index: index} }
func SentinelRef(code int) Ref { return Ref{Kind: RefSentinel, Code: code} }
func Literal(text string) Ref  { return Ref{Kind: RefLiteral, Text: text} }

// IsNull reports whether r is the null sentinel.
func (r Ref) IsNull() bool { return r.Kind == RefNull }

// ParseRef converts one decoded JSON value into a Ref: non-negative integers
// are table indices, negative integers sentinel codes, strings inline
// literals and null the null sentinel.
func ParseRef(v any) (Ref, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return Literal(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return Ref{}, apperrors.Decodef(apperrors.ErrMalformedTuple, "string reference %q is not an integer", x.String())
		}
		return fromInt(n)
	case float64:
		if x != math.Trunc(x) {
			return Ref{}, apperrors.Decodef(apperrors.ErrMalformedTuple, "string reference %v is not an integer", x)
		}
		return fromInt(int64(x))
	default:
		return Ref{}, apperrors.Decodef(apperrors.ErrMalformedTuple, "unexpected string reference of type %T", v)
	}
}

func fromInt(n int64) (Ref, error) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return Ref{}, apperrors.Decodef(apperrors.ErrOutOfRange, "string reference %d overflows", n)
	}
	if n < 0 {
		return SentinelRef(int(n)), nil
	}
	return Interned(int(n)), nil
}

// Table is an ordered, possibly value-duplicated list of strings. It is never
// sorted or deduplicated: positions are what records refer to.
type Table struct {
	strings []string
	vocab   *Vocabulary
}

// NewTable wraps strings as-is. A nil vocab selects DefaultVocabulary.
func NewTable(strings []string, vocab *Vocabulary) *Table {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Table{strings: strings, vocab: vocab}
}

// Len returns the number of interned strings.
func (t *Table) Len() int {
	return len(t.strings)
}

// Vocabulary returns the sentinel vocabulary used by the table.
func (t *Table) Vocabulary() *Vocabulary {
	return t.vocab
}

// Resolve returns the string a reference stands for.
func (t *Table) Resolve(ref Ref) (string, error) {
	switch ref.Kind {
	case RefSentinel:
		s, ok := t.vocab.Lookup(ref.Code)
		if !ok {
			return "", apperrors.Decodef(apperrors.ErrOutOfRange, "unknown sentinel code %d", ref.Code)
		}
		return s.Value, nil
	case RefInterned:
		if ref.Index < 0 || ref.Index >= len(t.strings) {
			return "", apperrors.Decodef(apperrors.ErrOutOfRange, "index %d >= table length %d", ref.Index, len(t.strings))
		}
		return t.strings[ref.Index], nil
	case RefLiteral:
		return ref.Text, nil
	default:
		return "", apperrors.Decodef(apperrors.ErrMalformedTuple, "null where a string reference is required")
	}
}

// Sentinel returns the sentinel ref stands for, if it is one.
func (t *Table) Sentinel(ref Ref) (Sentinel, bool) {
	if ref.Kind != RefSentinel {
		return Sentinel{}, false
	}
	return t.vocab.Lookup(ref.Code)
}

// IsEmptySentinel reports whether ref is the empty sentinel. An interned or
// literal empty string is not.
func (t *Table) IsEmptySentinel(ref Ref) bool {
	s, ok := t.Sentinel(ref)
	return ok && s.Role == RoleEmpty
}
