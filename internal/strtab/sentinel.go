package strtab

import (
	"fmt"
	"sort"
)

// Role describes how a sentinel participates in decoding.
type Role int

const (
	// RoleEmpty marks the empty string. In the path position of a record it
	// also means "same path as the previous record".
	RoleEmpty Role = iota
	// RoleGeneric marks a generic type placeholder such as T, U or self.
	RoleGeneric
	// RoleValue is a plain shorthand with no extra meaning.
	RoleValue
)

func (r Role) String() string {
	switch r {
	case RoleEmpty:
		return "empty"
	case RoleGeneric:
		return "generic"
	default:
		return "value"
	}
}

// ParseRole maps a configuration name to a Role.
func ParseRole(name string) (Role, error) {
	switch name {
	case "empty":
		return RoleEmpty, nil
	case "generic":
		return RoleGeneric, nil
	case "value", "":
		return RoleValue, nil
	default:
		return RoleValue, fmt.Errorf("unknown sentinel role %q", name)
	}
}

// Sentinel is a reserved token substituted inline for a common short string.
// Codes are negative so they never collide with table indices.
type Sentinel struct {
	Code  int
	Value string
	Role  Role
}

// Vocabulary is the generator-specific set of sentinels.
type Vocabulary struct {
	byCode  map[int]Sentinel
	byValue map[string]Sentinel
	empty   Sentinel
}

// NewVocabulary validates the sentinel set. Exactly one sentinel must have
// RoleEmpty.
func NewVocabulary(sentinels []Sentinel) (*Vocabulary, error) {
	v := &Vocabulary{
		byCode:  make(map[int]Sentinel, len(sentinels)),
		byValue: make(map[string]Sentinel, len(sentinels)),
	}
	emptyFound := false
	for _, s := range sentinels {
		if s.Code >= 0 {
			return nil, fmt.Errorf("sentinel %q: code %d must be negative", s.Value, s.Code)
		}
		if _, dup := v.byCode[s.Code]; dup {
			return nil, fmt.Errorf("duplicate sentinel code %d", s.Code)
		}
		if s.Role == RoleEmpty {
			if emptyFound {
				return nil, fmt.Errorf("more than one empty sentinel")
			}
			if s.Value != "" {
				return nil, fmt.Errorf("empty sentinel %d has value %q", s.Code, s.Value)
			}
			emptyFound = true
			v.empty = s
		}
		v.byCode[s.Code] = s
		if _, seen := v.byValue[s.Value]; !seen {
			v.byValue[s.Value] = s
		}
	}
	if !emptyFound {
		return nil, fmt.Errorf("vocabulary has no empty sentinel")
	}
	return v, nil
}

// DefaultSentinels is the vocabulary emitted by rustdoc-style generators.
func DefaultSentinels() []Sentinel {
	return []Sentinel{
		{Code: -1, Value: "", Role: RoleEmpty},
		{Code: -2, Value: "t", Role: RoleGeneric},
		{Code: -3, Value: "u", Role: RoleGeneric},
		{Code: -4, Value: "self", Role: RoleGeneric},
	}
}

// DefaultVocabulary returns the vocabulary built from DefaultSentinels.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultSentinels())
	if err != nil {
		panic(err)
	}
	return v
}

// Lookup returns the sentinel for code.
func (v *Vocabulary) Lookup(code int) (Sentinel, bool) {
	s, ok := v.byCode[code]
	return s, ok
}

// ForValue returns the sentinel standing for value, used by encoders.
func (v *Vocabulary) ForValue(value string) (Sentinel, bool) {
	s, ok := v.byValue[value]
	return s, ok
}

// Empty returns the empty sentinel.
func (v *Vocabulary) Empty() Sentinel {
	return v.empty
}

// Sentinels returns all sentinels ordered by descending code (-1, -2, ...).
func (v *Vocabulary) Sentinels() []Sentinel {
	out := make([]Sentinel, 0, len(v.byCode))
	for _, s := range v.byCode {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code > out[j].Code })
	return out
}
