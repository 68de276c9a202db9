package record

import "strings"

// NoParent marks an item without a declaring parent.
const NoParent = -1

// TypeRef is one type in a signature: a concrete named type, a generic
// placeholder, or the unit marker, with optional nested parameters.
type TypeRef struct {
	Name    string    `json:"name"`
	Generic bool      `json:"generic,omitempty"`
	Unit    bool      `json:"unit,omitempty"`
	Params  []TypeRef `json:"params,omitempty"`
}

// UnitType is the return type of items that return nothing.
func UnitType() TypeRef {
	return TypeRef{Name: "()", Unit: true}
}

func (t TypeRef) String() string {
	if len(t.Params) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Signature describes a callable item's argument and return types.
type Signature struct {
	Args []TypeRef `json:"args"`
	Ret  TypeRef   `json:"ret"`
}

// Arity returns the argument count.
func (s *Signature) Arity() int {
	return len(s.Args)
}

func (s *Signature) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = a.String()
	}
	out := "(" + strings.Join(parts, ", ") + ")"
	if !s.Ret.Unit {
		out += " -> " + s.Ret.String()
	}
	return out
}

// Item is a decoded record. Parent indexes the namespace's parent-type list.
type Item struct {
	Tag         int        `json:"tag"`
	Kind        Kind       `json:"kind"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Description string     `json:"description"`
	Parent      int        `json:"parent"`
	Signature   *Signature `json:"signature,omitempty"`
}

// Callable reports whether the item carries a signature.
func (it *Item) Callable() bool {
	return it.Signature != nil
}
