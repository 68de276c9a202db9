// Package catalog builds the immutable in-memory index searched by the query
// engine from decoded records.
package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/strtab"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/RoaringBitmap/roaring/v2"
)

// Parent is an entry of a namespace's parent-type list.
type Parent struct {
	Tag  int         `json:"tag"`
	Kind record.Kind `json:"kind"`
	Name string      `json:"name"`
}

// Item is a decoded record placed in its namespace.
type Item struct {
	record.Item
	Namespace  string      `json:"namespace"`
	Ordinal    int         `json:"ordinal"`
	DeclaredOn string      `json:"declared_on,omitempty"`
	ParentKind record.Kind `json:"parent_kind,omitempty"`
}

// TopLevel reports whether the item has no declaring parent.
func (it *Item) TopLevel() bool {
	return it.Parent == record.NoParent
}

// FullPath renders the item as path::name, or path::Parent::name for members.
func (it *Item) FullPath() string {
	var b strings.Builder
	if it.Path != "" {
		b.WriteString(it.Path)
		b.WriteString("::")
	}
	if it.DeclaredOn != "" {
		b.WriteString(it.DeclaredOn)
		b.WriteString("::")
	}
	b.WriteString(it.Name)
	return b.String()
}

// Namespace owns its items in record order plus the lookup structures built
// over them. It is never mutated after Build returns.
type Namespace struct {
	Name    string
	Doc     string
	Items   []Item
	Parents []Parent

	nameKeys   []string
	byName     map[string][]int
	byArity    map[int]*roaring.Bitmap
	callables  int
}

// Len returns the number of items.
func (ns *Namespace) Len() int {
	return len(ns.Items)
}

// NameKey returns the name of item i normalised the way queries are.
func (ns *Namespace) NameKey(i int) string {
	return ns.nameKeys[i]
}

// ByName returns the ordinals of items whose normalised name equals the
// normalised name, in record order.
func (ns *Namespace) ByName(name string) []int {
	return ns.byName[tokenizer.Normalize(name)]
}

// ByArity returns the ordinals of callable items taking n arguments, in
// record order.
func (ns *Namespace) ByArity(n int) []uint32 {
	bm, ok := ns.byArity[n]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// Callables returns the number of items carrying a signature.
func (ns *Namespace) Callables() int {
	return ns.callables
}

// Build decodes one namespace. Records are decoded in order so path
// inheritance holds; the first failing record fails the whole namespace. A
// nil dec selects the default decoder.
func Build(name, doc string, raws []json.RawMessage, tab *strtab.Table, parents []json.RawMessage, dec *record.Decoder) (*Namespace, error) {
	if dec == nil {
		dec = record.NewDecoder(nil, 0)
	}
	ps, err := decodeParents(parents, tab, dec.Kinds())
	if err != nil {
		return nil, withNamespace(err, name)
	}
	decoded, err := dec.DecodeAll(raws, tab)
	if err != nil {
		return nil, withNamespace(err, name)
	}

	ns := &Namespace{
		Name:       name,
		Doc:        doc,
		Items:      make([]Item, len(decoded)),
		Parents:    ps,
		nameKeys:   make([]string, len(decoded)),
		byName:     make(map[string][]int),
		byArity:    make(map[int]*roaring.Bitmap),
	}
	for i, d := range decoded {
		it := Item{Item: d, Namespace: name, Ordinal: i}
		if d.Parent >= 0 && d.Parent < len(ps) {
			it.DeclaredOn = ps[d.Parent].Name
			it.ParentKind = ps[d.Parent].Kind
		} else {
			it.Parent = record.NoParent
		}
		ns.Items[i] = it

		key := tokenizer.Normalize(d.Name)
		ns.nameKeys[i] = key
		ns.byName[key] = append(ns.byName[key], i)

		if d.Signature != nil {
			ns.callables++
			arity := d.Signature.Arity()
			bm, ok := ns.byArity[arity]
			if !ok {
				bm = roaring.New()
				ns.byArity[arity] = bm
			}
			bm.Add(uint32(i))
		}
	}
	for _, bm := range ns.byArity {
		bm.RunOptimize()
	}
	return ns, nil
}

func decodeParents(raws []json.RawMessage, tab *strtab.Table, kinds *record.KindTable) ([]Parent, error) {
	out := make([]Parent, 0, len(raws))
	for i, raw := range raws {
		var entry []any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&entry); err != nil || len(entry) != 2 {
			return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "parent %d must be [kindTag, nameRef]", i)
		}
		num, ok := entry[0].(json.Number)
		if !ok {
			return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "parent %d kind tag has type %T", i, entry[0])
		}
		tag, err := num.Int64()
		if err != nil {
			return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "parent %d kind tag %q", i, num.String())
		}
		ref, err := strtab.ParseRef(entry[1])
		if err != nil {
			return nil, err
		}
		name, err := tab.Resolve(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, Parent{Tag: int(tag), Kind: kinds.Kind(int(tag)), Name: name})
	}
	return out, nil
}

func withNamespace(err error, name string) error {
	if de, ok := apperrors.AsDecodeError(err); ok {
		de.Namespace = name
	}
	return err
}
