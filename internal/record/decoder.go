// Package record decodes positional item tuples of the compact index encoding
// into Items.
//
// A record is the 6-tuple
//
//	[kindTag, nameRef, pathRef, descRef, parentIndex|null, signature|null]
//
// where signature is [args, ret] and every type is [nameRef] or
// [nameRef, [params...]]. A pathRef equal to the empty sentinel repeats the
// path of the previous record, so records of one namespace must be decoded in
// order with the current path threaded through Decode.
package record

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/strtab"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
)

const (
	TupleArity      = 6
	DefaultMaxDepth = 16
)

// Decoder turns raw tuples into Items.
type Decoder struct {
	kinds    *KindTable
	maxDepth int
}

// NewDecoder creates a Decoder. A nil kinds selects DefaultKindTable and a
// non-positive maxDepth selects DefaultMaxDepth.
func NewDecoder(kinds *KindTable, maxDepth int) *Decoder {
	if kinds == nil {
		kinds = DefaultKindTable()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Decoder{kinds: kinds, maxDepth: maxDepth}
}

// Kinds returns the decoder's tag vocabulary.
func (d *Decoder) Kinds() *KindTable {
	return d.kinds
}

// DecodeAll decodes records in order, folding the current path from one
// record into the next. The first failure aborts with the record index set on
// the returned DecodeError.
func (d *Decoder) DecodeAll(raws []json.RawMessage, tab *strtab.Table) ([]Item, error) {
	items := make([]Item, 0, len(raws))
	cursor := ""
	for i, raw := range raws {
		item, next, err := d.Decode(raw, tab, cursor)
		if err != nil {
			if de, ok := apperrors.AsDecodeError(err); ok {
				de.Record = i
			}
			return nil, err
		}
		items = append(items, item)
		cursor = next
	}
	return items, nil
}

// Decode decodes one raw tuple. cursor is the path of the previous record in
// the same namespace; the returned string is the cursor for the next one.
func (d *Decoder) Decode(raw json.RawMessage, tab *strtab.Table, cursor string) (Item, string, error) {
	var tuple []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&tuple); err != nil {
		return Item{}, cursor, apperrors.Decodef(apperrors.ErrMalformedTuple, "record is not an array: %v", err)
	}
	return d.DecodeTuple(tuple, tab, cursor)
}

// DecodeTuple decodes an already parsed tuple.
func (d *Decoder) DecodeTuple(tuple []any, tab *strtab.Table, cursor string) (Item, string, error) {
	if len(tuple) != TupleArity {
		return Item{}, cursor, apperrors.Decodef(apperrors.ErrMalformedTuple, "record has %d fields, want %d", len(tuple), TupleArity)
	}

	tag, err := toInt(tuple[0], "kind tag")
	if err != nil {
		return Item{}, cursor, err
	}
	item := Item{Tag: tag, Kind: d.kinds.Kind(tag), Parent: NoParent}

	if item.Name, err = resolve(tuple[1], tab); err != nil {
		return Item{}, cursor, err
	}

	pathRef, err := strtab.ParseRef(tuple[2])
	if err != nil {
		return Item{}, cursor, err
	}
	if tab.IsEmptySentinel(pathRef) {
		item.Path = cursor
	} else if item.Path, err = tab.Resolve(pathRef); err != nil {
		return Item{}, cursor, err
	}

	if item.Description, err = resolve(tuple[3], tab); err != nil {
		return Item{}, cursor, err
	}

	item.Parent = parentIndex(tuple[4])

	if tuple[5] != nil {
		sig, err := d.decodeSignature(tuple[5], tab)
		if err != nil {
			return Item{}, cursor, err
		}
		item.Signature = sig
	}
	return item, item.Path, nil
}

func (d *Decoder) decodeSignature(v any, tab *strtab.Table) (*Signature, error) {
	parts, ok := v.([]any)
	if !ok || len(parts) == 0 || len(parts) > 2 {
		return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "signature must be [args] or [args, ret]")
	}
	sig := &Signature{Args: []TypeRef{}, Ret: UnitType()}
	if parts[0] != nil {
		args, ok := parts[0].([]any)
		if !ok {
			return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "signature arguments must be an array")
		}
		for _, a := range args {
			t, err := d.decodeType(a, tab, 1)
			if err != nil {
				return nil, err
			}
			sig.Args = append(sig.Args, t)
		}
	}
	if len(parts) == 2 && parts[1] != nil {
		if arr, ok := parts[1].([]any); ok && len(arr) == 0 {
			return sig, nil
		}
		ret, err := d.decodeType(parts[1], tab, 1)
		if err != nil {
			return nil, err
		}
		sig.Ret = ret
	}
	return sig, nil
}

func (d *Decoder) decodeType(v any, tab *strtab.Table, depth int) (TypeRef, error) {
	if depth > d.maxDepth {
		return TypeRef{}, apperrors.Decodef(apperrors.ErrTooDeep, "type nesting exceeds %d", d.maxDepth)
	}
	nameVal := v
	var params []any
	if arr, ok := v.([]any); ok {
		switch len(arr) {
		case 1:
			nameVal = arr[0]
		case 2:
			nameVal = arr[0]
			p, ok := arr[1].([]any)
			if !ok && arr[1] != nil {
				return TypeRef{}, apperrors.Decodef(apperrors.ErrMalformedTuple, "type parameters must be an array")
			}
			params = p
		default:
			return TypeRef{}, apperrors.Decodef(apperrors.ErrMalformedTuple, "type must be [name] or [name, params]")
		}
	}

	ref, err := strtab.ParseRef(nameVal)
	if err != nil {
		return TypeRef{}, err
	}
	if tab.IsEmptySentinel(ref) || ref.IsNull() {
		return UnitType(), nil
	}
	name, err := tab.Resolve(ref)
	if err != nil {
		return TypeRef{}, err
	}
	t := TypeRef{Name: name}
	if s, ok := tab.Sentinel(ref); ok && s.Role == strtab.RoleGeneric {
		t.Generic = true
	}
	for _, p := range params {
		pt, err := d.decodeType(p, tab, depth+1)
		if err != nil {
			return TypeRef{}, err
		}
		t.Params = append(t.Params, pt)
	}
	return t, nil
}

func resolve(v any, tab *strtab.Table) (string, error) {
	ref, err := strtab.ParseRef(v)
	if err != nil {
		return "", err
	}
	return tab.Resolve(ref)
}

// parentIndex reads the parent field. Anything that is not a non-negative
// integer leaves the item top-level.
func parentIndex(v any) int {
	var n float64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil || i < 0 || i > math.MaxInt32 {
			return NoParent
		}
		return int(i)
	case float64:
		n = x
	default:
		return NoParent
	}
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		return NoParent
	}
	return int(n)
}

func toInt(v any, field string) (int, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, apperrors.Decodef(apperrors.ErrMalformedTuple, "%s %q is not a small integer", field, x.String())
		}
		return int(n), nil
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt32 || x < math.MinInt32 {
			return 0, apperrors.Decodef(apperrors.ErrMalformedTuple, "%s %v is not a small integer", field, x)
		}
		return int(x), nil
	default:
		return 0, apperrors.Decodef(apperrors.ErrMalformedTuple, "%s has type %T", field, v)
	}
}
