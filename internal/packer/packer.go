package packer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/strtab"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
)

// Options configure Pack. Zero values select the default vocabularies, no
// shuffling, interning of strings used at least twice and bare JSON output.
type Options struct {
	Kinds       *record.KindTable
	Vocabulary  *strtab.Vocabulary
	Compression blob.Compression
	Seed        uint64
	MinUses     int
}

// Report summarises a Pack run.
type Report struct {
	Namespaces int `json:"namespaces"`
	Items      int `json:"items"`
	Interned   int `json:"interned"`
	Inlined    int `json:"inlined"`
	ElidedPath int `json:"elided_paths"`
	RawBytes   int `json:"raw_bytes"`
	OutBytes   int `json:"out_bytes"`
}

// Pack encodes m. The output decodes with catalog.Load to the items of m, in
// manifest order, for any Seed.
func Pack(m *Manifest, opts Options) ([]byte, Report, error) {
	if opts.Kinds == nil {
		opts.Kinds = record.DefaultKindTable()
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = strtab.DefaultVocabulary()
	}
	if opts.MinUses <= 0 {
		opts.MinUses = 2
	}

	var rep Report
	out := make([]*blob.Namespace, 0, len(m.Namespaces))
	for i := range m.Namespaces {
		ns, nsRep, err := packNamespace(&m.Namespaces[i], opts)
		if err != nil {
			return nil, Report{}, err
		}
		out = append(out, ns)
		rep.Namespaces++
		rep.Items += nsRep.Items
		rep.Interned += nsRep.Interned
		rep.Inlined += nsRep.Inlined
		rep.ElidedPath += nsRep.ElidedPath
	}

	raw, err := blob.Marshal(out)
	if err != nil {
		return nil, Report{}, err
	}
	rep.RawBytes = len(raw)
	data := raw
	if opts.Compression != blob.CompressionNone {
		if data, err = blob.Wrap(raw, opts.Compression); err != nil {
			return nil, Report{}, err
		}
	}
	rep.OutBytes = len(data)

	slog.Default().With("component", "packer").Debug("index packed",
		"namespaces", rep.Namespaces,
		"items", rep.Items,
		"interned", rep.Interned,
		"raw_bytes", rep.RawBytes,
		"out_bytes", rep.OutBytes,
		"compression", opts.Compression.String(),
	)
	return data, rep, nil
}

type nsPacker struct {
	opts    Options
	in      *interner
	empty   int
	parents map[string]int
	ptuples [][]any
}

func packNamespace(spec *NamespaceSpec, opts Options) (*blob.Namespace, Report, error) {
	p := &nsPacker{
		opts:    opts,
		in:      newInterner(opts.MinUses),
		empty:   opts.Vocabulary.Empty().Code,
		parents: make(map[string]int),
	}
	fail := func(err error) (*blob.Namespace, Report, error) {
		return nil, Report{}, fmt.Errorf("namespace %q: %w", spec.Name, err)
	}

	for _, ps := range spec.Parents {
		if err := p.addParent(ps.Name, ps.Kind); err != nil {
			return fail(err)
		}
	}

	var rep Report
	tuples := make([][]any, 0, len(spec.Items))
	cursor := ""
	for i := range spec.Items {
		it := &spec.Items[i]
		tuple, elided, err := p.item(it, spec, cursor)
		if err != nil {
			return fail(fmt.Errorf("item %d (%s): %w", i, it.Name, err))
		}
		if elided {
			rep.ElidedPath++
		}
		tuples = append(tuples, tuple)
		cursor = resolvedPath(it, cursor)
	}

	ns := &blob.Namespace{
		Name:    spec.Name,
		Doc:     spec.Doc,
		Strings: p.in.assign(opts.Seed),
		Items:   make([]json.RawMessage, 0, len(tuples)),
		Parents: make([]json.RawMessage, 0, len(p.ptuples)),
	}
	for _, t := range tuples {
		raw, err := json.Marshal(t)
		if err != nil {
			return fail(err)
		}
		ns.Items = append(ns.Items, raw)
	}
	for _, t := range p.ptuples {
		raw, err := json.Marshal(t)
		if err != nil {
			return fail(err)
		}
		ns.Parents = append(ns.Parents, raw)
	}

	rep.Items = len(tuples)
	rep.Interned = len(ns.Strings)
	rep.Inlined = p.in.inlined()
	return ns, rep, nil
}

func (p *nsPacker) tag(kind string) (int, error) {
	tag, ok := p.opts.Kinds.Tag(record.Kind(kind))
	if !ok {
		return 0, fmt.Errorf("unknown kind %q: %w", kind, apperrors.ErrInvalidInput)
	}
	return tag, nil
}

func (p *nsPacker) addParent(name, kind string) error {
	if _, ok := p.parents[name]; ok {
		return nil
	}
	if kind == "" {
		kind = string(record.KindStruct)
	}
	tag, err := p.tag(kind)
	if err != nil {
		return err
	}
	p.parents[name] = len(p.ptuples)
	p.ptuples = append(p.ptuples, []any{tag, p.ref(name)})
	return nil
}

func (p *nsPacker) item(it *ItemSpec, spec *NamespaceSpec, cursor string) ([]any, bool, error) {
	tag, err := p.tag(it.Kind)
	if err != nil {
		return nil, false, err
	}

	var (
		path   any
		elided bool
	)
	switch full := resolvedPath(it, cursor); {
	case full == cursor:
		path, elided = p.empty, true
	case full == "":
		// A literal "" clears the path; the sentinel would inherit.
		path = ""
	default:
		path = p.ref(full)
	}

	var parent any
	if it.Parent != "" {
		if _, ok := p.parents[it.Parent]; !ok {
			if err := p.addParent(it.Parent, parentKind(spec, it.Parent)); err != nil {
				return nil, false, err
			}
		}
		parent = p.parents[it.Parent]
	}

	var sig any
	if it.hasSignature() {
		if sig, err = p.signature(it); err != nil {
			return nil, false, err
		}
	}

	return []any{tag, p.ref(it.Name), path, p.ref(it.Desc), parent, sig}, elided, nil
}

func resolvedPath(it *ItemSpec, cursor string) string {
	if it.Path == nil {
		return cursor
	}
	return *it.Path
}

func parentKind(spec *NamespaceSpec, name string) string {
	for _, it := range spec.Items {
		if it.Name == name && it.Parent == "" {
			return it.Kind
		}
	}
	return ""
}

func (p *nsPacker) signature(it *ItemSpec) ([]any, error) {
	args := make([]any, 0, len(it.Args))
	for _, a := range it.Args {
		t, err := p.typeText(a)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}
	if it.Ret == "" || it.Ret == "()" {
		return []any{args}, nil
	}
	ret, err := p.typeText(it.Ret)
	if err != nil {
		return nil, err
	}
	return []any{args, ret}, nil
}

func (p *nsPacker) typeText(text string) ([]any, error) {
	t, err := parser.ParseType(text)
	if err != nil {
		return nil, fmt.Errorf("type %q: %w: %v", text, apperrors.ErrInvalidInput, err)
	}
	return p.typeRef(t), nil
}

func (p *nsPacker) typeRef(t parser.TypePattern) []any {
	if t.Unit {
		return []any{p.empty}
	}
	var name any
	if s, ok := p.opts.Vocabulary.ForValue(strings.ToLower(t.Name)); ok && s.Role == strtab.RoleGeneric {
		name = s.Code
	} else {
		name = p.ref(t.Name)
	}
	if len(t.Params) == 0 {
		return []any{name}
	}
	params := make([]any, len(t.Params))
	for i, q := range t.Params {
		params[i] = p.typeRef(q)
	}
	return []any{name, params}
}

// ref encodes s outside type positions: the empty sentinel for "", a value
// sentinel when one exists, otherwise a table index or inline literal.
func (p *nsPacker) ref(s string) any {
	if s == "" {
		return p.empty
	}
	if sent, ok := p.opts.Vocabulary.ForValue(s); ok && sent.Role == strtab.RoleValue {
		return sent.Code
	}
	return p.in.use(s)
}
