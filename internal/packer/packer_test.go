package packer_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/packer"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestYAML = `
namespaces:
  - name: simple_net
    doc: A tiny network
    parents:
      - {kind: trait, name: Loss}
    items:
      - {kind: struct, name: Tensor, path: simple_net, desc: An n-dimensional array}
      - {kind: method, name: zero, parent: Tensor, args: [usize, usize], ret: Tensor}
      - {kind: method, name: shape, parent: Tensor, args: [self], ret: "vec<usize>"}
      - {kind: method, name: get, parent: Tensor, args: [self, usize], ret: "option<f32>"}
      - {kind: tymethod, name: forward, parent: Loss, args: [self, Tensor], ret: Tensor}
      - {kind: fn, name: add, path: simple_net::ops, args: [T, T], ret: T}
      - {kind: fn, name: reset, callable: true}
      - {kind: mod, name: root, path: ""}
  - name: alpha
    items:
      - {kind: fn, name: tensor, path: alpha, args: ["&mut Tensor", "()"]}
`

type flat struct {
	Kind      record.Kind
	Name      string
	Path      string
	Desc      string
	Parent    string
	Signature string
}

func flatten(t *testing.T, data []byte) map[string][]flat {
	t.Helper()
	cat, err := catalog.Load(context.Background(), data, catalog.Options{})
	require.NoError(t, err)
	require.Empty(t, cat.Diagnostics())

	out := make(map[string][]flat)
	for _, name := range cat.Names() {
		ns, _ := cat.Namespace(name)
		for _, it := range ns.Items {
			f := flat{Kind: it.Kind, Name: it.Name, Path: it.Path, Desc: it.Description, Parent: it.DeclaredOn}
			if it.Signature != nil {
				f.Signature = it.Signature.String()
			}
			out[name] = append(out[name], f)
		}
	}
	return out
}

func pack(t *testing.T, opts packer.Options) ([]byte, packer.Report) {
	t.Helper()
	m, err := packer.ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	data, rep, err := packer.Pack(m, opts)
	require.NoError(t, err)
	return data, rep
}

func TestPack_RoundTrip(t *testing.T) {
	t.Parallel()
	data, rep := pack(t, packer.Options{})

	assert.Equal(t, 2, rep.Namespaces)
	assert.Equal(t, 9, rep.Items)
	assert.Equal(t, rep.RawBytes, rep.OutBytes)

	got := flatten(t, data)
	assert.Equal(t, []flat{
		{Kind: record.KindStruct, Name: "Tensor", Path: "simple_net", Desc: "An n-dimensional array"},
		{Kind: record.KindMethod, Name: "zero", Path: "simple_net", Parent: "Tensor", Signature: "(usize, usize) -> Tensor"},
		{Kind: record.KindMethod, Name: "shape", Path: "simple_net", Parent: "Tensor", Signature: "(self) -> vec<usize>"},
		{Kind: record.KindMethod, Name: "get", Path: "simple_net", Parent: "Tensor", Signature: "(self, usize) -> option<f32>"},
		{Kind: record.KindTyMethod, Name: "forward", Path: "simple_net", Parent: "Loss", Signature: "(self, Tensor) -> Tensor"},
		{Kind: record.KindFunction, Name: "add", Path: "simple_net::ops", Signature: "(t, t) -> t"},
		{Kind: record.KindFunction, Name: "reset", Path: "simple_net::ops", Signature: "()"},
		{Kind: "mod", Name: "root", Path: ""},
	}, got["simple_net"])
	assert.Equal(t, []flat{
		{Kind: record.KindFunction, Name: "tensor", Path: "alpha", Signature: "(Tensor, ())"},
	}, got["alpha"])
}

func TestPack_TableShape(t *testing.T) {
	t.Parallel()
	data, rep := pack(t, packer.Options{})

	idx, err := blob.ParseIndex(data)
	require.NoError(t, err)
	ns, err := blob.DecodeNamespace(idx.Namespaces[0])
	require.NoError(t, err)

	assert.Contains(t, ns.Strings, "Tensor")
	assert.Contains(t, ns.Strings, "usize")
	assert.NotContains(t, ns.Strings, "zero", "strings used once are inlined")
	assert.Equal(t, len(ns.Strings), rep.Interned, "alpha interns nothing")

	var first []any
	require.NoError(t, json.Unmarshal(ns.Items[1], &first))
	assert.Equal(t, float64(-1), first[2], "repeated path is elided")
	assert.Positive(t, rep.ElidedPath)

	var tensorParent []any
	require.NoError(t, json.Unmarshal(ns.Parents[1], &tensorParent))
	assert.Equal(t, float64(3), tensorParent[0], "auto-added parent takes the item's kind")
}

func TestPack_ShuffleIsTransparent(t *testing.T) {
	t.Parallel()
	want := flatten(t, mustPack(t, packer.Options{}))

	for _, seed := range []uint64{1, 7, 42, 1 << 40} {
		data := mustPack(t, packer.Options{Seed: seed})
		assert.Equal(t, want, flatten(t, data), "seed %d", seed)
	}
}

func mustPack(t *testing.T, opts packer.Options) []byte {
	data, _ := pack(t, opts)
	return data
}

func TestPack_Compressed(t *testing.T) {
	t.Parallel()
	want := flatten(t, mustPack(t, packer.Options{}))

	for _, c := range []blob.Compression{blob.CompressionLZ4, blob.CompressionZstd} {
		data, rep := pack(t, packer.Options{Compression: c})
		assert.True(t, blob.IsContainer(data))
		assert.Equal(t, len(data), rep.OutBytes)
		assert.Equal(t, want, flatten(t, data), c.String())
	}
}

func TestPack_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
	}{
		{"unknown kind", `{"namespaces":[{"name":"a","items":[{"kind":"gizmo","name":"x"}]}]}`},
		{"bad type", `{"namespaces":[{"name":"a","items":[{"kind":"fn","name":"x","args":["vec<"]}]}]}`},
		{"wildcard type", `{"namespaces":[{"name":"a","items":[{"kind":"fn","name":"x","ret":"_"}]}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := packer.ParseManifest([]byte(tc.manifest))
			require.NoError(t, err)
			_, _, err = packer.Pack(m, packer.Options{})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{
		`namespaces: [{doc: nameless}]`,
		`namespaces: [{name: a}, {name: a}]`,
		`namespaces: {not: a list}`,
	} {
		_, err := packer.ParseManifest([]byte(doc))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, doc)
	}
}
