package executor_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
	"version": 1,
	"namespaces": [
		{
			"name": "simple_net",
			"strings": ["Tensor", "zero", "f32", "usize", "simple_net"],
			"items": [
				[3, 0, 4, -1, null, null],
				[11, 1, -1, -1, 0, [[[3], [3]], [0]]],
				[5, "add", -1, -1, null, [[[-2], [-2]], [-2]]],
				[5, "fma", -1, -1, null, [[[-2], [-2], [-2]], [-2]]],
				[11, "get", -1, -1, 0, [[[-4], [3], [3]], ["option", [[2]]]]],
				[3, "TensorView", -1, -1, null, null]
			],
			"parents": [[3, 0]]
		},
		{
			"name": "alpha",
			"strings": ["tensor"],
			"items": [[5, 0, "alpha", -1, null, [[[-2], [-2]], [-2]]]],
			"parents": []
		},
		{
			"name": "corrupt",
			"strings": [],
			"items": [[3, 99, -1, -1, null, null]],
			"parents": []
		}
	]
}`

type staticSource struct{ cat *catalog.Catalog }

func (s staticSource) Current() *catalog.Catalog { return s.cat }

func load(t testing.TB) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(context.Background(), []byte(fixture), catalog.Options{})
	require.NoError(t, err)
	return cat
}

func paths(ms []ranker.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.FullPath
	}
	return out
}

func TestSearch_Tiers(t *testing.T) {
	t.Parallel()
	cat := load(t)

	tests := []struct {
		name  string
		term  string
		tier  ranker.Tier
		paths []string
	}{
		{"empty term", "", ranker.TierNone, []string{}},
		{"blank term", "   ", ranker.TierNone, []string{}},
		{"no match", "nothing_here", ranker.TierNone, []string{}},
		{
			"exact across namespaces in name order",
			"TENSOR",
			ranker.TierExact,
			[]string{"alpha::tensor", "simple_net::Tensor"},
		},
		{"substring", "view", ranker.TierSubstring, []string{"simple_net::TensorView"}},
		{"exact wins over substring", "zero", ranker.TierExact, []string{"simple_net::Tensor::zero"}},
		{
			"generic signature",
			"_, _ -> T",
			ranker.TierSignature,
			[]string{"alpha::tensor", "simple_net::add"},
		},
		{
			"wildcard arguments without return",
			"_, _",
			ranker.TierSignature,
			[]string{"alpha::tensor", "simple_net::Tensor::zero", "simple_net::add"},
		},
		{"arity must match", "_, _, _ -> T", ranker.TierSignature, []string{"simple_net::fma"}},
		{"named generic", "T, T -> T", ranker.TierSignature, []string{"alpha::tensor", "simple_net::add"}},
		{"nested return", "self, usize, usize -> option<f32>", ranker.TierSignature, []string{"simple_net::Tensor::get"}},
		{"malformed pattern degrades", "a, b ->", ranker.TierNone, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := executor.Search(cat, tt.term)
			assert.Equal(t, tt.paths, paths(got))
			for _, m := range got {
				assert.Equal(t, tt.tier, m.Tier)
			}
		})
	}
}

func TestSearch_CorruptNamespaceLeavesSiblings(t *testing.T) {
	t.Parallel()
	cat := load(t)

	_, ok := cat.Namespace("corrupt")
	assert.False(t, ok)
	require.Len(t, cat.Diagnostics(), 1)
	assert.NotEmpty(t, executor.Search(cat, "tensor"))
}

const spacedNames = `{
	"version": 1,
	"namespaces": [{
		"name": "spaced",
		"strings": ["Foo  Bar"],
		"items": [
			[3, 0, "spaced", -1, null, null],
			[5, " pad", -1, -1, null, null],
			[5, "trail\t", -1, -1, null, null],
			[5, "pad", -1, -1, null, null]
		],
		"parents": []
	}]
}`

func TestSearch_ExactTierContainsEveryItem(t *testing.T) {
	t.Parallel()

	spaced, err := catalog.Load(context.Background(), []byte(spacedNames), catalog.Options{})
	require.NoError(t, err)

	for label, cat := range map[string]*catalog.Catalog{"fixture": load(t), "whitespace": spaced} {
		t.Run(label, func(t *testing.T) {
			t.Parallel()
			for _, name := range cat.Names() {
				ns, _ := cat.Namespace(name)
				for i := range ns.Items {
					it := ns.Items[i]
					got := executor.Search(cat, it.Name)
					require.NotEmpty(t, got, "%q", it.Name)
					found := false
					for _, m := range got {
						assert.Equal(t, ranker.TierExact, m.Tier, "%q", it.Name)
						if m.Item.Namespace == it.Namespace && m.Item.Ordinal == it.Ordinal {
							found = true
						}
					}
					assert.True(t, found, "%q", it.Name)
				}
			}
		})
	}
}

func TestSearch_WhitespaceInsensitiveNames(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Load(context.Background(), []byte(spacedNames), catalog.Options{})
	require.NoError(t, err)

	got := executor.Search(cat, "foo bar")
	require.Len(t, got, 1)
	assert.Equal(t, ranker.TierExact, got[0].Tier)
	assert.Equal(t, "Foo  Bar", got[0].Item.Name)

	got = executor.Search(cat, "PAD")
	require.Len(t, got, 2)
	assert.Equal(t, " pad", got[0].Item.Name)
	assert.Equal(t, "pad", got[1].Item.Name)
}

func TestSearch_NilCatalog(t *testing.T) {
	t.Parallel()
	assert.Empty(t, executor.Search(nil, "tensor"))
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()
	cat := load(t)
	exec := executor.New(staticSource{cat}, 2)

	res, err := exec.Execute(context.Background(), parser.Parse("_, _"), 2)
	require.NoError(t, err)
	assert.Equal(t, ranker.TierSignature, res.Tier)
	assert.Equal(t, 3, res.TotalHits)
	assert.Equal(t, []string{"alpha::tensor", "simple_net::Tensor::zero"}, paths(res.Results))
	assert.Equal(t, "_, _", res.Pattern)
	assert.Equal(t, fmt.Sprintf("%016x", cat.Fingerprint()), res.Fingerprint)

	res, err = exec.Execute(context.Background(), parser.Parse(""), 10)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalHits)
}

func TestExecutor_NotReady(t *testing.T) {
	t.Parallel()

	_, err := executor.New(staticSource{}, 0).Execute(context.Background(), parser.Parse("x"), 10)
	assert.ErrorIs(t, err, apperrors.ErrCatalogNotReady)
}

type waitingSource struct {
	staticSource
	ready chan *catalog.Catalog
}

func (s waitingSource) Wait(ctx context.Context) (*catalog.Catalog, error) {
	select {
	case cat := <-s.ready:
		return cat, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCatalogNotReady, ctx.Err())
	}
}

func TestExecutor_WaitsForFirstCatalog(t *testing.T) {
	t.Parallel()

	src := waitingSource{ready: make(chan *catalog.Catalog, 1)}
	src.ready <- load(t)
	res, err := executor.New(src, 0).Execute(context.Background(), parser.Parse("add"), 10)
	require.NoError(t, err)
	assert.Equal(t, ranker.TierExact, res.Tier)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = executor.New(waitingSource{ready: make(chan *catalog.Catalog)}, 0).Execute(ctx, parser.Parse("add"), 10)
	assert.ErrorIs(t, err, apperrors.ErrCatalogNotReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := executor.New(staticSource{load(t)}, 1).Execute(ctx, parser.Parse("tensor"), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkSearch(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(`{"version":1,"namespaces":[`)
	for n := 0; n < 8; n++ {
		if n > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"name":"ns%d","strings":["usize"],"items":[`, n)
		for i := 0; i < 2000; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `[11,"method_%d",-1,-1,null,[[[-4],[0]],[0]]]`, i)
		}
		sb.WriteString(`],"parents":[]}`)
	}
	sb.WriteString(`]}`)
	cat, err := catalog.Load(context.Background(), []byte(sb.String()), catalog.Options{})
	require.NoError(b, err)

	for _, term := range []string{"method_1999", "od_19", "self, usize -> usize"} {
		b.Run(term, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				executor.Search(cat, term)
			}
		})
	}
}
