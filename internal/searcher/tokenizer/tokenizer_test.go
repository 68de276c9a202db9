package tokenizer_test

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []tokenizer.Token) []tokenizer.Kind {
	out := make([]tokenizer.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tokens, err := tokenizer.Tokenize("&mut Self, Option<F32> -> _")
	require.NoError(t, err)

	assert.Equal(t, []tokenizer.Kind{
		tokenizer.Ident, tokenizer.Comma, tokenizer.Ident, tokenizer.LAngle,
		tokenizer.Ident, tokenizer.RAngle, tokenizer.Arrow, tokenizer.Wildcard,
		tokenizer.EOF,
	}, kinds(tokens))
	assert.Equal(t, "Self", tokens[0].Term)
	assert.Equal(t, "Option", tokens[2].Term)
	assert.Equal(t, "F32", tokens[4].Term)
}

func TestTokenize_PathsAndStars(t *testing.T) {
	t.Parallel()

	tokens, err := tokenizer.Tokenize("std::vec::Vec<*>, my_type")
	require.NoError(t, err)
	assert.Equal(t, "std::vec::Vec", tokens[0].Term)
	assert.Equal(t, tokenizer.Wildcard, tokens[2].Kind)
	assert.Equal(t, "my_type", tokens[5].Term)
}

func TestTokenize_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"a - b", "a, [b]", "a; b"} {
		_, err := tokenizer.Tokenize(in)
		assert.Error(t, err, in)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tensor", tokenizer.Normalize("  Tensor "))
	assert.Equal(t, "a b", tokenizer.Normalize("A \t  B"))
	assert.Empty(t, tokenizer.Normalize("   "))
}

func TestIsPattern(t *testing.T) {
	t.Parallel()

	assert.True(t, tokenizer.IsPattern("t, t"))
	assert.True(t, tokenizer.IsPattern("-> f32"))
	assert.False(t, tokenizer.IsPattern("tensor"))
	assert.True(t, tokenizer.IsPattern("usize -> T"))
	assert.False(t, tokenizer.IsPattern("u32"))
	assert.False(t, tokenizer.IsPattern("option<f32>"))
}
