package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/pkg/utils/errors"
)

func TestEmbedPassagesAddsPrefix(t *testing.T) {
	provider := &fakeEmbed{dim: 8}
	e := NewDenseEmbedder(provider, 8)

	vecs, err := e.EmbedPassages(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	for _, seen := range provider.seen {
		assert.True(t, strings.HasPrefix(seen, "passage: "), "got %q", seen)
	}
}

func TestEmbedQueryAddsPrefix(t *testing.T) {
	provider := &fakeEmbed{dim: 8}
	e := NewDenseEmbedder(provider, 8)

	_, err := e.EmbedQuery(context.Background(), "what is raft")
	require.NoError(t, err)
	require.Len(t, provider.seen, 1)
	assert.Equal(t, "query: what is raft", provider.seen[0])
}

func TestEmbedDimensionMismatchIsHardError(t *testing.T) {
	provider := &fakeEmbed{dim: 8, wrong: true}
	e := NewDenseEmbedder(provider, 8)

	_, err := e.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, "INTERNAL_ERROR", errors.GetReason(err))

	_, err = e.EmbedPassages(context.Background(), []string{"p"})
	require.Error(t, err)
}

func TestSparseEmbedDeterministic(t *testing.T) {
	e := NewSparseEmbedder()
	a := e.Embed("the quick brown fox jumps over the lazy dog")
	b := e.Embed("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestSparseEmbedLogScaledTF(t *testing.T) {
	e := NewSparseEmbedder()
	once := e.Embed("unique")
	thrice := e.Embed("unique unique unique")

	require.Len(t, once, 1)
	require.Len(t, thrice, 1)
	for pos, w := range once {
		assert.InDelta(t, 1.0, w, 1e-6)
		// 1 + ln(3)
		assert.InDelta(t, 2.0986, float64(thrice[pos]), 1e-3)
	}
}

func TestSparseEmbedCaseInsensitive(t *testing.T) {
	e := NewSparseEmbedder()
	assert.Equal(t, e.Embed("Raft Consensus"), e.Embed("raft consensus"))
}

func TestSparseEmbedCJKPerRune(t *testing.T) {
	e := NewSparseEmbedder()
	weights := e.Embed("向量检索")
	assert.Len(t, weights, 4)
}

func TestSparseEmbedEmptyText(t *testing.T) {
	e := NewSparseEmbedder()
	assert.Empty(t, e.Embed(""))
	assert.Empty(t, e.Embed("   \n\t"))
}
