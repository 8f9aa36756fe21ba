package biz

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kart-io/ragx/pkg/llm"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// 稀疏向量的哈希空间维度，2^20。
const sparseDim = 1 << 20

// DenseEmbedder 通过 Embedding 供应商生成稠密向量。
// 文档侧与查询侧分别带 E5 风格前缀，维度与策略参数不符时硬失败。
type DenseEmbedder struct {
	provider llm.EmbeddingProvider
	dim      int
}

// NewDenseEmbedder 创建稠密向量生成器。dim 为期望的向量维度。
func NewDenseEmbedder(provider llm.EmbeddingProvider, dim int) *DenseEmbedder {
	return &DenseEmbedder{provider: provider, dim: dim}
}

// Dim 返回期望维度。
func (e *DenseEmbedder) Dim() int { return e.dim }

// EmbedPassages 为文档分块批量生成向量。
func (e *DenseEmbedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = "passage: " + t
	}

	vecs, err := e.provider.Embed(ctx, prefixed)
	if err != nil {
		return nil, errors.ErrEmbedFailed.WithCause(err)
	}
	if len(vecs) != len(texts) {
		return nil, errors.ErrEmbedFailed.WithMessagef("provider returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := e.checkDim(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

// EmbedQuery 为查询生成向量。
func (e *DenseEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.provider.EmbedSingle(ctx, "query: "+text)
	if err != nil {
		return nil, errors.ErrEmbedFailed.WithCause(err)
	}
	if err := e.checkDim(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *DenseEmbedder) checkDim(vec []float32) error {
	if e.dim > 0 && len(vec) != e.dim {
		return errors.ErrEmbedFailed.WithMessagef("embedding dimension %d does not match configured %d", len(vec), e.dim)
	}
	return nil
}

// SparseEmbedder 生成哈希词袋稀疏向量：小写词条经 FNV 哈希落入
// 2^20 维空间，权重为对数缩放的词频。同一文本的输出是确定的。
type SparseEmbedder struct{}

// NewSparseEmbedder 创建稀疏向量生成器。
func NewSparseEmbedder() *SparseEmbedder {
	return &SparseEmbedder{}
}

// Embed 生成稀疏向量。空文本返回空映射。
func (e *SparseEmbedder) Embed(text string) map[uint32]float32 {
	counts := make(map[uint32]int)
	for _, term := range splitTerms(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		counts[h.Sum32()%sparseDim]++
	}

	out := make(map[uint32]float32, len(counts))
	for pos, tf := range counts {
		out[pos] = float32(1 + math.Log(float64(tf)))
	}
	return out
}

// splitTerms 按非字母数字切词并小写。CJK 字符逐字成词。
func splitTerms(text string) []string {
	var terms []string
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, strings.ToLower(b.String()))
			b.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}
