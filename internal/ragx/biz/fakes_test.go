package biz

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/llm"
)

// fakeEmbed 确定性向量：长度 dim，首元素为文本长度。
type fakeEmbed struct {
	mu    sync.Mutex
	dim   int
	seen  []string
	fail  bool
	wrong bool
}

func (f *fakeEmbed) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("embed backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		f.seen = append(f.seen, t)
		dim := f.dim
		if f.wrong {
			dim++
		}
		v := make([]float32, dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbed) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbed) Name() string { return "fake-embed" }

// fakeChat 按脚本回答。responses 依调用次序消费，耗尽后复用最后一个。
type fakeChat struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	fail      bool
	streamErr error
}

func (f *fakeChat) next() string {
	if len(f.responses) == 0 {
		return ""
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("chat backend down")
	}
	return f.next(), nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, system string) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("chat backend down")
	}
	f.prompts = append(f.prompts, prompt)
	return &llm.GenerateResponse{
		Content:    f.next(),
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// fakeStreamChat 把回答按词切成增量。
type fakeStreamChat struct {
	fakeChat
}

func (f *fakeStreamChat) ChatStream(ctx context.Context, messages []llm.Message, fn llm.StreamHandler) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	if f.streamErr != nil {
		err := f.streamErr
		f.mu.Unlock()
		return nil, err
	}
	content := f.next()
	f.mu.Unlock()

	var b strings.Builder
	for _, word := range strings.SplitAfter(content, " ") {
		if word == "" {
			continue
		}
		if err := fn(word); err != nil {
			return nil, err
		}
		b.WriteString(word)
	}
	return &llm.GenerateResponse{
		Content:    b.String(),
		TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

// fakeVectorStore 内存向量库，按预置结果应答检索。
type fakeVectorStore struct {
	mu         sync.Mutex
	denseHits  []model.RetrievedChunk
	sparseHits []model.RetrievedChunk
	upserted   []model.VectorRecord
	ensured    []string
	failSearch bool
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, collection string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, collection)
	return nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, _, _ string, records []model.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _, _ string, _ []float32, topK int, threshold float64) ([]model.RetrievedChunk, error) {
	if f.failSearch {
		return nil, fmt.Errorf("search failed")
	}
	return cutoff(f.denseHits, topK, threshold), nil
}

func (f *fakeVectorStore) SearchSparse(_ context.Context, _, _ string, _ map[uint32]float32, topK int, threshold float64) ([]model.RetrievedChunk, error) {
	if f.failSearch {
		return nil, fmt.Errorf("search failed")
	}
	return cutoff(f.sparseHits, topK, threshold), nil
}

func (f *fakeVectorStore) Delete(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeVectorStore) Count(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.upserted)), nil
}

func cutoff(hits []model.RetrievedChunk, topK int, threshold float64) []model.RetrievedChunk {
	var out []model.RetrievedChunk
	for _, h := range hits {
		if h.Score > threshold {
			out = append(out, h)
		}
		if len(out) == topK {
			break
		}
	}
	return out
}

func hit(fileNo string, page, chunkID int, score float64, text string) model.RetrievedChunk {
	return model.RetrievedChunk{
		FileNo:  fileNo,
		Page:    page,
		ChunkID: chunkID,
		Score:   score,
		Text:    text,
	}
}
