package biz

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/internal/extract"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

func writeTempText(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func testIngestTemplate() *model.IngestTemplate {
	return &model.IngestTemplate{
		IngestNo: "ing-1",
		Name:     "default",
		Extractions: model.BindingList{
			{StrategyNo: "ext-1", Code: "EXT_TXT"},
		},
		Chunking: model.Binding{
			StrategyNo: "chk-1",
			Code:       "CHK_FIXED",
			Parameter:  model.ParamMap{"max_tokens": 50, "overlap": 10},
		},
		DenseEmbeddings: model.BindingList{
			{StrategyNo: "emb-1", Code: "EMB_OLLAMA", Parameter: model.ParamMap{"dimension": 8}},
		},
	}
}

func newIngestFixture(t *testing.T, store *fakeVectorStore, embedder *fakeEmbed) *IngestPipeline {
	t.Helper()
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	p, err := NewIngestPipeline(testIngestTemplate(), IngestDeps{
		Extract:    extract.Deps{},
		Store:      store,
		Embedder:   embedder,
		Pool:       pool,
		Collection: "rag_chunks",
	})
	require.NoError(t, err)
	return p
}

func TestIngestTextEndToEnd(t *testing.T) {
	store := &fakeVectorStore{}
	p := newIngestFixture(t, store, &fakeEmbed{dim: 8})

	content := strings.Repeat("raft keeps a replicated log across servers. ", 40)
	path := writeTempText(t, "raft.txt", content)

	var (
		mu     sync.Mutex
		stages []IngestProgress
	)
	res, err := p.Ingest(context.Background(), extract.Source{
		Path:     path,
		FileName: "raft.txt",
		UserNo:   "u1",
	}, func(pr IngestProgress) {
		mu.Lock()
		stages = append(stages, pr)
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.FileNo)
	assert.Equal(t, 1, res.Pages)
	assert.Greater(t, res.Chunks, 1)

	require.Len(t, store.upserted, res.Chunks)
	require.Equal(t, []string{"rag_chunks"}, store.ensured)
	for _, rec := range store.upserted {
		assert.Equal(t, res.FileNo, rec.FileNo)
		assert.Equal(t, "raft.txt", rec.FileName)
		assert.Equal(t, model.BuildChunkKey(rec.FileNo, rec.PageNo, rec.IndexNo), rec.ChunkKey)
		assert.Len(t, rec.Dense, 8)
		assert.NotEmpty(t, rec.Sparse)
		assert.NotEmpty(t, rec.Text)
	}

	seen := map[string]bool{}
	for _, pr := range stages {
		assert.False(t, pr.Failed)
		seen[pr.Stage] = true
	}
	for _, stage := range []string{StageExtract, StageChunk, StageEmbed, StageUpsert} {
		assert.True(t, seen[stage], "missing progress for stage %s", stage)
	}
}

func TestIngestUnsupportedExtension(t *testing.T) {
	p := newIngestFixture(t, &fakeVectorStore{}, &fakeEmbed{dim: 8})

	var failed []IngestProgress
	_, err := p.Ingest(context.Background(), extract.Source{
		Path:     "whatever.bin",
		FileName: "whatever.bin",
		UserNo:   "u1",
	}, func(pr IngestProgress) {
		if pr.Failed {
			failed = append(failed, pr)
		}
	})
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_FORMAT", errors.GetReason(err))

	require.Len(t, failed, 1)
	assert.Equal(t, StageExtract, failed[0].Stage)
	assert.NotEmpty(t, failed[0].Message)
}

func TestIngestFormatNotInTemplate(t *testing.T) {
	// 模板只配置了 EXT_TXT，markdown 文件应被拒绝
	p := newIngestFixture(t, &fakeVectorStore{}, &fakeEmbed{dim: 8})

	_, err := p.Ingest(context.Background(), extract.Source{
		Path:     "notes.md",
		FileName: "notes.md",
		UserNo:   "u1",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, "UNSUPPORTED_FORMAT", errors.GetReason(err))
}

func TestIngestEmbedFailurePropagates(t *testing.T) {
	store := &fakeVectorStore{}
	p := newIngestFixture(t, store, &fakeEmbed{dim: 8, fail: true})

	path := writeTempText(t, "doc.txt", strings.Repeat("some text to embed. ", 30))

	var failedStage string
	_, err := p.Ingest(context.Background(), extract.Source{
		Path:     path,
		FileName: "doc.txt",
		UserNo:   "u1",
	}, func(pr IngestProgress) {
		if pr.Failed {
			failedStage = pr.Stage
		}
	})
	require.Error(t, err)
	assert.Equal(t, StageEmbed, failedStage)
	assert.Empty(t, store.upserted)
}

func TestIngestDimensionMismatchFailsEmbedStage(t *testing.T) {
	store := &fakeVectorStore{}
	p := newIngestFixture(t, store, &fakeEmbed{dim: 8, wrong: true})

	path := writeTempText(t, "doc.txt", strings.Repeat("dimension check. ", 30))
	_, err := p.Ingest(context.Background(), extract.Source{Path: path, FileName: "doc.txt", UserNo: "u1"}, nil)
	require.Error(t, err)
	assert.Empty(t, store.upserted)
}

func TestIngestEmptyFileSkipsUpsert(t *testing.T) {
	store := &fakeVectorStore{}
	p := newIngestFixture(t, store, &fakeEmbed{dim: 8})

	path := writeTempText(t, "empty.txt", "")
	res, err := p.Ingest(context.Background(), extract.Source{Path: path, FileName: "empty.txt", UserNo: "u1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, store.upserted)
	assert.Empty(t, store.ensured)
}

func TestIngestWorksWithoutPool(t *testing.T) {
	store := &fakeVectorStore{}
	p, err := NewIngestPipeline(testIngestTemplate(), IngestDeps{
		Store:      store,
		Embedder:   &fakeEmbed{dim: 8},
		Collection: "rag_chunks",
	})
	require.NoError(t, err)

	path := writeTempText(t, "doc.txt", strings.Repeat("pooled or not. ", 30))
	res, err := p.Ingest(context.Background(), extract.Source{Path: path, FileName: "doc.txt", UserNo: "u1"}, nil)
	require.NoError(t, err)
	assert.Len(t, store.upserted, res.Chunks)
}
