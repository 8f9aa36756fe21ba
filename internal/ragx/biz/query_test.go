package biz

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/internal/events"
	"github.com/kart-io/ragx/internal/memory"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/llm"
)

// memHistory 内存历史存储，替代 Mongo。
type memHistory struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
}

func (h *memHistory) Append(_ context.Context, msg model.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

func (h *memHistory) List(_ context.Context, userNo, sessionNo string) ([]model.ChatMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range h.msgs {
		if m.UserNo == userNo && m.SessionNo == sessionNo {
			out = append(out, m)
		}
	}
	return out, nil
}

func (h *memHistory) Clear(_ context.Context, userNo, sessionNo string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var kept []model.ChatMessage
	var removed int64
	for _, m := range h.msgs {
		if m.UserNo == userNo && m.SessionNo == sessionNo {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	h.msgs = kept
	return removed, nil
}

type queryFixture struct {
	history *memHistory
	rdb     *goredis.Client
	pipe    *QueryPipeline
}

func newQueryFixture(t *testing.T, chat llm.ChatProvider, store *fakeVectorStore, required bool) *queryFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	transformer, err := NewTransformer(model.StrategyBinding{Code: "TRF_NONE"}, nil)
	require.NoError(t, err)
	reranker, err := NewReranker(model.StrategyBinding{Code: "RRK_NONE", Parameter: model.ParamMap{"top_k": 5}}, nil)
	require.NoError(t, err)

	history := &memHistory{}
	session := memory.NewManager(history).GetOrCreate("u1", "s1", "fake-model")

	pipe := NewQueryPipeline(QueryPipelineConfig{
		Transformer: transformer,
		Retriever:   newTestRetriever(t, store, RetrieverConfig{Type: RetrieveSemantic, TopK: 10}),
		Reranker:    reranker,
		Prompt:      NewPromptAssembler("", ""),
		Generator:   NewGeneratorWithProvider(chat, "fake-model", "llm-1"),
		Session:     session,
		Emitter:     events.NewEmitter(rdb, ""),
		Required:    required,
	})
	return &queryFixture{history: history, rdb: rdb, pipe: pipe}
}

func (f *queryFixture) eventKinds(t *testing.T) []string {
	t.Helper()
	entries, err := f.rdb.XRange(context.Background(), events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	kinds := make([]string, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Values["kind"].(string))
	}
	return kinds
}

func TestQueryHappyPathPersistsBothTurns(t *testing.T) {
	chat := &fakeChat{responses: []string{"the answer"}}
	store := &fakeVectorStore{denseHits: []model.RetrievedChunk{
		hit("f1", 1, 0, 0.9, "relevant passage"),
	}}
	f := newQueryFixture(t, chat, store, true)

	res, err := f.pipe.Query(context.Background(), "what is raft", nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer", res.Answer)
	require.Len(t, res.References, 1)

	require.Len(t, f.history.msgs, 2)
	human, ai := f.history.msgs[0], f.history.msgs[1]
	assert.Equal(t, model.RoleHuman, human.Role)
	assert.Equal(t, "what is raft", human.Content)
	assert.Equal(t, model.RoleAI, ai.Role)
	assert.Equal(t, "the answer", ai.Content)
	assert.Equal(t, res.MessageNo, ai.MessageNo)
	assert.Equal(t, 30, ai.TotalTokens)
	assert.Equal(t, "llm-1", ai.LLMNo)

	// 指标事件在持久化之后，随后是历史附加信息
	assert.Equal(t, []string{"query", "metrics", "history_extra"}, f.eventKinds(t))
}

func TestQueryStreamFrameOrder(t *testing.T) {
	chat := &fakeStreamChat{fakeChat: fakeChat{responses: []string{"streamed final answer"}}}
	store := &fakeVectorStore{denseHits: []model.RetrievedChunk{
		hit("f1", 1, 0, 0.9, "passage"),
	}}
	f := newQueryFixture(t, chat, store, true)

	var evs []StreamEvent
	res, err := f.pipe.Query(context.Background(), "q", collectSink(&evs))
	require.NoError(t, err)

	require.NotEmpty(t, evs)
	assert.Equal(t, StreamInit, evs[0].Type)
	assert.Equal(t, res.MessageNo, evs[0].MessageNo)
	require.Len(t, evs[0].References, 1)

	var b strings.Builder
	for _, ev := range evs[1:] {
		require.Equal(t, StreamUpdate, ev.Type)
		b.WriteString(ev.Delta)
	}
	assert.Equal(t, res.Answer, b.String())

	require.Len(t, f.history.msgs, 2)
	assert.Equal(t, res.Answer, f.history.msgs[1].Content)
}

func TestQueryShortCircuitsOnEmptyRetrieval(t *testing.T) {
	chat := &fakeChat{}
	f := newQueryFixture(t, chat, &fakeVectorStore{}, true)

	var evs []StreamEvent
	res, err := f.pipe.Query(context.Background(), "unknown topic", collectSink(&evs))
	require.NoError(t, err)
	assert.Equal(t, NoDocumentsAnswer, res.Answer)

	// 生成器未被调用
	assert.Empty(t, chat.prompts)

	require.Len(t, evs, 2)
	assert.Equal(t, StreamInit, evs[0].Type)
	assert.Equal(t, StreamUpdate, evs[1].Type)
	assert.Equal(t, NoDocumentsAnswer, evs[1].Delta)

	require.Len(t, f.history.msgs, 2)
	assert.Equal(t, NoDocumentsAnswer, f.history.msgs[1].Content)
}

func TestQueryEmptyRetrievalProceedsWhenNotRequired(t *testing.T) {
	chat := &fakeChat{responses: []string{"general answer"}}
	f := newQueryFixture(t, chat, &fakeVectorStore{}, false)

	res, err := f.pipe.Query(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "general answer", res.Answer)
	assert.Empty(t, res.References)
}

func TestQueryRetrievalFailureEmitsErrorEvent(t *testing.T) {
	chat := &fakeChat{}
	f := newQueryFixture(t, chat, &fakeVectorStore{failSearch: true}, true)

	_, err := f.pipe.Query(context.Background(), "q", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"query", "error"}, f.eventKinds(t))
	assert.Empty(t, f.history.msgs)
}

func TestQueryGenerationFailureDoesNotPersistAI(t *testing.T) {
	chat := &fakeChat{fail: true}
	store := &fakeVectorStore{denseHits: []model.RetrievedChunk{
		hit("f1", 1, 0, 0.9, "passage"),
	}}
	f := newQueryFixture(t, chat, store, true)

	_, err := f.pipe.Query(context.Background(), "q", nil)
	require.Error(t, err)

	// 用户消息已落库，AI 回合未持久化
	require.Len(t, f.history.msgs, 1)
	assert.Equal(t, model.RoleHuman, f.history.msgs[0].Role)
	assert.Equal(t, []string{"query", "error"}, f.eventKinds(t))
}

func TestQueryCarriesHistoryIntoPrompt(t *testing.T) {
	chat := &fakeChat{responses: []string{"follow-up answer"}}
	store := &fakeVectorStore{denseHits: []model.RetrievedChunk{
		hit("f1", 1, 0, 0.9, "passage"),
	}}
	f := newQueryFixture(t, chat, store, true)

	require.NoError(t, f.history.Append(context.Background(), model.ChatMessage{
		UserNo:    "u1",
		SessionNo: "s1",
		Role:      model.RoleHuman,
		Content:   "earlier question",
		CreatedAt: time.Now().Add(-time.Minute),
	}))

	_, err := f.pipe.Query(context.Background(), "and then?", nil)
	require.NoError(t, err)

	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "Previous conversation:")
	assert.Contains(t, chat.prompts[0], "earlier question")
	assert.Contains(t, chat.prompts[0], "and then?")
}
