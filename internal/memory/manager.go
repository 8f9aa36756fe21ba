package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// Manager hands out one Session per (user, session, policy) and caches it
// for the lifetime of the process.
type Manager struct {
	store HistoryStore
	idGen id.Generator

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

type sessionKey struct {
	userNo    string
	sessionNo string
	policy    string
}

// NewManager 创建记忆管理器。
func NewManager(store HistoryStore) *Manager {
	return &Manager{
		store:    store,
		idGen:    id.NewUUIDGenerator(),
		sessions: make(map[sessionKey]*Session),
	}
}

// GetOrCreate 返回 (user, session) 对应的会话记忆，按 summary_buffer
// 策略建立并缓存。
func (m *Manager) GetOrCreate(userNo, sessionNo, modelName string) *Session {
	key := sessionKey{userNo: userNo, sessionNo: sessionNo, policy: PolicySummaryBuffer}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := &Session{
		store:     m.store,
		idGen:     m.idGen,
		userNo:    userNo,
		sessionNo: sessionNo,
		policy:    NewPolicy(PolicySummaryBuffer, modelName),
	}
	m.sessions[key] = s
	return s
}

// Clear 删除会话历史并丢弃缓存的会话对象。
func (m *Manager) Clear(ctx context.Context, userNo, sessionNo string) (int64, error) {
	m.mu.Lock()
	for key := range m.sessions {
		if key.userNo == userNo && key.sessionNo == sessionNo {
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	return m.store.Clear(ctx, userNo, sessionNo)
}

// Messages 按时间升序返回会话的全部消息。
func (m *Manager) Messages(ctx context.Context, userNo, sessionNo string) ([]model.ChatMessage, error) {
	return m.store.List(ctx, userNo, sessionNo)
}

// Session is the per-conversation view used by the query pipeline.
type Session struct {
	store     HistoryStore
	idGen     id.Generator
	userNo    string
	sessionNo string
	policy    Policy
}

// Load 渲染策略压缩后的历史文本。读失败时记录日志并返回空历史，
// 绝不让记忆问题中断问答。
func (s *Session) Load(ctx context.Context) string {
	msgs, err := s.store.List(ctx, s.userNo, s.sessionNo)
	if err != nil {
		logger.Warnw("history load failed, continuing without memory",
			"user_no", s.userNo, "session_no", s.sessionNo, "error", err.Error())
		return ""
	}
	return s.policy.Render(msgs)
}

// AppendHuman 持久化用户消息并返回分配的 message_no。
func (s *Session) AppendHuman(ctx context.Context, content string) (string, error) {
	messageNo := s.idGen.Generate()
	msg := model.ChatMessage{
		MessageNo: messageNo,
		SessionNo: s.sessionNo,
		UserNo:    s.userNo,
		Role:      model.RoleHuman,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return "", err
	}
	return messageNo, nil
}

// AppendAI 持久化 AI 回复。messageNo 沿用流式初始帧分配的编号；
// total_tokens 缺失时由输入输出相加补齐。
func (s *Session) AppendAI(ctx context.Context, messageNo, content string, payload model.PendingAIPayload) error {
	usage := payload.Usage
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	msg := model.ChatMessage{
		MessageNo:      messageNo,
		SessionNo:      s.sessionNo,
		UserNo:         s.userNo,
		Role:           model.RoleAI,
		Content:        content,
		CreatedAt:      time.Now(),
		LLMNo:          payload.LLMNo,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		TotalTokens:    usage.TotalTokens,
		ResponseTimeMS: payload.ResponseTimeMS,
		References:     payload.References,
	}
	return s.store.Append(ctx, msg)
}

// UserNo returns the owning user.
func (s *Session) UserNo() string { return s.userNo }

// SessionNo returns the conversation identifier.
func (s *Session) SessionNo() string { return s.sessionNo }
