package strategy

import (
	"context"
	"sync"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// fakeFactory is an in-memory Factory for tests.
type fakeFactory struct {
	mu          sync.Mutex
	strategies  map[string]*model.Strategy
	ingests     map[string]*model.IngestTemplate
	queries     map[string]*model.QueryTemplate
	credentials map[string]*model.Credential
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		strategies:  make(map[string]*model.Strategy),
		ingests:     make(map[string]*model.IngestTemplate),
		queries:     make(map[string]*model.QueryTemplate),
		credentials: make(map[string]*model.Credential),
	}
}

func (f *fakeFactory) Strategies() StrategyStore            { return (*fakeStrategies)(f) }
func (f *fakeFactory) IngestTemplates() IngestTemplateStore { return (*fakeIngests)(f) }
func (f *fakeFactory) QueryTemplates() QueryTemplateStore   { return (*fakeQueries)(f) }
func (f *fakeFactory) Credentials() CredentialStore         { return (*fakeCredentials)(f) }
func (f *fakeFactory) AutoMigrate() error                   { return nil }

func (f *fakeFactory) Tx(_ context.Context, fn func(Factory) error) error {
	return fn(f)
}

func (f *fakeFactory) addStrategy(s *model.Strategy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strategies[s.StrategyNo] = s
}

type fakeStrategies fakeFactory

func (s *fakeStrategies) Create(_ context.Context, m *model.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.strategies {
		if existing.Code == m.Code {
			return errors.ErrConflict
		}
	}
	s.strategies[m.StrategyNo] = m
	return nil
}

func (s *fakeStrategies) Update(_ context.Context, m *model.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[m.StrategyNo] = m
	return nil
}

func (s *fakeStrategies) Delete(_ context.Context, strategyNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[strategyNo]; !ok {
		return errors.ErrNotFound
	}
	delete(s.strategies, strategyNo)
	return nil
}

func (s *fakeStrategies) Get(_ context.Context, strategyNo string) (*model.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.strategies[strategyNo]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return m, nil
}

func (s *fakeStrategies) GetByCode(_ context.Context, code string) (*model.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.strategies {
		if m.Code == code {
			return m, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (s *fakeStrategies) List(_ context.Context, typeName string) ([]*model.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Strategy
	for _, m := range s.strategies {
		if typeName == "" || m.TypeName == typeName {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeIngests fakeFactory

func (s *fakeIngests) Create(_ context.Context, t *model.IngestTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.ingests {
		if existing.Name == t.Name {
			return errors.ErrTemplateConflict
		}
	}
	s.ingests[t.IngestNo] = t
	return nil
}

func (s *fakeIngests) Update(_ context.Context, t *model.IngestTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingests[t.IngestNo] = t
	return nil
}

func (s *fakeIngests) Delete(_ context.Context, ingestNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ingests[ingestNo]; !ok {
		return errors.ErrTemplateNotFound
	}
	delete(s.ingests, ingestNo)
	return nil
}

func (s *fakeIngests) Get(_ context.Context, ingestNo string) (*model.IngestTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ingests[ingestNo]
	if !ok {
		return nil, errors.ErrTemplateNotFound
	}
	return t, nil
}

func (s *fakeIngests) List(_ context.Context) ([]*model.IngestTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.IngestTemplate
	for _, t := range s.ingests {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeIngests) GetDefault(_ context.Context) (*model.IngestTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.ingests {
		if t.IsDefault {
			return t, nil
		}
	}
	return nil, errors.ErrTemplateNotFound
}

func (s *fakeIngests) ClearDefault(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.ingests {
		t.IsDefault = false
	}
	return nil
}

type fakeQueries fakeFactory

func (s *fakeQueries) Create(_ context.Context, t *model.QueryTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.queries {
		if existing.Name == t.Name {
			return errors.ErrTemplateConflict
		}
	}
	s.queries[t.QueryNo] = t
	return nil
}

func (s *fakeQueries) Update(_ context.Context, t *model.QueryTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[t.QueryNo] = t
	return nil
}

func (s *fakeQueries) Delete(_ context.Context, queryNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[queryNo]; !ok {
		return errors.ErrTemplateNotFound
	}
	delete(s.queries, queryNo)
	return nil
}

func (s *fakeQueries) Get(_ context.Context, queryNo string) (*model.QueryTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.queries[queryNo]
	if !ok {
		return nil, errors.ErrTemplateNotFound
	}
	return t, nil
}

func (s *fakeQueries) List(_ context.Context) ([]*model.QueryTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.QueryTemplate
	for _, t := range s.queries {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeQueries) GetDefault(_ context.Context) (*model.QueryTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queries {
		if t.IsDefault {
			return t, nil
		}
	}
	return nil, errors.ErrTemplateNotFound
}

func (s *fakeQueries) ClearDefault(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queries {
		t.IsDefault = false
	}
	return nil
}

type fakeCredentials fakeFactory

func (s *fakeCredentials) Get(_ context.Context, userNo, llmNo string) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[userNo+"/"+llmNo]
	if !ok {
		return nil, errors.ErrMissingCredential
	}
	return c, nil
}

func (s *fakeCredentials) Put(_ context.Context, c *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.UserNo+"/"+c.LLMNo] = c
	return nil
}

func (s *fakeCredentials) Delete(_ context.Context, userNo, llmNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userNo + "/" + llmNo
	if _, ok := s.credentials[key]; !ok {
		return errors.ErrNotFound
	}
	delete(s.credentials, key)
	return nil
}
