package strategy

import (
	"context"
	"regexp"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Registry is the admin-facing catalog of strategies.
type Registry struct {
	factory Factory
	idGen   id.Generator
}

// NewRegistry creates a registry over the given store factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		idGen:   id.NewUUIDGenerator(),
	}
}

// Get returns the strategy with the given number.
func (r *Registry) Get(ctx context.Context, strategyNo string) (*model.Strategy, error) {
	return r.factory.Strategies().Get(ctx, strategyNo)
}

// GetByCode returns the strategy with the given code.
func (r *Registry) GetByCode(ctx context.Context, code string) (*model.Strategy, error) {
	return r.factory.Strategies().GetByCode(ctx, code)
}

// List returns strategies, optionally filtered by kind name.
func (r *Registry) List(ctx context.Context, typeName string) ([]*model.Strategy, error) {
	return r.factory.Strategies().List(ctx, typeName)
}

// Create stores a new strategy. When the code is one of the registered
// kinds, the kind name must match and empty parameters are filled from the
// kind defaults.
func (r *Registry) Create(ctx context.Context, s *model.Strategy) error {
	if err := r.normalize(s); err != nil {
		return err
	}
	if s.StrategyNo == "" {
		s.StrategyNo = r.idGen.Generate()
	}
	if err := r.factory.Strategies().Create(ctx, s); err != nil {
		return err
	}
	logger.Infow("strategy created", "strategy_no", s.StrategyNo, "code", s.Code, "type", s.TypeName)
	return nil
}

// Update replaces an existing strategy.
func (r *Registry) Update(ctx context.Context, s *model.Strategy) error {
	if err := r.normalize(s); err != nil {
		return err
	}
	existing, err := r.factory.Strategies().Get(ctx, s.StrategyNo)
	if err != nil {
		return err
	}
	s.CreatedAt = existing.CreatedAt
	return r.factory.Strategies().Update(ctx, s)
}

// Delete removes a strategy. It refuses while any template still
// references the strategy.
func (r *Registry) Delete(ctx context.Context, strategyNo string) error {
	referenced, err := r.isReferenced(ctx, strategyNo)
	if err != nil {
		return err
	}
	if referenced {
		return errors.ErrConflict.WithMessage("strategy is referenced by a template")
	}
	if err := r.factory.Strategies().Delete(ctx, strategyNo); err != nil {
		return err
	}
	logger.Infow("strategy deleted", "strategy_no", strategyNo)
	return nil
}

func (r *Registry) normalize(s *model.Strategy) error {
	if s.Code == "" || !codePattern.MatchString(s.Code) {
		return errors.ErrValidation.WithMessage("strategy code must be uppercase ASCII")
	}
	if s.Name == "" {
		return errors.ErrValidation.WithMessage("strategy name is required")
	}
	if info, ok := LookupKind(s.Code); ok {
		if s.TypeName == "" {
			s.TypeName = info.TypeName
		} else if s.TypeName != info.TypeName {
			return errors.ErrWrongStrategyCode.WithMessagef(
				"code %s belongs to kind %s, not %s", s.Code, info.TypeName, s.TypeName)
		}
		if s.Parameter == nil {
			s.Parameter = deepCopyMap(info.Defaults)
		}
	}
	if s.TypeName == "" {
		return errors.ErrValidation.WithMessage("strategy type name is required")
	}
	if s.Parameter == nil {
		s.Parameter = model.ParamMap{}
	}
	return nil
}

func (r *Registry) isReferenced(ctx context.Context, strategyNo string) (bool, error) {
	ingests, err := r.factory.IngestTemplates().List(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range ingests {
		for _, b := range t.Bindings() {
			if b.StrategyNo == strategyNo {
				return true, nil
			}
		}
	}
	queries, err := r.factory.QueryTemplates().List(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range queries {
		for _, b := range t.Bindings() {
			if b.StrategyNo == strategyNo {
				return true, nil
			}
		}
	}
	return false, nil
}
