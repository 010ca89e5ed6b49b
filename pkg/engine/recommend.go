package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// Strategy derives related resources for a fetched item when no explicit
// recommendation ids exist. Implementations may perform their own store
// queries; blocking work must honor ctx.
type Strategy interface {
	Related(ctx context.Context, details *models.Resource) ([]models.Entity, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, details *models.Resource) ([]models.Entity, error)

// Related implements Strategy.
func (f StrategyFunc) Related(ctx context.Context, details *models.Resource) ([]models.Entity, error) {
	return f(ctx, details)
}

// Recommender resolves the "related resources" list for a type. Explicit
// ids carried by the fetched item win over the configured strategy; both are
// capped, and every failure degrades to an empty list rather than failing
// the parent fetch.
type Recommender struct {
	store      store.Client
	cfg        *rtconfig.Type
	defaultMax int
	strategies map[string]Strategy
	logger     *zap.Logger
}

// NewRecommender creates a Recommender. strategies maps strategy names
// referenced by type configurations to their implementations; nil is fine
// when no type of this registry configures one.
func NewRecommender(client store.Client, cfg *rtconfig.Type, defaultMax int, strategies map[string]Strategy, logger *zap.Logger) *Recommender {
	return &Recommender{
		store:      client,
		cfg:        cfg,
		defaultMax: defaultMax,
		strategies: strategies,
		logger:     logger.Named("recommender"),
	}
}

// Recommend returns related entities for the fetched details, or an empty
// list. Never returns an error: recommendation failures are logged and
// degrade to empty.
func (r *Recommender) Recommend(ctx context.Context, details *models.Resource) []models.Entity {
	if details == nil || r.cfg.Recommendation == nil {
		return []models.Entity{}
	}
	max := r.cfg.RecommendationMax(r.defaultMax)

	// Explicit ids on the item take precedence over any strategy.
	if source := r.cfg.Recommendation.Source; source != "" {
		if ids := details.ReferenceIDs(source); len(ids) > 0 {
			entities, err := r.store.ResolveRefs(ctx, ids)
			if err != nil {
				r.logger.Warn("Recommendation batch resolve failed",
					zap.Int64("resource_id", details.ID),
					zap.String("error", logging.SanitizeError(err)))
				return []models.Entity{}
			}
			return capList(entities, max)
		}
	}

	if name := r.cfg.Recommendation.Strategy; name != "" {
		strategy, ok := r.strategies[name]
		if !ok {
			r.logger.Warn("Unknown recommendation strategy",
				zap.String("type", r.cfg.Name),
				zap.String("strategy", name))
			return []models.Entity{}
		}
		entities, err := strategy.Related(ctx, details)
		if err != nil {
			r.logger.Warn("Recommendation strategy failed",
				zap.String("strategy", name),
				zap.Int64("resource_id", details.ID),
				zap.String("error", logging.SanitizeError(err)))
			return []models.Entity{}
		}
		return capList(entities, max)
	}

	return []models.Entity{}
}

func capList(entities []models.Entity, max int) []models.Entity {
	if entities == nil {
		return []models.Entity{}
	}
	if max > 0 && len(entities) > max {
		return entities[:max]
	}
	return entities
}
