package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
)

func TestRecommendResolvesExplicitRefs(t *testing.T) {
	m := newMockStore()
	m.resources[200] = &models.Resource{ID: 200, Title: "Séance liée"}
	r := NewRecommender(m, testType(t), 8, nil, zap.NewNop())

	entities := r.Recommend(context.Background(), conferenceResource())

	require.Len(t, entities, 2)
	assert.Equal(t, "Séance liée", entities[0].Title)
	assert.Equal(t, int64(201), entities[1].ID)
	require.Len(t, m.resolvedIDs, 1)
	assert.Equal(t, []int64{200, 201}, m.resolvedIDs[0])
}

func TestRecommendCapsAtConfiguredMax(t *testing.T) {
	m := newMockStore()
	details := conferenceResource()
	details.Properties["dcterms:relation"] = []models.PropertyValue{
		models.NewReference(35, 200),
		models.NewReference(35, 201),
		models.NewReference(35, 202),
		models.NewReference(35, 203),
	}
	r := NewRecommender(m, testType(t), 8, nil, zap.NewNop())

	entities := r.Recommend(context.Background(), details)

	assert.Len(t, entities, 3)
}

func TestRecommendResolveFailureDegradesToEmpty(t *testing.T) {
	m := newMockStore()
	m.resolveErr = errors.New("store unavailable")
	r := NewRecommender(m, testType(t), 8, nil, zap.NewNop())

	assert.Empty(t, r.Recommend(context.Background(), conferenceResource()))
}

func TestRecommendFallsBackToStrategy(t *testing.T) {
	cfg := testType(t)
	cfg.Recommendation = &rtconfig.Recommendation{Max: 5, Strategy: "same-speaker"}
	strategies := map[string]Strategy{
		"same-speaker": StrategyFunc(func(ctx context.Context, details *models.Resource) ([]models.Entity, error) {
			return []models.Entity{{ID: 300, Title: "Même intervenante"}}, nil
		}),
	}
	r := NewRecommender(newMockStore(), cfg, 8, strategies, zap.NewNop())

	entities := r.Recommend(context.Background(), conferenceResource())

	require.Len(t, entities, 1)
	assert.Equal(t, int64(300), entities[0].ID)
}

func TestRecommendUnknownStrategyIsEmpty(t *testing.T) {
	cfg := testType(t)
	cfg.Recommendation = &rtconfig.Recommendation{Strategy: "missing"}
	r := NewRecommender(newMockStore(), cfg, 8, nil, zap.NewNop())

	assert.Empty(t, r.Recommend(context.Background(), conferenceResource()))
}

func TestRecommendWithoutConfigurationIsEmpty(t *testing.T) {
	cfg := testType(t)
	cfg.Recommendation = nil
	r := NewRecommender(newMockStore(), cfg, 8, nil, zap.NewNop())

	assert.Empty(t, r.Recommend(context.Background(), conferenceResource()))
	assert.Empty(t, r.Recommend(context.Background(), nil))
}
