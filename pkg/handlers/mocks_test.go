package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// ============================================================================
// Mock store client
// ============================================================================

type mockStore struct {
	resources map[int64]*models.Resource
	linked    map[int64][]models.Entity
	templates map[int64]models.PropertyMap

	createErr error
	updateErr error

	createdWith  models.MutationPayload
	updatedWith  models.MutationPayload
	deletedMedia []int64
}

var _ store.Client = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		resources: map[int64]*models.Resource{},
		linked:    map[int64][]models.Entity{},
		templates: map[int64]models.PropertyMap{},
	}
}

func (m *mockStore) Get(ctx context.Context, id int64) (*models.Resource, error) {
	res, ok := m.resources[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return res.Clone(), nil
}

func (m *mockStore) ResolveRefs(ctx context.Context, ids []int64) ([]models.Entity, error) {
	entities := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, models.Entity{ID: id})
	}
	return entities, nil
}

func (m *mockStore) ListLinked(ctx context.Context, id int64, propertyKey string) ([]models.Entity, error) {
	return m.linked[id], nil
}

func (m *mockStore) Create(ctx context.Context, templateID int64, payload models.MutationPayload) (*models.Resource, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdWith = payload
	return &models.Resource{ID: 9001, TemplateID: templateID, Properties: map[string][]models.PropertyValue{}}, nil
}

func (m *mockStore) Update(ctx context.Context, id int64, payload models.MutationPayload) (*models.Resource, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.updatedWith = payload
	res := &models.Resource{ID: id, Properties: map[string][]models.PropertyValue{}}
	for key, raw := range payload {
		if vals, ok := raw.([]models.PropertyValue); ok {
			res.Properties[key] = vals
		}
	}
	return res, nil
}

func (m *mockStore) UploadMedia(ctx context.Context, resourceID int64, file store.MediaFile) (*models.MediaRef, error) {
	return &models.MediaRef{ID: 1, ResourceID: resourceID}, nil
}

func (m *mockStore) DeleteMedia(ctx context.Context, mediaID int64) error {
	m.deletedMedia = append(m.deletedMedia, mediaID)
	return nil
}

func (m *mockStore) GetTemplateProperties(ctx context.Context, templateID int64) (models.PropertyMap, error) {
	pm, ok := m.templates[templateID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return pm, nil
}

// ============================================================================
// Fixtures
// ============================================================================

const conferenceYAML = `name: conference
template_id: 71
keywords_source: "jdc:hasConcept"
fields:
  - key: title
    property_keys: ["dcterms:title"]
    kind: title
    required: true
  - key: contributors
    property_keys: ["schema:contributor"]
    kind: multi-reference
    template_ids: [34]
    legacy_aliases: [personnes]
views:
  - key: description
    kind: static
    title: Description
    default: true
    source: "dcterms:abstract"
recommendation:
  max: 4
  source: "dcterms:relation"
`

func testRegistry(t *testing.T) *rtconfig.Registry {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conference.yaml"), []byte(conferenceYAML), 0o644))
	reg, err := rtconfig.LoadDir(dir)
	require.NoError(t, err)
	return reg
}

func seededStore() *mockStore {
	m := newMockStore()
	m.resources[42] = &models.Resource{
		ID:         42,
		TemplateID: 71,
		Title:      "Talk 1",
		Properties: map[string][]models.PropertyValue{
			"dcterms:title":    {models.NewLiteral(1, "Talk 1")},
			"dcterms:abstract": {models.NewLiteral(4, "Une intervention sur les archives.")},
			"schema:contributor": {
				models.NewReference(240, 7),
			},
		},
		Media: []models.MediaRef{{ID: 900}},
	}
	m.templates[71] = models.PropertyMap{
		"dcterms:title":      1,
		"dcterms:abstract":   4,
		"schema:contributor": 240,
		"dcterms:creator":    2,
		"dcterms:isPartOf":   33,
		"jdc:hasConcept":     301,
	}
	return m
}
