package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// ============================================================================
// Mock store client shared by the engine tests
// ============================================================================

type mockStore struct {
	mu sync.Mutex

	resources map[int64]*models.Resource
	linked    map[string][]models.Entity
	templates map[int64]models.PropertyMap

	getErr     error
	linkedErr  error
	resolveErr error
	createErr  error
	updateErr  error
	uploadErr  error
	deleteErr  error

	// blockGet, when set, stalls Get until the channel closes. Used to force
	// stage completion order.
	blockGet chan struct{}

	nextID        int64
	createdWith   models.MutationPayload
	updatedWith   models.MutationPayload
	uploaded      []store.MediaFile
	deletedMedia  []int64
	templateCalls int
	resolvedIDs   [][]int64
}

func newMockStore() *mockStore {
	return &mockStore{
		resources: map[int64]*models.Resource{},
		linked:    map[string][]models.Entity{},
		templates: map[int64]models.PropertyMap{},
		nextID:    1000,
	}
}

var _ store.Client = (*mockStore)(nil)

func linkKey(id int64, property string) string {
	return fmt.Sprintf("%d|%s", id, property)
}

func (m *mockStore) setLinked(id int64, property string, entities []models.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linked[linkKey(id, property)] = entities
}

func (m *mockStore) Get(ctx context.Context, id int64) (*models.Resource, error) {
	if m.blockGet != nil {
		select {
		case <-m.blockGet:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	res, ok := m.resources[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return res.Clone(), nil
}

func (m *mockStore) ResolveRefs(ctx context.Context, ids []int64) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	m.resolvedIDs = append(m.resolvedIDs, ids)
	entities := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		if res, ok := m.resources[id]; ok {
			entities = append(entities, res.Entity())
		} else {
			entities = append(entities, models.Entity{ID: id})
		}
	}
	return entities, nil
}

func (m *mockStore) ListLinked(ctx context.Context, id int64, propertyKey string) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkedErr != nil {
		return nil, m.linkedErr
	}
	return m.linked[linkKey(id, propertyKey)], nil
}

func (m *mockStore) Create(ctx context.Context, templateID int64, payload models.MutationPayload) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdWith = payload
	m.nextID++
	return &models.Resource{ID: m.nextID, TemplateID: templateID, Properties: map[string][]models.PropertyValue{}}, nil
}

func (m *mockStore) Update(ctx context.Context, id int64, payload models.MutationPayload) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.updatedWith = payload
	res := &models.Resource{ID: id, Properties: map[string][]models.PropertyValue{}}
	if orig, ok := m.resources[id]; ok {
		res.TemplateID = orig.TemplateID
	}
	for key, raw := range payload {
		if vals, ok := raw.([]models.PropertyValue); ok {
			res.Properties[key] = vals
		}
	}
	return res, nil
}

func (m *mockStore) UploadMedia(ctx context.Context, resourceID int64, file store.MediaFile) (*models.MediaRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	m.uploaded = append(m.uploaded, file)
	return &models.MediaRef{ID: int64(len(m.uploaded)), ResourceID: resourceID}, nil
}

func (m *mockStore) DeleteMedia(ctx context.Context, mediaID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedMedia = append(m.deletedMedia, mediaID)
	return nil
}

func (m *mockStore) GetTemplateProperties(ctx context.Context, templateID int64) (models.PropertyMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templateCalls++
	pm, ok := m.templates[templateID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return pm, nil
}

// conferenceResource builds the canonical test resource used across the
// engine tests.
func conferenceResource() *models.Resource {
	return &models.Resource{
		ID:         42,
		TemplateID: 71,
		Title:      "Talk 1",
		Properties: map[string][]models.PropertyValue{
			"dcterms:title": {models.NewLiteral(1, "Talk 1")},
			"dcterms:extent": {models.NewLiteral(25, "90")},
			"schema:contributor": {
				refWithLabel(240, 7, "A. Chercheuse"),
				refWithLabel(240, 8, "B. Doctorant"),
			},
			"jdc:hasConcept": {
				models.NewReference(301, 10),
				models.NewReference(301, 11),
			},
			"dcterms:relation": {
				models.NewReference(35, 200),
				models.NewReference(35, 201),
			},
			"dcterms:abstract": {models.NewLiteral(4, "Une intervention sur les archives.")},
		},
		Media: []models.MediaRef{
			{ID: 900, URL: "https://cdn.example.org/900.jpg"},
			{ID: 901, URL: "https://cdn.example.org/901.jpg"},
		},
	}
}

func refWithLabel(propertyID, resourceID int64, label string) models.PropertyValue {
	v := models.NewReference(propertyID, resourceID)
	v.Label = label
	return v
}
