package engine

import (
	"context"

	"github.com/Mathiio/edisem-sub000/pkg/models"
)

// PickRequest asks the picker collaborator for resources a reference field
// may point at, filtered by the field's declared template ids.
type PickRequest struct {
	TemplateIDs []int64
	MultiSelect bool
}

// Picker is the resource selection collaborator. Its presentation is outside
// the engine; the engine only consumes normalized entities.
type Picker interface {
	Pick(ctx context.Context, req PickRequest) ([]models.Entity, error)
}
