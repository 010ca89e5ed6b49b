package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
)

// defaultPlaceholders are "no data" strings shared across static views; a
// view's own Placeholders extend this list.
var defaultPlaceholders = []string{
	"Aucune description disponible",
	"Aucune donnée",
	"No description available",
	"No data",
}

// ViewResolver computes which configured views currently have renderable
// content, driving section navigation and default selection.
type ViewResolver struct {
	cfg    *rtconfig.Type
	logger *zap.Logger
}

// NewViewResolver creates a ViewResolver for one resource type.
func NewViewResolver(cfg *rtconfig.Type, logger *zap.Logger) *ViewResolver {
	return &ViewResolver{cfg: cfg, logger: logger.Named("view-resolver")}
}

// Available returns the views that should be offered for the current data,
// in configured order. In editing mode every editable view is offered even
// when empty, so content can be added to an empty section; read mode offers
// only views with content.
func (r *ViewResolver) Available(result *models.FetchResult, editing bool) []rtconfig.View {
	available := make([]rtconfig.View, 0, len(r.cfg.Views))
	for _, view := range r.cfg.Views {
		if editing && view.Editable {
			available = append(available, view)
			continue
		}
		if !r.isEmpty(view, result) {
			available = append(available, view)
		}
	}
	return available
}

// Select applies the default-selection tie-break: keep the current key if
// still available, else the configured default view if available, else the
// first available view, else "" (the detail column collapses).
func (r *ViewResolver) Select(current string, available []rtconfig.View) string {
	for _, view := range available {
		if view.Key == current {
			return current
		}
	}
	if def := r.cfg.DefaultView(); def != nil {
		for _, view := range available {
			if view.Key == def.Key {
				return def.Key
			}
		}
	}
	if len(available) > 0 {
		return available[0].Key
	}
	return ""
}

// isEmpty detects emptiness structurally per view kind. Static content that
// cannot be classified is assumed non-empty (fail open) so real content is
// never hidden.
func (r *ViewResolver) isEmpty(view rtconfig.View, result *models.FetchResult) bool {
	if result == nil {
		return true
	}

	switch view.Kind {
	case rtconfig.ViewItemsList, rtconfig.ViewReferenceList:
		return len(viewEntities(result, view.Key)) == 0

	case rtconfig.ViewCategorizedText:
		if result.ItemDetails == nil {
			return true
		}
		for _, v := range result.ItemDetails.Values(view.Source) {
			if strings.TrimSpace(v.Payload()) != "" {
				return false
			}
		}
		return true

	case rtconfig.ViewStatic:
		content, classified := staticContent(result, view)
		if !classified {
			return false
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return true
		}
		for _, placeholder := range append(defaultPlaceholders, view.Placeholders...) {
			if strings.EqualFold(content, placeholder) {
				return true
			}
		}
		return false
	}

	return false
}

// staticContent resolves the text a static view would render: an explicit
// view-data entry first, then the sourced literal of the core attributes.
// classified is false when the view-data entry is not text.
func staticContent(result *models.FetchResult, view rtconfig.View) (content string, classified bool) {
	if raw, ok := result.ViewData[view.Key]; ok {
		s, isString := raw.(string)
		return s, isString
	}
	if view.Source != "" && result.ItemDetails != nil {
		return result.ItemDetails.FirstLiteral(view.Source), true
	}
	return "", true
}

// viewEntities extracts the entity list backing a reference-backed view.
func viewEntities(result *models.FetchResult, key string) []models.Entity {
	entities, _ := result.ViewData[key].([]models.Entity)
	return entities
}
