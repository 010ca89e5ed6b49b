package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/engine"
	"github.com/Mathiio/edisem-sub000/pkg/identity"
	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ViewInfo describes one offered view for the detail response.
type ViewInfo struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Editable bool   `json:"editable,omitempty"`
}

// DetailResponse for GET /api/types/{type}/resources/{id}
type DetailResponse struct {
	Result       *models.FetchResult `json:"result"`
	Views        []ViewInfo          `json:"views"`
	SelectedView string              `json:"selected_view,omitempty"`
}

// TypesResponse for GET /api/types
type TypesResponse struct {
	Types []string `json:"types"`
}

// SaveRequest for POST /api/types/{type}/resources and
// PUT /api/types/{type}/resources/{id}. Fields are keyed by configured field
// key, legacy alias, or namespaced property key; reference values arrive as
// entity objects.
type SaveRequest struct {
	Fields       map[string]any `json:"fields"`
	ParentID     int64          `json:"parent_id,omitempty"`
	RemovedMedia []int          `json:"removed_media,omitempty"`
}

// ============================================================================
// Handler
// ============================================================================

// ResourceHandler exposes the resource-detail engine as a JSON API. Each
// request runs against a fresh session for the addressed resource type.
type ResourceHandler struct {
	registry          *rtconfig.Registry
	client            store.Client
	recommendationMax int
	strategies        map[string]engine.Strategy
	logger            *zap.Logger
}

// NewResourceHandler creates a new resource handler.
func NewResourceHandler(
	registry *rtconfig.Registry,
	client store.Client,
	recommendationMax int,
	strategies map[string]engine.Strategy,
	logger *zap.Logger,
) *ResourceHandler {
	return &ResourceHandler{
		registry:          registry,
		client:            client,
		recommendationMax: recommendationMax,
		strategies:        strategies,
		logger:            logger,
	}
}

// RegisterRoutes registers the resource handler's routes on the given mux.
func (h *ResourceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/types", h.ListTypes)
	mux.HandleFunc("GET /api/types/{type}/resources/{id}", h.Detail)
	mux.HandleFunc("POST /api/types/{type}/resources", h.Create)
	mux.HandleFunc("PUT /api/types/{type}/resources/{id}", h.Update)
}

// ListTypes handles GET /api/types
func (h *ResourceHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, TypesResponse{Types: h.registry.Names()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Detail handles GET /api/types/{type}/resources/{id}
//
// Runs the full progressive fetch and returns the consolidated result; the
// optional "view" query parameter pre-selects a view, subject to the
// availability tie-break.
func (h *ResourceHandler) Detail(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.typeConfig(w, r)
	if !ok {
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	session := h.newSession(cfg)
	result, err := session.Open(r.Context(), id)
	if err != nil {
		status, code := statusFromError(err)
		h.logger.Error("Failed to open resource",
			zap.Int64("resource_id", id),
			zap.String("type", cfg.Name),
			zap.String("error", logging.SanitizeError(err)))
		h.writeError(w, status, code, err.Error())
		return
	}

	selected := ""
	if requested := r.URL.Query().Get("view"); requested != "" {
		selected = session.SelectView(requested)
	} else {
		_, _, selected = session.Snapshot()
	}

	response := DetailResponse{
		Result:       result,
		Views:        viewInfos(session.AvailableViews()),
		SelectedView: selected,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/types/{type}/resources
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.typeConfig(w, r)
	if !ok {
		return
	}

	actor, err := identity.FromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	session := h.newSession(cfg)
	session.BeginCreate(actor, req.ParentID)
	session.Form().SetFields(coerceFields(req.Fields))

	saved, err := session.Save(r.Context())
	if err != nil {
		h.saveError(w, cfg, err, session)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, saved); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/types/{type}/resources/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.typeConfig(w, r)
	if !ok {
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	session := h.newSession(cfg)
	if _, err := session.Open(r.Context(), id); err != nil {
		status, code := statusFromError(err)
		h.writeError(w, status, code, err.Error())
		return
	}
	if err := session.BeginEdit(r.Context()); err != nil {
		status, code := statusFromError(err)
		h.writeError(w, status, code, err.Error())
		return
	}

	session.Form().SetFields(coerceFields(req.Fields))
	for _, idx := range req.RemovedMedia {
		session.RemoveMedia(idx)
	}

	saved, err := session.Save(r.Context())
	if err != nil {
		h.saveError(w, cfg, err, session)
		return
	}

	if err := WriteJSON(w, http.StatusOK, saved); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ============================================================================
// Helpers
// ============================================================================

func (h *ResourceHandler) newSession(cfg *rtconfig.Type) *engine.Session {
	return engine.NewSession(h.client, cfg, h.recommendationMax, h.strategies, h.logger)
}

func (h *ResourceHandler) typeConfig(w http.ResponseWriter, r *http.Request) (*rtconfig.Type, bool) {
	name := r.PathValue("type")
	cfg, err := h.registry.Get(name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown_type", "unknown resource type: "+name)
		return nil, false
	}
	return cfg, true
}

func (h *ResourceHandler) resourceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_resource_id", "resource id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *ResourceHandler) saveError(w http.ResponseWriter, cfg *rtconfig.Type, err error, session *engine.Session) {
	status, code := statusFromError(err)
	h.logger.Error("Save failed",
		zap.String("type", cfg.Name),
		zap.String("error", logging.SanitizeError(err)))
	if status == http.StatusUnprocessableEntity {
		_ = WriteJSON(w, status, map[string]any{
			"error":        code,
			"message":      err.Error(),
			"field_errors": session.Form().Errors(),
		})
		return
	}
	h.writeError(w, status, code, err.Error())
}

func (h *ResourceHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func viewInfos(views []rtconfig.View) []ViewInfo {
	infos := make([]ViewInfo, 0, len(views))
	for _, v := range views {
		infos = append(infos, ViewInfo{Key: v.Key, Kind: string(v.Kind), Title: v.Title, Editable: v.Editable})
	}
	return infos
}

// coerceFields normalizes decoded JSON field values to the shapes the form
// and compiler work with: entity object lists become []models.Entity, single
// entity objects become models.Entity, string arrays become []string.
// Scalars pass through.
func coerceFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		out[key] = coerceValue(value)
	}
	return out
}

func coerceValue(value any) any {
	switch v := value.(type) {
	case []any:
		if len(v) > 0 {
			if _, ok := v[0].(string); ok {
				strs := make([]string, 0, len(v))
				for _, item := range v {
					s, ok := item.(string)
					if !ok {
						return value
					}
					strs = append(strs, s)
				}
				return strs
			}
		}
		entities := make([]models.Entity, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return value
			}
			entity, ok := entityFromMap(m)
			if !ok {
				return value
			}
			entities = append(entities, entity)
		}
		return entities
	case map[string]any:
		if entity, ok := entityFromMap(v); ok {
			return entity
		}
		return value
	default:
		return value
	}
}

func entityFromMap(m map[string]any) (models.Entity, bool) {
	id, ok := numericID(m["id"])
	if !ok {
		return models.Entity{}, false
	}
	entity := models.Entity{ID: id}
	if title, ok := m["title"].(string); ok {
		entity.Title = title
	}
	return entity, true
}

func numericID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}
