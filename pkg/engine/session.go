package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/identity"
	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// Session is one browsing/editing session over a resource type: it owns the
// render state fed by progressive fetches, the form state machine, the
// per-template property-map cache, and the save path. Collaborators read its
// snapshots or call its operations; the mutable state is owned exclusively
// here.
type Session struct {
	mu       sync.Mutex
	client   store.Client
	cfg      *rtconfig.Type
	fetcher  *Fetcher
	resolver *Resolver
	compiler *Compiler
	views    *ViewResolver
	form     *FormState
	picker   Picker
	logger   *zap.Logger

	// generation invalidates in-flight fetches: switching the active
	// resource id bumps it, and late progress for an older generation or a
	// different id is dropped.
	generation   uint64
	resourceID   int64
	result       *models.FetchResult
	loading      StageFlags
	selectedView string

	// propMaps caches property maps per template id for the session.
	// Replaced whole-for-whole, never partially merged.
	propMaps map[int64]models.PropertyMap

	pendingMedia []store.MediaFile
	removedMedia []int
	actor        *identity.Actor
	parentID     int64
}

// NewSession wires a session for one resource type. strategies feeds the
// recommendation runner; nil is fine.
func NewSession(client store.Client, cfg *rtconfig.Type, recommendationMax int, strategies map[string]Strategy, logger *zap.Logger) *Session {
	resolver := NewResolver(cfg, logger)
	recommender := NewRecommender(client, cfg, recommendationMax, strategies, logger)
	return &Session{
		client:   client,
		cfg:      cfg,
		fetcher:  NewFetcher(client, cfg, recommender, logger),
		resolver: resolver,
		compiler: NewCompiler(cfg, resolver, logger),
		views:    NewViewResolver(cfg, logger),
		form:     NewFormState(cfg, logger),
		logger:   logger.Named("session"),
		propMaps: map[int64]models.PropertyMap{},
	}
}

// Form exposes the form state machine for bound editing controls.
func (s *Session) Form() *FormState { return s.form }

// UsePicker installs the resource selection collaborator consumed by
// PickField. Sessions without one reject picking with ErrPickerUnavailable.
func (s *Session) UsePicker(p Picker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picker = p
}

// PickField runs the picker for a reference field and assigns the selection
// to form state: the full entity list for multi-reference fields, the first
// selected entity for single-reference ones.
func (s *Session) PickField(ctx context.Context, fieldKey string) error {
	field := s.cfg.Field(fieldKey)
	if field == nil || (field.Kind != rtconfig.FieldMultiRef && field.Kind != rtconfig.FieldSingleRef) {
		return fmt.Errorf("pick %q: not a reference field", fieldKey)
	}
	if s.form.Mode() == ModeView {
		return fmt.Errorf("pick %q: form is not editing", fieldKey)
	}
	s.mu.Lock()
	picker := s.picker
	s.mu.Unlock()
	if picker == nil {
		return fmt.Errorf("pick %q: %w", fieldKey, apperrors.ErrPickerUnavailable)
	}

	entities, err := picker.Pick(ctx, PickRequest{
		TemplateIDs: field.TemplateIDs,
		MultiSelect: field.Kind == rtconfig.FieldMultiRef,
	})
	if err != nil {
		return fmt.Errorf("pick %q: %w", fieldKey, err)
	}

	if field.Kind == rtconfig.FieldSingleRef {
		if len(entities) == 0 {
			s.form.SetField(field.Key, nil)
			return nil
		}
		s.form.SetField(field.Key, entities[0])
		return nil
	}
	s.form.SetField(field.Key, entities)
	return nil
}

// Open switches the session to a resource id and runs the progressive
// fetch. Accumulated data and loading flags are reset synchronously before
// the stages launch; any progress still in flight for the previous id is
// dropped by the generation check.
func (s *Session) Open(ctx context.Context, id int64) (*models.FetchResult, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.resourceID = id
	s.result = models.EmptyFetchResult()
	s.loading = StageFlags{Details: true, Keywords: true, ViewData: true, Recommendations: true}
	s.pendingMedia = nil
	s.removedMedia = nil
	s.mu.Unlock()
	s.form.Reset()

	result, err := s.fetcher.Fetch(ctx, id, func(p Progress) {
		s.apply(gen, p)
	})
	if err != nil {
		s.mu.Lock()
		if s.generation == gen {
			s.result = nil
			s.loading = StageFlags{}
		}
		s.mu.Unlock()
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// The session moved on while this fetch was in flight.
		return result, nil
	}
	s.result = result
	s.loading = StageFlags{}
	s.selectedView = s.views.Select(s.selectedView, s.views.Available(result, false))
	return result, nil
}

// apply folds one progress notification into render state, dropping
// notifications that belong to a superseded resource id.
func (s *Session) apply(gen uint64, p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || p.ResourceID != s.resourceID {
		s.logger.Debug("Dropping stale fetch progress",
			zap.Int64("stale_id", p.ResourceID),
			zap.Int64("current_id", s.resourceID))
		return
	}
	s.result = p.Partial
	s.loading = p.Loading
	s.selectedView = s.views.Select(s.selectedView, s.views.Available(p.Partial, s.form.Mode() != ModeView))
}

// Snapshot returns the current render state: accumulated fetch result,
// per-stage loading flags, and the selected view key.
func (s *Session) Snapshot() (*models.FetchResult, StageFlags, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.loading, s.selectedView
}

// AvailableViews lists the views currently offered, honoring edit mode.
func (s *Session) AvailableViews() []rtconfig.View {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()
	return s.views.Available(result, s.form.Mode() != ModeView)
}

// SelectView changes the selected view, applying the tie-break when the
// requested key is not available.
func (s *Session) SelectView(key string) string {
	available := s.AvailableViews()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedView = s.views.Select(key, available)
	return s.selectedView
}

// BeginEdit hydrates the form from the current fetch result and enters edit
// mode. The template's property map is fetched (or served from the session
// cache) so field resolution is ready before the first save.
func (s *Session) BeginEdit(ctx context.Context) error {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()
	if result == nil || result.ItemDetails == nil {
		return fmt.Errorf("begin edit: %w", apperrors.ErrNotFound)
	}

	if _, err := s.PropertyMap(ctx, result.ItemDetails.TemplateID); err != nil {
		s.logger.Warn("Property map unavailable at edit start",
			zap.Int64("template_id", result.ItemDetails.TemplateID),
			zap.String("error", logging.SanitizeError(err)))
	}

	s.form.Hydrate(result)
	return nil
}

// BeginCreate initializes create mode with an empty fetch shape, recording
// the current actor and the optional contextual parent id.
func (s *Session) BeginCreate(actor *identity.Actor, parentID int64) {
	s.mu.Lock()
	s.actor = actor
	s.parentID = parentID
	s.pendingMedia = nil
	s.removedMedia = nil
	s.mu.Unlock()
	s.form.BeginCreate()
}

// Cancel discards edits and returns to view mode.
func (s *Session) Cancel() {
	s.form.Reset()
	s.form.LeaveEdit()
	s.mu.Lock()
	s.pendingMedia = nil
	s.removedMedia = nil
	s.mu.Unlock()
}

// QueueMedia records a file to upload after the primary mutation succeeds.
func (s *Session) QueueMedia(file store.MediaFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMedia = append(s.pendingMedia, file)
}

// RemoveMedia marks the media at the given index of the original resource
// for deletion on save.
func (s *Session) RemoveMedia(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedMedia = append(s.removedMedia, index)
}

// Save validates, compiles and submits the current form state. Validation
// or store rejection preserves form state so the user can retry; media
// failures after a successful primary mutation surface as soft warnings.
func (s *Session) Save(ctx context.Context) (*models.SaveResult, error) {
	if !s.form.Validate() {
		return nil, fmt.Errorf("%w: %d field(s)", apperrors.ErrValidation, len(s.form.Errors()))
	}
	if !s.form.BeginSubmit() {
		return nil, apperrors.ErrSubmitInProgress
	}
	defer s.form.EndSubmit()

	switch s.form.Mode() {
	case ModeCreate:
		return s.saveCreate(ctx)
	case ModeEdit:
		return s.saveUpdate(ctx)
	default:
		return nil, fmt.Errorf("nothing to save in %s mode", s.form.Mode())
	}
}

func (s *Session) saveCreate(ctx context.Context) (*models.SaveResult, error) {
	pm, err := s.PropertyMap(ctx, s.cfg.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: property map: %w", apperrors.ErrSaveFailed, err)
	}

	s.mu.Lock()
	opts := CreateOptions{Actor: s.actor, ParentID: s.parentID}
	s.mu.Unlock()

	payload, err := s.compiler.CompileCreate(s.cfg.TemplateID, s.form, pm, opts)
	if err != nil {
		return nil, err
	}

	created, err := s.client.Create(ctx, s.cfg.TemplateID, payload)
	if err != nil {
		// Form state is preserved for retry.
		return nil, err
	}

	warnings := s.uploadPending(ctx, created.ID)
	s.form.LeaveEdit()

	s.mu.Lock()
	s.pendingMedia = nil
	s.mu.Unlock()

	return &models.SaveResult{Resource: created, MediaWarnings: warnings}, nil
}

func (s *Session) saveUpdate(ctx context.Context) (*models.SaveResult, error) {
	s.mu.Lock()
	var orig *models.Resource
	if s.result != nil {
		orig = s.result.ItemDetails
	}
	removed := append([]int(nil), s.removedMedia...)
	s.mu.Unlock()
	if orig == nil {
		return nil, fmt.Errorf("save: %w", apperrors.ErrNotFound)
	}

	pm, err := s.PropertyMap(ctx, orig.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: property map: %w", apperrors.ErrSaveFailed, err)
	}

	payload, err := s.compiler.CompileUpdate(orig, s.form, pm)
	if err != nil {
		return nil, err
	}

	updated, err := s.client.Update(ctx, orig.ID, payload)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, mediaID := range s.compiler.MediaDeletions(orig, removed) {
		if err := s.client.DeleteMedia(ctx, mediaID); err != nil {
			s.logger.Warn("Media deletion failed",
				zap.Int64("media_id", mediaID),
				zap.String("error", logging.SanitizeError(err)))
			warnings = append(warnings, fmt.Sprintf("media %d not deleted", mediaID))
		}
	}
	warnings = append(warnings, s.uploadPending(ctx, updated.ID)...)

	s.form.LeaveEdit()
	s.mu.Lock()
	if s.result != nil {
		s.result.ItemDetails = updated
	}
	s.pendingMedia = nil
	s.removedMedia = nil
	s.mu.Unlock()

	return &models.SaveResult{Resource: updated, MediaWarnings: warnings}, nil
}

// uploadPending uploads queued files as dependent operations tagged with the
// saved resource's id. A failed file is logged and skipped; it never rolls
// back the already-saved resource.
func (s *Session) uploadPending(ctx context.Context, resourceID int64) []string {
	s.mu.Lock()
	pending := append([]store.MediaFile(nil), s.pendingMedia...)
	s.mu.Unlock()

	var warnings []string
	for _, file := range pending {
		if _, err := s.client.UploadMedia(ctx, resourceID, file); err != nil {
			s.logger.Warn("Media upload failed",
				zap.Int64("resource_id", resourceID),
				zap.String("file", file.Name),
				zap.String("error", logging.SanitizeError(err)))
			warnings = append(warnings, fmt.Sprintf("file %q not uploaded", file.Name))
		}
	}
	return warnings
}

// PropertyMap returns the property map for a template id, fetching it once
// per session and caching it. The cache is replaced whole-for-whole, never
// partially merged.
func (s *Session) PropertyMap(ctx context.Context, templateID int64) (models.PropertyMap, error) {
	s.mu.Lock()
	if pm, ok := s.propMaps[templateID]; ok {
		s.mu.Unlock()
		return pm, nil
	}
	s.mu.Unlock()

	pm, err := s.client.GetTemplateProperties(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("get template properties: %w", err)
	}

	s.mu.Lock()
	s.propMaps[templateID] = pm
	s.mu.Unlock()
	return pm, nil
}

// InvalidatePropertyMap drops the cached map for a template id, forcing a
// refresh on next use.
func (s *Session) InvalidatePropertyMap(templateID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.propMaps, templateID)
}
