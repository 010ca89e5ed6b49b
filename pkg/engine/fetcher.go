package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/logging"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
	"github.com/Mathiio/edisem-sub000/pkg/store"
)

// StageFlags reports which retrieval stages are still in flight. The flags
// are independent: first-stage data is enough to stop a generic loading
// state, regardless of keyword or view readiness.
type StageFlags struct {
	Details         bool `json:"details"`
	Keywords        bool `json:"keywords"`
	ViewData        bool `json:"view_data"`
	Recommendations bool `json:"recommendations"`
}

// Progress is delivered to the caller after each stage settles. It carries
// the resource id so the caller can drop notifications that belong to a
// resource it has navigated away from.
type Progress struct {
	ResourceID int64
	Partial    *models.FetchResult
	Loading    StageFlags
}

// ProgressFunc receives incremental fetch results as stages complete.
type ProgressFunc func(Progress)

// Fetcher orchestrates the retrieval stages for one resource type: core
// attributes, associated keywords, and reference-backed view data run
// concurrently; recommendations follow as a final addendum once the stages
// settle.
type Fetcher struct {
	store       store.Client
	cfg         *rtconfig.Type
	recommender *Recommender
	logger      *zap.Logger
}

// NewFetcher creates a Fetcher for one resource type.
func NewFetcher(client store.Client, cfg *rtconfig.Type, recommender *Recommender, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		store:       client,
		cfg:         cfg,
		recommender: recommender,
		logger:      logger.Named("fetcher"),
	}
}

// stage is one independent retrieval unit. Its partial payload is internally
// consistent; no cross-stage ordering is guaranteed.
type stage struct {
	name  string
	fatal bool
	run   func(ctx context.Context) (*models.FetchResult, error)
}

// Fetch retrieves everything the detail display needs for one resource id.
// Stages run concurrently; onProgress (optional) fires after each stage with
// the accumulated partial result and per-stage loading flags. A secondary
// stage failure degrades to empty data for that stage. Only the core
// attribute fetch is fatal: a missing id surfaces apperrors.ErrNotFound and
// the accumulated result is discarded.
func (f *Fetcher) Fetch(ctx context.Context, id int64, onProgress ProgressFunc) (*models.FetchResult, error) {
	var mu sync.Mutex
	acc := models.EmptyFetchResult()
	loading := StageFlags{Details: true, Keywords: true, ViewData: true, Recommendations: true}
	var fatalErr error

	notify := func() {
		if onProgress == nil {
			return
		}
		// Snapshot under the lock; deliver outside it.
		mu.Lock()
		snapshot := *acc
		snapshot.ViewData = make(map[string]any, len(acc.ViewData))
		for k, v := range acc.ViewData {
			snapshot.ViewData[k] = v
		}
		flags := loading
		mu.Unlock()
		onProgress(Progress{ResourceID: id, Partial: &snapshot, Loading: flags})
	}

	settle := func(st stage, partial *models.FetchResult, err error) {
		mu.Lock()
		switch st.name {
		case "details":
			loading.Details = false
		case "keywords":
			loading.Keywords = false
		case "view-data":
			loading.ViewData = false
		}
		if err != nil {
			if st.fatal {
				fatalErr = err
			}
		} else {
			acc.Merge(partial)
		}
		mu.Unlock()

		if err != nil && !st.fatal {
			// Recovered locally: the stage surfaces as empty data.
			f.logger.Warn("Fetch stage failed",
				zap.String("stage", st.name),
				zap.Int64("resource_id", id),
				zap.String("error", logging.SanitizeError(fmt.Errorf("%w: %w", apperrors.ErrStageFailed, err))))
		}
		notify()
	}

	stages := []stage{
		{name: "details", fatal: true, run: f.fetchDetails(id)},
		{name: "keywords", run: f.fetchKeywords(id)},
		{name: "view-data", run: f.fetchViewData(id)},
	}

	var wg sync.WaitGroup
	for _, st := range stages {
		wg.Add(1)
		go func(st stage) {
			defer wg.Done()
			partial, err := st.run(ctx)
			settle(st, partial, err)
		}(st)
	}
	wg.Wait()

	if fatalErr != nil {
		if errors.Is(fatalErr, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("resource %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch resource %d: %w", id, fatalErr)
	}

	// Recommendations load after core content and must not block first
	// paint; they are emitted as a final addendum.
	recs := f.recommender.Recommend(ctx, acc.ItemDetails)
	mu.Lock()
	acc.Recommendations = recs
	loading.Recommendations = false
	mu.Unlock()
	notify()

	return acc, nil
}

// FetchForCreate returns the empty shape used to initialize create mode
// without a network round trip.
func (f *Fetcher) FetchForCreate() *models.FetchResult {
	return models.EmptyFetchResult()
}

func (f *Fetcher) fetchDetails(id int64) func(ctx context.Context) (*models.FetchResult, error) {
	return func(ctx context.Context) (*models.FetchResult, error) {
		res, err := f.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &models.FetchResult{ItemDetails: res}, nil
	}
}

func (f *Fetcher) fetchKeywords(id int64) func(ctx context.Context) (*models.FetchResult, error) {
	return func(ctx context.Context) (*models.FetchResult, error) {
		if f.cfg.KeywordsSource == "" {
			return &models.FetchResult{Keywords: []models.Entity{}}, nil
		}
		keywords, err := f.store.ListLinked(ctx, id, f.cfg.KeywordsSource)
		if err != nil {
			return nil, err
		}
		return &models.FetchResult{Keywords: keywords}, nil
	}
}

// fetchViewData retrieves the associations backing reference-backed views.
// Views sourced from a view-data key rather than a property key derive their
// content from the core attributes and need no fetch of their own.
func (f *Fetcher) fetchViewData(id int64) func(ctx context.Context) (*models.FetchResult, error) {
	return func(ctx context.Context) (*models.FetchResult, error) {
		partial := &models.FetchResult{ViewData: map[string]any{}}
		var firstErr error
		for _, view := range f.cfg.Views {
			if view.Kind != rtconfig.ViewReferenceList && view.Kind != rtconfig.ViewItemsList {
				continue
			}
			if !strings.Contains(view.Source, ":") {
				continue
			}
			entities, err := f.store.ListLinked(ctx, id, view.Source)
			if err != nil {
				// One view's failure must not hide the others' data.
				if firstErr == nil {
					firstErr = err
				}
				f.logger.Warn("View association fetch failed",
					zap.String("view", view.Key),
					zap.Int64("resource_id", id),
					zap.String("error", logging.SanitizeError(err)))
				continue
			}
			partial.ViewData[view.Key] = entities
		}
		if len(partial.ViewData) == 0 && firstErr != nil {
			return nil, firstErr
		}
		return partial, nil
	}
}
