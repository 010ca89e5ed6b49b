package models

// FetchResult is the consolidated output of a progressive fetch. Partial
// results emitted while stages are still running are subsets of this shape;
// the final result is the union of all stage payloads, with later stage
// output overriding earlier output for the same key.
type FetchResult struct {
	ItemDetails     *Resource      `json:"item_details"`
	Keywords        []Entity       `json:"keywords"`
	Recommendations []Entity       `json:"recommendations"`
	ViewData        map[string]any `json:"view_data"`
}

// EmptyFetchResult returns the zero shape used to seed create mode without a
// network round trip.
func EmptyFetchResult() *FetchResult {
	return &FetchResult{
		Keywords:        []Entity{},
		Recommendations: []Entity{},
		ViewData:        map[string]any{},
	}
}

// Merge folds a partial result into the receiver. Non-nil/non-empty fields
// of the partial override the accumulated value for that key; absent fields
// leave the accumulated value untouched.
func (r *FetchResult) Merge(partial *FetchResult) {
	if partial == nil {
		return
	}
	if partial.ItemDetails != nil {
		r.ItemDetails = partial.ItemDetails
	}
	if partial.Keywords != nil {
		r.Keywords = partial.Keywords
	}
	if partial.Recommendations != nil {
		r.Recommendations = partial.Recommendations
	}
	for k, v := range partial.ViewData {
		if r.ViewData == nil {
			r.ViewData = map[string]any{}
		}
		r.ViewData[k] = v
	}
}

// AssociationCache indexes every entity materialized by the fetch (keywords
// and reference-backed view data) by id. Edit-mode hydration uses it to
// replace bare reference ids with their rich entity shapes.
func (r *FetchResult) AssociationCache() map[int64]Entity {
	cache := make(map[int64]Entity)
	for _, e := range r.Keywords {
		cache[e.ID] = e
	}
	for _, v := range r.ViewData {
		if entities, ok := v.([]Entity); ok {
			for _, e := range entities {
				cache[e.ID] = e
			}
		}
	}
	for _, e := range r.Recommendations {
		if _, seen := cache[e.ID]; !seen {
			cache[e.ID] = e
		}
	}
	return cache
}
