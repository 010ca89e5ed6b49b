package models

// MutationPayload is the property/value structure sent to the store for a
// create or update. Property keys map to ordered value lists; reserved keys
// ("o:resource_template", "o:owner") carry identity references.
type MutationPayload map[string]any

// TemplateRef is the reserved payload entry naming the resource template.
func TemplateRef(templateID int64) map[string]any {
	return map[string]any{"o:id": templateID}
}

// SetProperty assigns the full value list for one property key.
func (p MutationPayload) SetProperty(key string, values []PropertyValue) {
	p[key] = values
}

// PropertyValues returns the value list stored under key, or nil when the
// key is absent or not a property list.
func (p MutationPayload) PropertyValues(key string) []PropertyValue {
	vals, _ := p[key].([]PropertyValue)
	return vals
}

// SaveResult reports the outcome of a save: the resource as returned by the
// store, plus soft warnings from the dependent media operations. Media
// failures never roll back the primary mutation.
type SaveResult struct {
	Resource      *Resource `json:"resource"`
	MediaWarnings []string  `json:"media_warnings,omitempty"`
}
