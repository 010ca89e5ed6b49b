package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Mathiio/edisem-sub000/pkg/jsonutil"
)

// Property value types, matching the store's wire format.
const (
	TypeLiteral  = "literal"
	TypeURI      = "uri"
	TypeResource = "resource"
)

// PropertyValue is one entry under a resource property: a literal string, a
// URI, or a reference to another resource. Within one resource, every value
// under the same property key carries the same PropertyID.
type PropertyValue struct {
	Type       string `json:"type"`
	PropertyID int64  `json:"property_id"`
	IsPublic   bool   `json:"is_public"`

	// Literal payload (Type == TypeLiteral).
	Value string `json:"@value,omitempty"`

	// URI payload (Type == TypeURI).
	URI string `json:"@id,omitempty"`

	// Reference payload (Type == TypeResource).
	ResourceID int64  `json:"value_resource_id,omitempty"`
	Label      string `json:"display_title,omitempty"`
}

// NewLiteral builds a public literal value for the given property id.
func NewLiteral(propertyID int64, value string) PropertyValue {
	return PropertyValue{Type: TypeLiteral, PropertyID: propertyID, Value: value, IsPublic: true}
}

// NewURI builds a public uri value for the given property id.
func NewURI(propertyID int64, uri string) PropertyValue {
	return PropertyValue{Type: TypeURI, PropertyID: propertyID, URI: uri, IsPublic: true}
}

// NewReference builds a public resource reference for the given property id.
func NewReference(propertyID, resourceID int64) PropertyValue {
	return PropertyValue{Type: TypeResource, PropertyID: propertyID, ResourceID: resourceID, IsPublic: true}
}

// Payload returns the human-readable payload of the value regardless of type.
func (v PropertyValue) Payload() string {
	switch v.Type {
	case TypeURI:
		return v.URI
	case TypeResource:
		return v.Label
	default:
		return v.Value
	}
}

// MediaRef identifies a media attachment of a resource.
type MediaRef struct {
	ID         int64  `json:"o:id"`
	ResourceID int64  `json:"resource_id,omitempty"`
	URL        string `json:"o:original_url,omitempty"`
	MIME       string `json:"o:media_type,omitempty"`
	Title      string `json:"o:title,omitempty"`
}

// Entity is the normalized shape used for references: picker selections,
// keyword chips, recommendation cards. It is a projection of a Resource.
type Entity struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	TemplateID int64  `json:"template_id,omitempty"`
	Type       string `json:"type,omitempty"`
}

// PropertyMap maps a namespaced property key (e.g. "dcterms:title") to the
// numeric property identifier assigned by the store for one template.
// Identifiers are template-specific and only known at runtime.
type PropertyMap map[string]int64

// Resource is a transient copy of one store entity: its identity, its
// template, and its properties keyed by namespaced property key. The store
// owns the canonical representation.
type Resource struct {
	ID         int64
	TemplateID int64
	Title      string
	Properties map[string][]PropertyValue
	Media      []MediaRef
	Created    time.Time
	Modified   time.Time
}

// Values returns the value list under key, or nil.
func (r *Resource) Values(key string) []PropertyValue {
	if r == nil || r.Properties == nil {
		return nil
	}
	return r.Properties[key]
}

// FirstLiteral returns the payload of the first literal value under key.
func (r *Resource) FirstLiteral(key string) string {
	for _, v := range r.Values(key) {
		if v.Type == TypeLiteral {
			return v.Value
		}
	}
	return ""
}

// ReferenceIDs returns the target ids of all reference values under key.
func (r *Resource) ReferenceIDs(key string) []int64 {
	vals := r.Values(key)
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		if v.Type == TypeResource && v.ResourceID != 0 {
			ids = append(ids, v.ResourceID)
		}
	}
	return ids
}

// Entity projects the resource to its reference shape.
func (r *Resource) Entity() Entity {
	e := Entity{ID: r.ID, Title: r.Title, TemplateID: r.TemplateID}
	if len(r.Media) > 0 {
		e.Thumbnail = r.Media[0].URL
	}
	return e
}

// Clone returns a deep copy of the resource. The mutation compiler starts
// from a clone so untouched properties pass through unchanged.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	out := *r
	out.Properties = make(map[string][]PropertyValue, len(r.Properties))
	for k, vals := range r.Properties {
		cp := make([]PropertyValue, len(vals))
		copy(cp, vals)
		out.Properties[k] = cp
	}
	out.Media = make([]MediaRef, len(r.Media))
	copy(out.Media, r.Media)
	return &out
}

// isPropertyKey reports whether a JSON key of the wire representation is a
// namespaced property key rather than a reserved store field ("o:*", "@*").
func isPropertyKey(key string) bool {
	if strings.HasPrefix(key, "o:") || strings.HasPrefix(key, "@") {
		return false
	}
	return strings.Contains(key, ":")
}

// UnmarshalJSON decodes the store's wire representation: reserved "o:*"
// fields carry identity and metadata, every other namespaced key is a
// property with an ordered value list.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = jsonutil.FlexibleID(raw["o:id"])
	r.Title = jsonutil.FlexibleStringValue(raw["o:title"])
	r.Properties = make(map[string][]PropertyValue)

	if tpl, ok := raw["o:resource_template"]; ok {
		var ref struct {
			ID json.RawMessage `json:"o:id"`
		}
		if err := json.Unmarshal(tpl, &ref); err == nil {
			r.TemplateID = jsonutil.FlexibleID(ref.ID)
		}
	}
	if media, ok := raw["o:media"]; ok {
		// Media refs that fail to decode are dropped, not fatal.
		_ = json.Unmarshal(media, &r.Media)
	}
	if created, ok := raw["o:created"]; ok {
		r.Created = decodeTimestamp(created)
	}
	if modified, ok := raw["o:modified"]; ok {
		r.Modified = decodeTimestamp(modified)
	}

	for key, val := range raw {
		if !isPropertyKey(key) {
			continue
		}
		var vals []PropertyValue
		if err := json.Unmarshal(val, &vals); err != nil {
			// Non-list property payloads are not part of the contract; skip.
			continue
		}
		r.Properties[key] = vals
	}
	return nil
}

// MarshalJSON encodes the resource back into the wire representation, so a
// resource serialized by this module round-trips through UnmarshalJSON.
func (r *Resource) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Properties)+6)
	out["o:id"] = r.ID
	if r.Title != "" {
		out["o:title"] = r.Title
	}
	if r.TemplateID != 0 {
		out["o:resource_template"] = map[string]any{"o:id": r.TemplateID}
	}
	if len(r.Media) > 0 {
		out["o:media"] = r.Media
	}
	if !r.Created.IsZero() {
		out["o:created"] = r.Created.Format(time.RFC3339)
	}
	if !r.Modified.IsZero() {
		out["o:modified"] = r.Modified.Format(time.RFC3339)
	}
	for key, vals := range r.Properties {
		out[key] = vals
	}
	return json.Marshal(out)
}

// decodeTimestamp handles both bare RFC3339 strings and the store's
// {"@value": "..."} envelope.
func decodeTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var env struct {
			Value string `json:"@value"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return time.Time{}
		}
		s = env.Value
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
