package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/identity"
	"github.com/Mathiio/edisem-sub000/pkg/models"
)

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	cfg := testType(t)
	return NewCompiler(cfg, NewResolver(cfg, zap.NewNop()), zap.NewNop())
}

func refIDs(vals []models.PropertyValue) []int64 {
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		ids = append(ids, v.ResourceID)
	}
	return ids
}

func TestCompileUpdatePassesUnknownPropertiesThrough(t *testing.T) {
	// Properties the configuration does not describe survive the round trip
	// untouched, even when other fields are edited.
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("title", "Talk 1 (rev)")
	orig := conferenceResource()

	payload, err := c.CompileUpdate(orig, form, testPropertyMap())
	require.NoError(t, err)

	assert.Equal(t, orig.Properties["dcterms:abstract"], payload.PropertyValues("dcterms:abstract"))
	assert.Equal(t, orig.Properties["dcterms:relation"], payload.PropertyValues("dcterms:relation"))
	assert.Equal(t, models.TemplateRef(71), payload["o:resource_template"])
}

func TestCompileUpdateRewritesTouchedLiteral(t *testing.T) {
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("title", "Talk 1 (rev)")

	payload, err := c.CompileUpdate(conferenceResource(), form, testPropertyMap())
	require.NoError(t, err)

	vals := payload.PropertyValues("dcterms:title")
	require.Len(t, vals, 1)
	assert.Equal(t, "Talk 1 (rev)", vals[0].Value)
	assert.Equal(t, int64(1), vals[0].PropertyID)
}

func TestCompileUpdateReplacesReferenceListWholesale(t *testing.T) {
	// Starting from {A, B}, removing A and adding C must produce exactly
	// {B, C}; duplicates in form state collapse to one reference.
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("contributors", []models.Entity{
		{ID: 8, Title: "B. Doctorant"},
		{ID: 9, Title: "C. Archiviste"},
		{ID: 9, Title: "C. Archiviste"},
	})

	payload, err := c.CompileUpdate(conferenceResource(), form, testPropertyMap())
	require.NoError(t, err)

	vals := payload.PropertyValues("schema:contributor")
	assert.Equal(t, []int64{8, 9}, refIDs(vals))
	assert.Equal(t, "B. Doctorant", vals[0].Label)
}

func TestCompileUpdateWritesThroughLegacyAlias(t *testing.T) {
	// An edit keyed by the field's legacy alias compiles exactly like an
	// edit keyed by the field itself.
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("personnes", []models.Entity{{ID: 9, Title: "C. Archiviste"}})

	payload, err := c.CompileUpdate(conferenceResource(), form, testPropertyMap())
	require.NoError(t, err)

	vals := payload.PropertyValues("schema:contributor")
	assert.Equal(t, []int64{9}, refIDs(vals))
	assert.Equal(t, "C. Archiviste", vals[0].Label)
}

func TestCompileUpdateKeywordReferences(t *testing.T) {
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("keywords", []models.Entity{
		{ID: 10, Title: "archive"},
		{ID: 12, Title: "oralité"},
	})

	payload, err := c.CompileUpdate(conferenceResource(), form, testPropertyMap())
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 12}, refIDs(payload.PropertyValues("jdc:hasConcept")))
}

func TestCompileUpdateSynthesizesAbsentNumericProperty(t *testing.T) {
	c := newCompiler(t)
	orig := conferenceResource()
	delete(orig.Properties, "dcterms:extent")
	form := NewFormState(testType(t), zap.NewNop())
	form.Hydrate(&models.FetchResult{ItemDetails: orig, ViewData: map[string]any{}})
	form.SetField("duration", "120")

	payload, err := c.CompileUpdate(orig, form, testPropertyMap())
	require.NoError(t, err)

	vals := payload.PropertyValues("dcterms:extent")
	require.Len(t, vals, 1)
	assert.Equal(t, "120", vals[0].Value)
	assert.Equal(t, int64(25), vals[0].PropertyID)
}

func TestCompileUpdateOmitsUnresolvedField(t *testing.T) {
	c := newCompiler(t)
	form, _ := hydratedForm(t)
	form.SetField("contributors", []models.Entity{{ID: 9}})
	pm := models.PropertyMap{"dcterms:title": 1}

	payload, err := c.CompileUpdate(conferenceResource(), form, pm)
	require.NoError(t, err)

	// The original reference list passes through unchanged instead of being
	// replaced with the edit.
	assert.Equal(t, []int64{7, 8}, refIDs(payload.PropertyValues("schema:contributor")))
}

func TestCompileCreateFullPayload(t *testing.T) {
	c := newCompiler(t)
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetFields(map[string]any{
		"title":     "Nouvelle séance",
		"personnes": []models.Entity{{ID: 7, Title: "A. Chercheuse"}},
	})

	actor := &identity.Actor{ResourceID: 77, PrincipalID: 5}
	payload, err := c.CompileCreate(71, form, testPropertyMap(), CreateOptions{Actor: actor, ParentID: 99})
	require.NoError(t, err)

	assert.Equal(t, models.TemplateRef(71), payload["o:resource_template"])
	assert.Equal(t, map[string]any{"o:id": int64(5)}, payload["o:owner"])

	titles := payload.PropertyValues("dcterms:title")
	require.Len(t, titles, 1)
	assert.Equal(t, "Nouvelle séance", titles[0].Value)

	// The legacy "personnes" key feeds the contributors field; the first
	// resolvable candidate in the property map is schema:contributor.
	assert.Equal(t, []int64{7}, refIDs(payload.PropertyValues("schema:contributor")))

	assert.Equal(t, []int64{99}, refIDs(payload.PropertyValues("dcterms:isPartOf")))
	assert.Equal(t, []int64{77}, refIDs(payload.PropertyValues("dcterms:creator")))

	// Untouched optional fields produce no property at all.
	assert.Nil(t, payload["schema:url"])
}

func TestCompileCreateURLFieldBecomesURIValue(t *testing.T) {
	c := newCompiler(t)
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetFields(map[string]any{
		"title":   "Avec lien",
		"fullUrl": "https://example.org/seance",
	})

	payload, err := c.CompileCreate(71, form, testPropertyMap(), CreateOptions{})
	require.NoError(t, err)

	vals := payload.PropertyValues("schema:url")
	require.Len(t, vals, 1)
	assert.Equal(t, models.TypeURI, vals[0].Type)
	assert.Equal(t, "https://example.org/seance", vals[0].URI)
}

func TestCompileCreateSkipsExplicitlyEmptyURL(t *testing.T) {
	// A field present in form data with an empty value behaves like an
	// absent field: no property is emitted for it.
	c := newCompiler(t)
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetFields(map[string]any{
		"title":   "Sans lien",
		"fullUrl": "",
	})

	payload, err := c.CompileCreate(71, form, testPropertyMap(), CreateOptions{})
	require.NoError(t, err)

	assert.NotContains(t, payload, "schema:url")
	require.Len(t, payload.PropertyValues("dcterms:title"), 1)
}

func TestCompileCreateLoosePropertyKeys(t *testing.T) {
	// Form entries keyed by a namespaced property key that no configured
	// field consumed are persisted by their runtime shape.
	c := newCompiler(t)
	pm := testPropertyMap()
	pm["jdc:transcript"] = 60
	pm["jdc:hasCitation"] = 302
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetFields(map[string]any{
		"title":           "Avec extras",
		"jdc:transcript":  "Bonjour à toutes et à tous.",
		"jdc:hasCitation": []models.Entity{{ID: 20}, {ID: 0}},
		"dcterms:extent":  90,
	})

	payload, err := c.CompileCreate(71, form, pm, CreateOptions{})
	require.NoError(t, err)

	transcripts := payload.PropertyValues("jdc:transcript")
	require.Len(t, transcripts, 1)
	assert.Equal(t, "Bonjour à toutes et à tous.", transcripts[0].Value)
	assert.Equal(t, int64(60), transcripts[0].PropertyID)

	assert.Equal(t, []int64{20}, refIDs(payload.PropertyValues("jdc:hasCitation")))

	extents := payload.PropertyValues("dcterms:extent")
	require.Len(t, extents, 1)
	assert.Equal(t, "90", extents[0].Value)
}

func TestCompileCreateDropsUnresolvedLooseKeys(t *testing.T) {
	c := newCompiler(t)
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetFields(map[string]any{
		"title":        "Sans surprise",
		"unknown:prop": "orphan value",
	})

	payload, err := c.CompileCreate(71, form, testPropertyMap(), CreateOptions{})
	require.NoError(t, err)

	assert.NotContains(t, payload, "unknown:prop")
	assert.NotNil(t, payload.PropertyValues("dcterms:title"))
}

func TestCompileCreateWithoutActorSkipsOwnership(t *testing.T) {
	c := newCompiler(t)
	form := NewFormState(testType(t), zap.NewNop())
	form.BeginCreate()
	form.SetField("title", "Anonyme")

	payload, err := c.CompileCreate(71, form, testPropertyMap(), CreateOptions{})
	require.NoError(t, err)

	assert.NotContains(t, payload, "o:owner")
	assert.Nil(t, payload.PropertyValues("dcterms:creator"))
}

func TestMediaDeletionsMapsIndexesToIDs(t *testing.T) {
	c := newCompiler(t)
	orig := conferenceResource()

	ids := c.MediaDeletions(orig, []int{1, 1, 5, -1})
	assert.Equal(t, []int64{901}, ids)

	assert.Empty(t, c.MediaDeletions(orig, nil))
	assert.Empty(t, c.MediaDeletions(nil, []int{0}))
}
