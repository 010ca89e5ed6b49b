package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestFromTokenReadsBothIdentifiers(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"resource_id": 77, "principal_id": 5})

	actor, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(77), actor.ResourceID)
	assert.Equal(t, int64(5), actor.PrincipalID)
}

func TestFromTokenFallsBackToSub(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"resource_id": 77, "sub": "5"})

	actor, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), actor.PrincipalID)
}

func TestFromTokenAcceptsStringIDs(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"resource_id": "77", "principal_id": "5"})

	actor, err := FromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(77), actor.ResourceID)
	assert.Equal(t, int64(5), actor.PrincipalID)
}

func TestFromTokenWithoutIdentifiersFails(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"name": "anonyme"})

	_, err := FromToken(token)
	assert.Error(t, err)
}

func TestFromTokenMalformedFails(t *testing.T) {
	_, err := FromToken("not-a-token")
	assert.Error(t, err)
}

func TestFromRequestWithoutHeaderIsAnonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/resources/42", nil)

	actor, err := FromRequest(r)
	require.NoError(t, err)
	assert.Nil(t, actor)
}

func TestFromRequestBearerToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/resources", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"principal_id": 5}))

	actor, err := FromRequest(r)
	require.NoError(t, err)
	require.NotNil(t, actor)
	assert.Equal(t, int64(5), actor.PrincipalID)
}

func TestFromRequestRejectsNonBearerScheme(t *testing.T) {
	r := httptest.NewRequest("POST", "/resources", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := FromRequest(r)
	assert.Error(t, err)
}
