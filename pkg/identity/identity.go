// Package identity extracts the current actor from already-verified JWT
// claims. Authentication and authorization enforcement live outside the
// engine; this package only reads the two identifiers the create path needs.
package identity

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Actor identifies who is creating content: the actor's own resource in the
// corpus and the store-side authentication principal.
type Actor struct {
	ResourceID  int64 `json:"resource_id"`
	PrincipalID int64 `json:"principal_id"`
}

// FromToken extracts the actor from a bearer token. The token is assumed to
// be verified by the fronting auth layer; only its claims are read here.
// Expected claims: "resource_id" (actor's corpus resource) and
// "principal_id" or "sub" (store user id). Ids may arrive as numbers or
// decimal strings.
func FromToken(tokenString string) (*Actor, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	actor := &Actor{
		ResourceID:  claimID(claims, "resource_id"),
		PrincipalID: claimID(claims, "principal_id"),
	}
	if actor.PrincipalID == 0 {
		actor.PrincipalID = claimID(claims, "sub")
	}
	if actor.ResourceID == 0 && actor.PrincipalID == 0 {
		return nil, fmt.Errorf("token carries no actor identifiers")
	}
	return actor, nil
}

// FromRequest extracts the actor from a request's Authorization header.
// Returns (nil, nil) when no bearer token is present: an anonymous request
// is not an error, the create path simply omits ownership properties.
func FromRequest(r *http.Request) (*Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("malformed authorization header")
	}
	return FromToken(strings.TrimPrefix(header, prefix))
}

func claimID(claims jwt.MapClaims, name string) int64 {
	switch v := claims[name].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}
