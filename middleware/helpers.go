package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

const jwtClaimUserID = "user_id"

// GetUserIDFromContext extracts the authenticated user's id from the JWT
// claims placed in the context by Authenticate. Numeric claims arrive as
// float64 after JSON decoding; string ids are tolerated as well.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("user claims not found in context or invalid type")
	}

	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return 0, fmt.Errorf("missing %q claim in token", jwtClaimUserID)
	}

	switch v := userIDClaim.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%q claim is not an integer: %f", jwtClaimUserID, v)
		}
		id := int(v)
		if id <= 0 {
			return 0, fmt.Errorf("invalid user id value in %q claim: %d", jwtClaimUserID, id)
		}
		return id, nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid user id value in %q claim: %q", jwtClaimUserID, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("invalid type for %q claim: expected number or string, got %T", jwtClaimUserID, userIDClaim)
	}
}
