package tool

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/moyoez/cloudsend/types"
)

var ErrInvalidToken = errors.New("invalid access token")

type userClaims struct {
	jwt.RegisteredClaims
	UserID   string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     types.Role `json:"role"`
}

// UserFromToken decodes the account claims of an access token.
// The signature is not verified; the remote store does that on every request.
func UserFromToken(token string) (types.User, time.Time, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return types.User{}, time.Time{}, ErrInvalidToken
	}
	var claims userClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return types.User{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	role := claims.Role
	if role == "" {
		role = types.RoleUser
	}
	return types.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
	}, exp, nil
}

// CallerFromToken builds the upload capability for the token's account.
func CallerFromToken(token string) (types.Caller, error) {
	user, exp, err := UserFromToken(token)
	if err != nil {
		return types.Caller{}, err
	}
	if !exp.IsZero() && exp.Before(time.Now()) {
		DefaultLogger.Warnf("Access token for %s expired at %s", user.Username, exp.Format(time.RFC3339))
	}
	return types.Caller{
		UserID: user.ID,
		Name:   user.Username,
		Role:   user.Role,
	}, nil
}
