package tool

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/cloudsend/types"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-server-key"))
	require.NoError(t, err)
	return token
}

func TestUserFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{
		"id":       "665f1c",
		"username": "alice",
		"email":    "alice@example.com",
		"role":     "admin",
		"exp":      exp.Unix(),
	})

	user, gotExp, err := UserFromToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, types.User{ID: "665f1c", Username: "alice", Email: "alice@example.com", Role: types.RoleAdmin}, user)
	assert.True(t, exp.Equal(gotExp))
}

func TestCallerFromToken(t *testing.T) {
	guest := signToken(t, jwt.MapClaims{"id": "1", "username": "visitor", "role": "guest"})
	caller, err := CallerFromToken(guest)
	require.NoError(t, err)
	assert.False(t, caller.CanUpload())

	// Expired tokens still decode; the store decides.
	expired := signToken(t, jwt.MapClaims{"id": "2", "username": "bob", "exp": time.Now().Add(-time.Hour).Unix()})
	caller, err = CallerFromToken(expired)
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, caller.Role)
	assert.True(t, caller.CanUpload())

	_, err = CallerFromToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = CallerFromToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
