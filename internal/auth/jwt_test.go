package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynccalc/internal/models"
)

var alice = models.User{ID: 7, Login: "alice"}

func TestGenerateAndValidate(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.GenerateToken(alice)
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, alice, claims.User())

	user, err := tokens.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, alice, user)
}

func TestValidateRejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken(alice)
	require.NoError(t, err)
	_, err = tokens.ValidateToken(old)
	assert.ErrorIs(t, err, ErrExpiredToken)

	foreign, err := NewTokens("other", time.Hour).GenerateToken(alice)
	require.NoError(t, err)
	_, err = tokens.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := tokens.GenerateToken(models.User{})
	require.NoError(t, err)
	_, err = tokens.ValidateToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{header: "Bearer abc", token: "abc", ok: true},
		{header: "bearer abc", token: "abc", ok: true},
		{header: "Basic abc"},
		{header: "Bearer"},
		{header: "Bearer a b"},
		{header: ""},
	}
	for _, tt := range tests {
		token, ok := ExtractBearer(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	handler := tokens.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(user.Login))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrMissingToken.Error())

	token, err := tokens.GenerateToken(alice)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	user, ok := UserFromContext(WithUser(context.Background(), alice))
	require.True(t, ok)
	assert.Equal(t, alice, user)
}
