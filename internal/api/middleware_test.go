package api

import (
	"bardchat-backend/internal/auth"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-unit-test-secret"

func protectedEcho(t *testing.T, capturedID *uuid.UUID) http.Handler {
	t.Helper()
	return JwtAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		*capturedID = id
		w.WriteHeader(http.StatusOK)
	}))
}

func TestJwtMiddlewareAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := auth.NewAccessToken(userID, testSecret, time.Hour)
	require.NoError(t, err)

	var got uuid.UUID
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedEcho(t, &got).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, userID, got, "user ID from claims lands in the request context")
}

func TestJwtMiddlewareRejectsMissingHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	var got uuid.UUID
	protectedEcho(t, &got).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJwtMiddlewareRejectsExpiredToken(t *testing.T) {
	token, err := auth.NewAccessToken(uuid.New(), testSecret, -time.Minute)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	var got uuid.UUID
	protectedEcho(t, &got).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJwtMiddlewareRejectsWrongSecret(t *testing.T) {
	token, err := auth.NewAccessToken(uuid.New(), "some-other-secret-some-other-secret", time.Hour)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	var got uuid.UUID
	protectedEcho(t, &got).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJwtMiddlewareRejectsMalformedHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Token abc")
	var got uuid.UUID
	protectedEcho(t, &got).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
