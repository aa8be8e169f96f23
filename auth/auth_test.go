package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMiddleware(t *testing.T) {
	a, err := New(Options{
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	var captured *Claims
	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Context().Value(Context).(*Claims)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserEmail, "user@example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-1", captured.ID)
	assert.Equal(t, "user@example.com", captured.Email)
}

func TestClaimCheck(t *testing.T) {
	a, err := New(Options{
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	// behind Middleware the claims are present and the request passes
	guarded := a.Middleware()(a.ClaimCheck()(inner))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	// mounted without Middleware the missing claims are caught before the handler
	called = false
	bare := a.ClaimCheck()(inner)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
}

func TestMiddlewareMissingIdentity(t *testing.T) {
	a, err := New(Options{
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	called := false
	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}
