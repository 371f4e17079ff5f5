package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func TestAPIKeyAuth_Success(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "secret-token").Return(nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	tx := sentry.StartTransaction(context.Background(), "POST /crawl")
	defer tx.Finish()

	req := httptest.NewRequest(http.MethodPost, "/crawl", nil).WithContext(tx.Context())
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", tx.Tags["authenticated"])
	mockValidator.AssertExpectations(t)
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(new(MockAuthValidator))(handler)

	req := httptest.NewRequest(http.MethodPost, "/crawl", nil)
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAPIKeyAuth_InvalidFormat(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(new(MockAuthValidator))(handler)

	req := httptest.NewRequest(http.MethodPost, "/crawl", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestAPIKeyAuth_ValidationFails(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "wrong").Return(errors.New("invalid key"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodDelete, "/collection", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
}

func TestStaticKey(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, StaticKey("s3cret").ValidateAPIKey(ctx, "s3cret"))
	assert.Error(t, StaticKey("s3cret").ValidateAPIKey(ctx, "s3cret2"))
	assert.Error(t, StaticKey("s3cret").ValidateAPIKey(ctx, ""))
	assert.Error(t, StaticKey("").ValidateAPIKey(ctx, ""))
}
