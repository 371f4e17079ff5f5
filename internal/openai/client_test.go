package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func embeddingsOf(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(i) + float32(j)*0.001
		}
		out[i] = v
	}
	return out
}

func TestClient_GenerateEmbeddings_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 8)

	ctx := context.Background()
	texts := []string{"first chunk", "second chunk", "third chunk"}
	expected := embeddingsOf(3, 8)

	mockAPI.On("CreateEmbeddings", ctx, texts).Return(expected, nil).Once()

	embeddings, err := client.GenerateEmbeddings(ctx, texts)

	require.NoError(t, err)
	assert.Equal(t, expected, embeddings)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_SplitsLargeBatches(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 4)
	client.batchSize = 2

	ctx := context.Background()
	texts := []string{"a", "b", "c", "d", "e"}

	mockAPI.On("CreateEmbeddings", ctx, []string{"a", "b"}).Return(embeddingsOf(2, 4), nil).Once()
	mockAPI.On("CreateEmbeddings", ctx, []string{"c", "d"}).Return(embeddingsOf(2, 4), nil).Once()
	mockAPI.On("CreateEmbeddings", ctx, []string{"e"}).Return(embeddingsOf(1, 4), nil).Once()

	embeddings, err := client.GenerateEmbeddings(ctx, texts)

	require.NoError(t, err)
	assert.Len(t, embeddings, 5)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_Empty(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 4)

	embeddings, err := client.GenerateEmbeddings(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, embeddings)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, mock.Anything)
}

func TestClient_GenerateEmbeddings_EmptyText(t *testing.T) {
	client := newClient(new(MockOpenAIAPI), 4)

	embeddings, err := client.GenerateEmbeddings(context.Background(), []string{"ok", ""})

	assert.Nil(t, embeddings)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbeddings_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 4)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"Test text"}).Return(nil, errors.New("API rate limit exceeded"))

	embeddings, err := client.GenerateEmbeddings(ctx, []string{"Test text"})

	assert.Error(t, err)
	assert.Nil(t, embeddings)
	assert.Contains(t, err.Error(), "failed to create embeddings")
	assert.Contains(t, err.Error(), "rate limit")
}

func TestClient_GenerateEmbeddings_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 1536)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"Test text"}).Return(embeddingsOf(1, 512), nil)

	embeddings, err := client.GenerateEmbeddings(ctx, []string{"Test text"})

	assert.Nil(t, embeddings)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_GenerateEmbeddings_CountMismatch(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := newClient(mockAPI, 4)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"a", "b"}).Return(embeddingsOf(1, 4), nil)

	_, err := client.GenerateEmbeddings(ctx, []string{"a", "b"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings, got 1")
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key"})

	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.dimensions)
	assert.Equal(t, MaxBatchSize, client.batchSize)
}

// embeddingsServer answers /v1/embeddings with vectors in reverse index order.
func embeddingsServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-local", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, dims)
			v[0] = float32(i)
			data = append(data, item{Object: "embedding", Embedding: v, Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func TestOpenAIAdapter_OrdersByIndex(t *testing.T) {
	srv := embeddingsServer(t, 3)
	defer srv.Close()

	client := NewClientWithConfig(Config{
		APIKey:              "sk-local",
		BaseURL:             srv.URL + "/v1",
		EmbeddingDimensions: 3,
	})

	embeddings, err := client.GenerateEmbeddings(context.Background(), []string{"zero", "one", "two"})

	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	for i, v := range embeddings {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestOpenAIAdapter_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter("sk-bad", srv.URL+"/v1", "")

	_, err := adapter.CreateEmbeddings(context.Background(), []string{"x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
