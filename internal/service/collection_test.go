package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

func TestHealth_Healthy(t *testing.T) {
	store := new(MockVectorStore)
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(testColl, nil)
	store.On("Count", mock.Anything, testColl).Return(42, nil)
	store.On("Endpoint").Return("http://chroma:8000")

	svc := NewCollectionService(store, testCollection, nil, nil)
	report := svc.Health(context.Background())

	assert.True(t, report.Healthy())
	assert.Equal(t, "http://chroma:8000", report.StoreEndpoint)
	assert.Equal(t, testCollection, report.Collection)
	assert.Equal(t, 42, report.Count)
	assert.Empty(t, report.Error)
}

type heartbeatStore struct {
	*MockVectorStore
	err error
}

func (s heartbeatStore) Heartbeat(context.Context) error { return s.err }

func TestHealth_HeartbeatFailureSkipsLookup(t *testing.T) {
	store := heartbeatStore{MockVectorStore: new(MockVectorStore), err: errors.New("connection refused")}

	svc := NewCollectionService(store, testCollection, nil, nil)
	report := svc.Health(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, "connection refused", report.Error)
	store.AssertNotCalled(t, "GetOrCreateCollection", mock.Anything, mock.Anything)
}

func TestHealth_HeartbeatThenCount(t *testing.T) {
	store := heartbeatStore{MockVectorStore: new(MockVectorStore)}
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(testColl, nil)
	store.On("Count", mock.Anything, testColl).Return(3, nil)
	store.On("Endpoint").Return("http://chroma:8000")

	svc := NewCollectionService(store, testCollection, nil, nil)
	report := svc.Health(context.Background())

	assert.True(t, report.Healthy())
	assert.Equal(t, 3, report.Count)
}

func TestHealth_StoreUnreachable(t *testing.T) {
	store := new(MockVectorStore)
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(nil, errors.New("dial tcp 10.0.0.1:8000: connection refused"))

	svc := NewCollectionService(store, testCollection, nil, nil)
	report := svc.Health(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, domain.HealthStatusUnhealthy, report.Status)
	assert.Contains(t, report.Error, "connection refused")
}

func TestHealth_CountFails(t *testing.T) {
	store := new(MockVectorStore)
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(testColl, nil)
	store.On("Count", mock.Anything, testColl).Return(0, errors.New("count failed"))

	svc := NewCollectionService(store, testCollection, nil, nil)
	report := svc.Health(context.Background())

	assert.Equal(t, domain.HealthStatusUnhealthy, report.Status)
	assert.Equal(t, "count failed", report.Error)
}

func TestStats(t *testing.T) {
	store := new(MockVectorStore)
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(testColl, nil)
	store.On("Count", mock.Anything, testColl).Return(7, nil)
	store.On("Endpoint").Return("postgres://crawl:xxxxx@db:5432/crawl")

	svc := NewCollectionService(store, testCollection, nil, nil)
	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, testCollection, stats.CollectionName)
	assert.Equal(t, 7, stats.TotalDocuments)
	assert.Equal(t, "postgres://crawl:xxxxx@db:5432/crawl", stats.StoreEndpoint)
}

func TestStats_StoreErrorPropagates(t *testing.T) {
	store := new(MockVectorStore)
	store.On("GetOrCreateCollection", mock.Anything, testCollection).Return(nil, errors.New("unreachable"))

	svc := NewCollectionService(store, testCollection, nil, nil)
	_, err := svc.Stats(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStore, domain.CodeOf(err))
}

func TestDeleteCollection(t *testing.T) {
	store := new(MockVectorStore)
	store.On("DeleteCollection", mock.Anything, testCollection).Return(nil).Once()

	svc := NewCollectionService(store, testCollection, nil, nil)
	err := svc.DeleteCollection(context.Background())

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestDeleteCollection_NotFound(t *testing.T) {
	store := new(MockVectorStore)
	store.On("DeleteCollection", mock.Anything, testCollection).Return(domain.ErrCollectionNotFound)

	svc := NewCollectionService(store, testCollection, nil, nil)
	err := svc.DeleteCollection(context.Background())

	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
	assert.Equal(t, domain.ErrCodeNotFound, domain.CodeOf(err))
}

func TestDeleteCollection_StoreError(t *testing.T) {
	store := new(MockVectorStore)
	store.On("DeleteCollection", mock.Anything, testCollection).Return(errors.New("boom"))

	svc := NewCollectionService(store, testCollection, nil, nil)
	err := svc.DeleteCollection(context.Background())

	assert.Equal(t, domain.ErrCodeStore, domain.CodeOf(err))
}

func TestSources(t *testing.T) {
	store := new(MockVectorStore)
	sources := new(MockSourceRegistry)
	recorded := []*domain.CrawlSource{
		{Collection: testCollection, URL: "https://example.com/a", ChunkSize: 1000, Chunks: 4, LastIndexedAt: time.Now()},
	}
	sources.On("ListSources", mock.Anything, testCollection).Return(recorded, nil)

	svc := NewCollectionService(store, testCollection, sources, nil)
	got, err := svc.Sources(context.Background())

	require.NoError(t, err)
	assert.Equal(t, recorded, got)
}

func TestSources_EmptyIsNonNil(t *testing.T) {
	sources := new(MockSourceRegistry)
	sources.On("ListSources", mock.Anything, testCollection).Return(nil, nil)

	svc := NewCollectionService(new(MockVectorStore), testCollection, sources, nil)
	got, err := svc.Sources(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSources_NotConfigured(t *testing.T) {
	svc := NewCollectionService(new(MockVectorStore), testCollection, nil, nil)

	_, err := svc.Sources(context.Background())

	assert.ErrorIs(t, err, domain.ErrSourcesNotConfigured)
	assert.Equal(t, domain.ErrCodeNotConfigured, domain.CodeOf(err))
}
