package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/service"
)

type MockIndexingService struct {
	mock.Mock
}

func (m *MockIndexingService) CrawlAndIndex(ctx context.Context, input service.CrawlInput) (*domain.IndexResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexResult), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]domain.SearchHit, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

type MockCollectionService struct {
	mock.Mock
}

func (m *MockCollectionService) CollectionName() string {
	return m.Called().String(0)
}

func (m *MockCollectionService) Health(ctx context.Context) domain.HealthReport {
	return m.Called(ctx).Get(0).(domain.HealthReport)
}

func (m *MockCollectionService) Stats(ctx context.Context) (*domain.CollectionStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollectionStats), args.Error(1)
}

func (m *MockCollectionService) DeleteCollection(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCollectionService) Sources(ctx context.Context) ([]*domain.CrawlSource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CrawlSource), args.Error(1)
}
