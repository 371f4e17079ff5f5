package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloo-solutions/crawlvec/internal/api"
	"github.com/cloo-solutions/crawlvec/internal/domain"
)

type CollectionService interface {
	CollectionName() string
	Health(ctx context.Context) domain.HealthReport
	Stats(ctx context.Context) (*domain.CollectionStats, error)
	DeleteCollection(ctx context.Context) error
	Sources(ctx context.Context) ([]*domain.CrawlSource, error)
}

type CollectionHandler struct {
	svc CollectionService
}

func NewCollectionHandler(svc CollectionService) *CollectionHandler {
	return &CollectionHandler{svc: svc}
}

// HealthResponse carries either the healthy fields or Error, never both.
type HealthResponse struct {
	Status          string `json:"status"`
	StoreEndpoint   string `json:"store_endpoint,omitempty"`
	Collection      string `json:"collection,omitempty"`
	CollectionCount *int   `json:"collection_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

type StatsResponse struct {
	CollectionName string `json:"collection_name"`
	TotalDocuments int    `json:"total_documents"`
	StoreEndpoint  string `json:"store_endpoint"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SourceResponse struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	ChunkSize     int    `json:"chunk_size"`
	MaxDepth      int    `json:"max_depth"`
	Chunks        int    `json:"chunks"`
	LastIndexedAt string `json:"last_indexed_at"`
}

type SourcesResponse struct {
	Sources []SourceResponse `json:"sources"`
}

// Health always answers 200; an unreachable store is reported in the body.
func (h *CollectionHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health(r.Context())

	if !report.Healthy() {
		api.JSON(w, http.StatusOK, HealthResponse{
			Status: report.Status,
			Error:  report.Error,
		})
		return
	}

	count := report.Count
	api.JSON(w, http.StatusOK, HealthResponse{
		Status:          report.Status,
		StoreEndpoint:   report.StoreEndpoint,
		Collection:      report.Collection,
		CollectionCount: &count,
	})
}

func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, StatsResponse{
		CollectionName: stats.CollectionName,
		TotalDocuments: stats.TotalDocuments,
		StoreEndpoint:  stats.StoreEndpoint,
	})
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCollection(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Collection %s deleted successfully", h.svc.CollectionName()),
	})
}

func (h *CollectionHandler) Sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.Sources(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SourcesResponse{Sources: make([]SourceResponse, 0, len(sources))}
	for _, src := range sources {
		resp.Sources = append(resp.Sources, SourceResponse{
			URL:           src.URL,
			Title:         src.Title,
			ChunkSize:     src.ChunkSize,
			MaxDepth:      src.MaxDepth,
			Chunks:        src.Chunks,
			LastIndexedAt: src.LastIndexedAt.UTC().Format(time.RFC3339),
		})
	}

	api.JSON(w, http.StatusOK, resp)
}
