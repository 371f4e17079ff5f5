package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/crawlvec/internal/api"
	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/service"
)

type IndexingService interface {
	CrawlAndIndex(ctx context.Context, input service.CrawlInput) (*domain.IndexResult, error)
}

type CrawlHandler struct {
	svc IndexingService
}

func NewCrawlHandler(svc IndexingService) *CrawlHandler {
	return &CrawlHandler{svc: svc}
}

// CrawlRequest leaves optional fields nil so that defaults apply only when
// a field is absent, not when it is explicitly zero.
type CrawlRequest struct {
	URL       string `json:"url"`
	MaxDepth  *int   `json:"max_depth"`
	ChunkSize *int   `json:"chunk_size"`
}

type CrawlResponse struct {
	Success     bool   `json:"success"`
	URL         string `json:"url"`
	ChunksAdded int    `json:"chunks_added"`
	Message     string `json:"message"`
}

func (h *CrawlHandler) Crawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.CrawlAndIndex(r.Context(), service.NewCrawlInput(req.URL, req.MaxDepth, req.ChunkSize))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, CrawlResponse{
		Success:     result.Success,
		URL:         result.URL,
		ChunksAdded: result.ChunksAdded,
		Message:     result.Message,
	})
}
