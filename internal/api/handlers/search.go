package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/crawlvec/internal/api"
	"github.com/cloo-solutions/crawlvec/internal/domain"
	"github.com/cloo-solutions/crawlvec/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]domain.SearchHit, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query    string `json:"query"`
	NResults *int   `json:"n_results"`
}

type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	hits, err := h.svc.Search(r.Context(), service.NewSearchInput(req.Query, req.NResults))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		metadata := hit.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		results = append(results, SearchResult{
			Content:  hit.Content,
			Metadata: metadata,
			Distance: hit.Distance,
		})
	}

	api.JSON(w, http.StatusOK, SearchResponse{Results: results})
}
