package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

var validate = validator.New()

// CrawlInput is a crawl-and-index request with defaults already applied.
type CrawlInput struct {
	URL       string `validate:"required"`
	ChunkSize int    `validate:"min=1"`

	// MaxDepth is passed to the fetcher as given.
	MaxDepth int
}

// NewCrawlInput resolves omitted fields to their defaults. An explicit zero is
// kept so that validation can reject it.
func NewCrawlInput(url string, maxDepth, chunkSize *int) CrawlInput {
	in := CrawlInput{URL: url, MaxDepth: DefaultMaxDepth, ChunkSize: DefaultChunkSize}
	if maxDepth != nil {
		in.MaxDepth = *maxDepth
	}
	if chunkSize != nil {
		in.ChunkSize = *chunkSize
	}
	return in
}

// SearchInput is a semantic search request with defaults already applied.
type SearchInput struct {
	Query    string `validate:"required"`
	NResults int    `validate:"min=1"`
}

func NewSearchInput(query string, nResults *int) SearchInput {
	in := SearchInput{Query: query, NResults: DefaultNResults}
	if nResults != nil {
		in.NResults = *nResults
	}
	return in
}

func validateCrawlInput(in CrawlInput) (CrawlInput, error) {
	if err := validateStruct(in); err != nil {
		return in, err
	}
	normalized, err := NormalizeURL(in.URL)
	if err != nil {
		return in, err
	}
	in.URL = normalized
	return in, nil
}

// validateSearchInput rejects blank queries. The query itself is embedded
// as given.
func validateSearchInput(in SearchInput) (SearchInput, error) {
	if err := validateStruct(in); err != nil {
		return in, err
	}
	if strings.TrimSpace(in.Query) == "" {
		return in, domain.ErrEmptyQuery
	}
	return in, nil
}

// validateStruct maps the first failing field onto its domain error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError(err.Error())
	}

	fe := fieldErrs[0]
	switch fe.StructField() {
	case "URL":
		return domain.ErrInvalidURL
	case "ChunkSize":
		return domain.ErrInvalidChunkSize
	case "Query":
		return domain.ErrEmptyQuery
	case "NResults":
		return domain.ErrInvalidNResults
	default:
		return domain.NewValidationError(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
}
