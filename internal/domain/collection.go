package domain

import "time"

// Collection metadata written when the collection is first created.
const CollectionDescription = "Documentation and knowledge base"

// CollectionInfo identifies a store collection.
type CollectionInfo struct {
	ID       string
	Name     string
	Metadata map[string]any
}

// HealthStatus values reported by the health check.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// HealthReport describes vector store reachability.
type HealthReport struct {
	Status        string
	StoreEndpoint string
	Collection    string
	Count         int
	Error         string
}

// Healthy reports whether the store answered.
func (h HealthReport) Healthy() bool {
	return h.Status == HealthStatusHealthy
}

// CollectionStats summarises the configured collection.
type CollectionStats struct {
	CollectionName string
	TotalDocuments int
	StoreEndpoint  string
}

// CrawlSource records how a URL was last indexed into a collection.
type CrawlSource struct {
	Collection    string
	URL           string
	Title         string
	ChunkSize     int
	MaxDepth      int
	Chunks        int
	LastIndexedAt time.Time
}
