package domain

// SearchHit is a single ranked match returned from the vector store.
// Distance uses the store's metric; smaller is closer.
type SearchHit struct {
	ID       string
	Content  string
	Metadata map[string]any
	Distance float64
}

// QueryResult holds the positionally correlated arrays a store query returns.
// Entry i of each slice describes the i-th nearest record.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}
