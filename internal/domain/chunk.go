package domain

import "strconv"

// Metadata keys stored alongside every indexed chunk.
const (
	MetaSourceURL   = "source_url"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaTitle       = "title"
)

// Chunk is a contiguous slice of a document's extracted text.
type Chunk struct {
	ID        string
	SourceURL string
	Text      string
	Index     int
	Total     int
}

// ChunkID derives the store id of the chunk at index for sourceURL.
//
// The id is the upsert key: indexing the same URL with the same chunk size
// yields the same ids, so a re-index replaces the previous records instead of
// adding new ones.
func ChunkID(sourceURL string, index int) string {
	return sourceURL + "_chunk_" + strconv.Itoa(index)
}

// IndexedRecord is the unit written to the vector store.
type IndexedRecord struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  map[string]any
}

// Record pairs the chunk with its embedding and the page title.
func (c Chunk) Record(embedding []float32, title string) IndexedRecord {
	return IndexedRecord{
		ID:        c.ID,
		Embedding: embedding,
		Text:      c.Text,
		Metadata: map[string]any{
			MetaSourceURL:   c.SourceURL,
			MetaChunkIndex:  c.Index,
			MetaTotalChunks: c.Total,
			MetaTitle:       title,
		},
	}
}
