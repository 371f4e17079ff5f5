package domain

// FetchRequest describes a page to retrieve.
type FetchRequest struct {
	URL string
	// MaxDepth is carried through to the fetcher for link-following fetchers.
	// The HTTP fetcher retrieves only the requested page.
	MaxDepth int
}

// Page is the extracted content of a fetched document.
type Page struct {
	URL         string
	Title       string
	Markdown    string
	CleanedHTML string
}

// Text returns the markdown rendering, falling back to the cleaned HTML text.
func (p *Page) Text() string {
	if p == nil {
		return ""
	}
	if p.Markdown != "" {
		return p.Markdown
	}
	return p.CleanedHTML
}

// IndexOutcome distinguishes a completed index from the benign empty cases.
type IndexOutcome string

const (
	OutcomeIndexed      IndexOutcome = "indexed"
	OutcomeEmptyContent IndexOutcome = "empty_content"
	OutcomeNoChunks     IndexOutcome = "no_chunks"
)

// IndexResult is the result of a crawl-and-index request that did not fail.
type IndexResult struct {
	Success     bool
	URL         string
	ChunksAdded int
	Message     string
	Outcome     IndexOutcome
}
