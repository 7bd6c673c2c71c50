package retrieval

import (
	"context"
	"fmt"
	"strconv"
)

// Evidence is one retrieved passage with its provenance.
type Evidence struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Score   float32 `json:"score"`
}

// RetrieverConfig holds retrieval parameters.
type RetrieverConfig struct {
	TopK          int     // default 5
	MinSimilarity float32 // default 0.3; medical passages phrase things differently from questions
}

// Retriever searches the evidence corpus.
type Retriever struct {
	config RetrieverConfig
	store  VectorStore
}

// NewRetriever wraps a vector store with search defaults.
func NewRetriever(config RetrieverConfig, store VectorStore) *Retriever {
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.MinSimilarity == 0 {
		config.MinSimilarity = 0.3
	}
	return &Retriever{config: config, store: store}
}

// Search returns the topK most similar passages for query. An empty result is
// a normal outcome, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Evidence, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	hits, err := r.store.SearchByText(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search evidence: %w", err)
	}

	evidence := make([]Evidence, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < r.config.MinSimilarity {
			continue
		}
		ev := Evidence{
			Content: hit.Document.Content,
			Source:  hit.Document.Metadata["source"],
			Score:   hit.Similarity,
		}
		if page, ok := hit.Document.Metadata["page"]; ok {
			if n, err := strconv.Atoi(page); err == nil {
				ev.Page = n
			}
		}
		evidence = append(evidence, ev)
	}
	return evidence, nil
}
