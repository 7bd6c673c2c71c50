// Package retrieval provides the evidence collaborator: a chromem-go vector
// store over a maternal-health reference corpus, queried by the medical
// answer handler.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

// StoreConfig configures the vector store.
type StoreConfig struct {
	PersistPath string // empty = in-memory
	Collection  string // default medical_sources
}

// Document is one stored evidence chunk.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string // source, page
}

// VectorStore manages evidence chunks and similarity search.
type VectorStore interface {
	Add(ctx context.Context, docs []Document) error
	SearchByText(ctx context.Context, query string, topK int) ([]ScoredDocument, error)
	Count() int
}

// ScoredDocument is one search hit.
type ScoredDocument struct {
	Document   Document
	Similarity float32
}

type chromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorStore opens (or creates) the evidence store. The embedder supplies
// the embedding function used both at index and query time.
func NewVectorStore(config StoreConfig, embedder Embedder) (VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "medical_sources"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistPath, "evidence.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent evidence store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(config.Collection, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", config.Collection, err)
	}
	return &chromemStore{db: db, collection: collection}, nil
}

func (s *chromemStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	converted := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		converted = append(converted, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	if err := s.collection.AddDocuments(ctx, converted, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (s *chromemStore) SearchByText(ctx context.Context, query string, topK int) ([]ScoredDocument, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	scored := make([]ScoredDocument, 0, len(results))
	for _, r := range results {
		scored = append(scored, ScoredDocument{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return scored, nil
}

func (s *chromemStore) Count() int { return s.collection.Count() }
