package retrieval

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"taedam/internal/logging"
	"taedam/internal/shared/jsonx"
)

// corpusRecord is one line of a JSONL corpus file.
type corpusRecord struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
}

// IndexCorpus loads a JSONL reference corpus (one {content, source, page}
// object per line) into the vector store. Returns the number of chunks added.
func IndexCorpus(ctx context.Context, store VectorStore, path string, logger logging.Logger) (int, error) {
	logger = logging.OrNop(logger)

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = file.Close() }()

	var docs []Document
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec corpusRecord
		if err := jsonx.Unmarshal(line, &rec); err != nil {
			logger.Warn("skipping corpus line %d: %v", lineNo, err)
			continue
		}
		if rec.Content == "" {
			continue
		}
		meta := map[string]string{"source": rec.Source}
		if rec.Page > 0 {
			meta["page"] = fmt.Sprintf("%d", rec.Page)
		}
		docs = append(docs, Document{
			ID:       uuid.NewString(),
			Content:  rec.Content,
			Metadata: meta,
		})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read corpus: %w", err)
	}

	if err := store.Add(ctx, docs); err != nil {
		return 0, err
	}
	logger.Info("indexed %d evidence chunks from %s", len(docs), path)
	return len(docs), nil
}
