package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/embedding"
)

// Service loads a document, splits it into overlapping chunks, embeds them
// and replaces the target collection with the new chunk set. Retrieval reads
// the same table, so corpus and queries share one embedding space.
type Service struct {
	db       *sql.DB
	embedder embedding.Embedder
	loader   *file.FileLoader
	splitter document.Transformer
}

// NewService wires the loader, splitter and embedder for ingestion.
func NewService(db *sql.DB, embedder embedding.Embedder, chunkSize, chunkOverlap int) (*Service, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	splitter, err := recursive.NewSplitter(context.Background(), &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: chunkOverlap,
		Separators:  []string{"\n\n", "\n", " "},
	})
	if err != nil {
		return nil, fmt.Errorf("init splitter: %w", err)
	}
	return &Service{db: db, embedder: embedder, loader: loader, splitter: splitter}, nil
}

// IngestFile processes one document into the named collection and returns
// the number of chunks stored. Any previous content of the collection is
// dropped first, so re-ingesting a source is idempotent.
func (s *Service) IngestFile(ctx context.Context, path, collection string) (int, error) {
	if strings.TrimSpace(collection) == "" {
		return 0, errors.New("collection is required")
	}
	docs, err := s.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return 0, fmt.Errorf("load document: %w", err)
	}
	chunks, err := s.splitter.Transform(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("split document: %w", err)
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		text := strings.TrimSpace(chunk.Content)
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return 0, errors.New("document has no readable text content")
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	source := filepath.Base(path)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM kb_embeddings WHERE collection = ?`, collection); err != nil {
		return 0, fmt.Errorf("clear collection: %w", err)
	}
	for i, text := range texts {
		var encoded []byte
		encoded, err = json.Marshal(vectors[i])
		if err != nil {
			return 0, fmt.Errorf("encode embedding %d: %w", i, err)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO kb_embeddings (collection, source, chunk_idx, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			collection, source, i, text, string(encoded), now,
		); err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingest: %w", err)
	}
	return len(texts), nil
}
