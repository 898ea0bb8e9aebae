package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lawassist/internal/ai"
	"lawassist/internal/config"
	milvusClient "lawassist/internal/platform/milvus"
	"lawassist/internal/rag"
)

const embedBatchSize = 10

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "corpus", "directory of .txt files to ingest")
	chunkSize := flag.Int("chunk-size", 512, "chunk size in runes")
	chunkOverlap := flag.Int("chunk-overlap", 64, "overlap between chunks in runes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ctx := context.Background()

	milvusCli, err := milvusClient.New(ctx, cfg.Milvus.Address)
	if err != nil {
		log.Fatalf("connect milvus failed: %v", err)
	}
	defer milvusCli.Close(ctx)

	store := rag.NewStore(milvusCli, cfg.Milvus.Collection, cfg.Milvus.Dimension)
	if err := store.EnsureCollection(ctx); err != nil {
		log.Fatalf("prepare collection failed: %v", err)
	}

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	})

	files, err := listTextFiles(*dir)
	if err != nil {
		log.Fatalf("scan corpus dir failed: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no .txt files found in %s", *dir)
	}

	total := 0
	for _, path := range files {
		n, err := ingestFile(ctx, store, embedder, path, *chunkSize, *chunkOverlap)
		if err != nil {
			log.Fatalf("ingest %s failed: %v", path, err)
		}
		log.Printf("ingested %s: %d chunks", path, n)
		total += n
	}

	if err := store.Flush(ctx); err != nil {
		log.Fatalf("flush collection failed: %v", err)
	}
	log.Printf("done: %d chunks from %d files", total, len(files))
}

func listTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func ingestFile(ctx context.Context, store *rag.Store, embedder *ai.EmbeddingClient, path string, chunkSize, chunkOverlap int) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file failed: %w", err)
	}

	chunks := chunkText(string(raw), chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	source := filepath.Base(path)
	inserted := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		embedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		vectors, err := embedder.EmbedBatch(embedCtx, batch)
		cancel()
		if err != nil {
			return inserted, fmt.Errorf("embed batch failed: %w", err)
		}
		if len(vectors) != len(batch) {
			return inserted, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vectors), len(batch))
		}

		ids := make([]string, len(batch))
		sources := make([]string, len(batch))
		for i := range batch {
			ids[i] = fmt.Sprintf("%s#%d", source, start+i)
			sources[i] = source
		}
		if err := store.Insert(ctx, ids, batch, sources, vectors); err != nil {
			return inserted, fmt.Errorf("insert chunks failed: %w", err)
		}
		inserted += len(batch)
	}
	return inserted, nil
}

// chunkText splits text into rune-based windows so multi-byte characters
// are never split mid-sequence.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 512
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
