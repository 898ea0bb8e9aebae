package rag

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// Field names for the legal corpus collection.
const (
	FieldID     = "id"
	FieldText   = "text"
	FieldSource = "source"
	FieldVector = "vector"
)

// Passage is one retrieved corpus fragment. Distance is the L2 distance to
// the query vector; smaller is closer.
type Passage struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float32 `json:"distance"`
}

// Store wraps the Milvus collection holding the embedded legal corpus.
type Store struct {
	client     *milvusclient.Client
	collection string
	dimension  int
}

func NewStore(client *milvusclient.Client, collection string, dimension int) *Store {
	return &Store{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}
}

// EnsureCollection creates the collection and its index if absent and loads
// it into memory. Additive only; an existing collection is left untouched.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("check collection failed: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Embedded legal documents for retrieval",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": "255",
					},
				},
				{
					Name:     FieldText,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "65535",
					},
				},
				{
					Name:     FieldSource,
					DataType: entity.FieldTypeVarChar,
					TypeParams: map[string]string{
						"max_length": "255",
					},
				},
				{
					Name:     FieldVector,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.dimension),
					},
				},
			},
		}

		createOpt := milvusclient.NewCreateCollectionOption(s.collection, schema)
		if err := s.client.CreateCollection(ctx, createOpt); err != nil {
			return fmt.Errorf("create collection failed: %w", err)
		}

		idx := index.NewHNSWIndex(entity.L2, 16, 200)
		indexOpt := milvusclient.NewCreateIndexOption(s.collection, FieldVector, idx)
		if _, err := s.client.CreateIndex(ctx, indexOpt); err != nil {
			return fmt.Errorf("create vector index failed: %w", err)
		}
	}

	loadOpt := milvusclient.NewLoadCollectionOption(s.collection)
	if _, err := s.client.LoadCollection(ctx, loadOpt); err != nil {
		return fmt.Errorf("load collection failed: %w", err)
	}
	return nil
}

// Insert writes passages and their vectors. Used by the ingest tool only;
// the query path never inserts.
func (s *Store) Insert(ctx context.Context, ids, texts, sources []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(texts) != len(ids) || len(sources) != len(ids) || len(vectors) != len(ids) {
		return fmt.Errorf("insert column length mismatch")
	}

	insertOpt := milvusclient.NewColumnBasedInsertOption(
		s.collection,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldSource, sources),
		column.NewColumnFloatVector(FieldVector, s.dimension, vectors),
	)
	if _, err := s.client.Insert(ctx, insertOpt); err != nil {
		return fmt.Errorf("insert passages failed: %w", err)
	}
	return nil
}

// Flush makes inserted passages searchable. Called once after bulk ingest.
func (s *Store) Flush(ctx context.Context) error {
	flushOpt := milvusclient.NewFlushOption(s.collection)
	if _, err := s.client.Flush(ctx, flushOpt); err != nil {
		return fmt.Errorf("flush collection failed: %w", err)
	}
	return nil
}

// Search returns the k nearest passages, closest first.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]Passage, error) {
	if k <= 0 {
		k = 20
	}

	searchOpt := milvusclient.NewSearchOption(
		s.collection,
		k,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldVector).WithOutputFields(FieldText, FieldSource)

	resultSets, err := s.client.Search(ctx, searchOpt)
	if err != nil {
		return nil, fmt.Errorf("search collection failed: %w", err)
	}
	if len(resultSets) == 0 {
		return nil, nil
	}

	rs := resultSets[0]
	textCol := rs.GetColumn(FieldText)
	sourceCol := rs.GetColumn(FieldSource)
	if textCol == nil {
		return nil, fmt.Errorf("search result missing text column")
	}

	passages := make([]Passage, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		text, err := textCol.GetAsString(i)
		if err != nil {
			continue
		}
		source := ""
		if sourceCol != nil {
			source, _ = sourceCol.GetAsString(i)
		}
		distance := float32(0)
		if i < len(rs.Scores) {
			distance = rs.Scores[i]
		}
		passages = append(passages, Passage{
			Text:     text,
			Source:   source,
			Distance: distance,
		})
	}
	return passages, nil
}
