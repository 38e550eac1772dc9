package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"docqa/internal/index"
	"docqa/internal/retrieval"
	"docqa/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}

// UpsertPassages writes passages in one batch. Passage IDs are derived from
// (documentName, ordinalIndex), so re-indexing a document overwrites its
// previous passages instead of duplicating them.
func (s *Store) UpsertPassages(ctx context.Context, passages []index.Passage) error {
	objects := make([]*models.Object, 0, len(passages))
	for _, p := range passages {
		objects = append(objects, &models.Object{
			ID:    strfmt.UUID(p.ID.String()),
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"content":       p.Content,
				"documentName":  p.DocumentName,
				"ordinalIndex":  p.OrdinalIndex,
				"estimatedPage": p.EstimatedPage,
				"byteSize":      p.ByteSize,
			},
			Vector: models.C11yVector(p.Vector),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return err
	}

	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert error: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) QueryNearest(ctx context.Context, queryVector []float32, k int) ([]retrieval.Passage, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "documentName"},
		{Name: "ordinalIndex"},
		{Name: "estimatedPage"},
		{Name: "byteSize"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var passages []retrieval.Passage
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return passages, nil
	}
	raw, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return passages, nil
	}

	for _, item := range raw {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		p := retrieval.Passage{}
		if content, ok := props["content"].(string); ok {
			p.Content = content
		}
		if name, ok := props["documentName"].(string); ok {
			p.DocumentName = name
		}
		if ordinal, ok := props["ordinalIndex"].(float64); ok {
			p.OrdinalIndex = int(ordinal)
		}
		if page, ok := props["estimatedPage"].(float64); ok {
			p.EstimatedPage = int(page)
		}
		if size, ok := props["byteSize"].(float64); ok {
			p.ByteSize = int(size)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				p.Score = float32(certainty)
			}
		}

		passages = append(passages, p)
	}

	return passages, nil
}

func (s *Store) DeletePassagesByDocument(ctx context.Context, documentName string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentName"}).
			WithOperator(filters.Equal).
			WithValueString(documentName)).
		Do(ctx)
	return err
}

func (s *Store) CountPassages(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	data, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := data[vector.ClassName].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
