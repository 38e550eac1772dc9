package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "docqa/internal/adapter/weaviate"
	"docqa/internal/index"
	"docqa/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestStore_UpsertPassages(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects := body["objects"].([]interface{})
		assert.Len(t, objects, 1)
		obj := objects[0].(map[string]interface{})
		assert.Equal(t, vector.ClassName, obj["class"])
		props := obj["properties"].(map[string]interface{})
		assert.Equal(t, "passage content", props["content"])
		assert.Equal(t, "policy.pdf", props["documentName"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": obj["id"], "result": map[string]interface{}{}},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	passage := index.Passage{
		ID:            index.PassageID("policy.pdf", 0),
		Content:       "passage content",
		Vector:        []float32{0.1, 0.2},
		DocumentName:  "policy.pdf",
		OrdinalIndex:  0,
		EstimatedPage: 1,
		ByteSize:      10240,
	}
	err := store.UpsertPassages(context.Background(), []index.Passage{passage})
	assert.NoError(t, err)
}

func TestStore_QueryNearest(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					vector.ClassName: []interface{}{
						map[string]interface{}{
							"content":       "first passage",
							"documentName":  "policy.pdf",
							"ordinalIndex":  float64(0),
							"estimatedPage": float64(2),
							"byteSize":      float64(10240),
							"_additional":   map[string]interface{}{"certainty": 0.91},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	passages, err := store.QueryNearest(context.Background(), []float32{0.1, 0.2}, 5)
	assert.NoError(t, err)
	if assert.Len(t, passages, 1) {
		assert.Equal(t, "first passage", passages[0].Content)
		assert.Equal(t, "policy.pdf", passages[0].DocumentName)
		assert.Equal(t, 2, passages[0].EstimatedPage)
		assert.InDelta(t, 0.91, passages[0].Score, 0.001)
	}
}

func TestStore_QueryNearest_Empty(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{vector.ClassName: []interface{}{}},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	passages, err := store.QueryNearest(context.Background(), []float32{0.1}, 5)
	assert.NoError(t, err)
	assert.Empty(t, passages)
}

func TestStore_DeletePassagesByDocument(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeletePassagesByDocument(context.Background(), "policy.pdf")
	assert.NoError(t, err)
}

func TestStore_CountPassages(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					vector.ClassName: []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": float64(42)},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountPassages(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, count)
}
