package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/index"
	"docqa/internal/retrieval"
)

type fakeVectorStore struct {
	schemaErr error
}

func (f *fakeVectorStore) EnsureSchema(ctx context.Context) error { return f.schemaErr }

func (f *fakeVectorStore) UpsertPassages(ctx context.Context, passages []index.Passage) error {
	return nil
}

func (f *fakeVectorStore) QueryNearest(ctx context.Context, vector []float32, k int) ([]retrieval.Passage, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeletePassagesByDocument(ctx context.Context, documentName string) error {
	return nil
}

func (f *fakeVectorStore) CountPassages(ctx context.Context) (int, error) { return 0, nil }

type fakePublisher struct{}

func (f *fakePublisher) Publish(topic string, body []byte) error { return nil }

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{
		SearchTopK:     5,
		ContextTurns:   3,
		SegmentLength:  1000,
		SegmentOverlap: 200,
		ServerPort:     8081,
		QueryLogPath:   filepath.Join(t.TempDir(), "query.log"),
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	a, err := New(cfg, db, &fakeVectorStore{}, &fakePublisher{}, logger)
	require.NoError(t, err)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.DocumentService)
	assert.NotNil(t, a.IngestConsumer)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestNew_RoutesRegistered(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{
		SearchTopK:     5,
		ContextTurns:   3,
		SegmentLength:  1000,
		SegmentOverlap: 200,
		QueryLogPath:   filepath.Join(t.TempDir(), "query.log"),
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	a, err := New(cfg, db, &fakeVectorStore{}, &fakePublisher{}, logger)
	require.NoError(t, err)

	// Reaches the feature handler, which rejects the empty body itself.
	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
