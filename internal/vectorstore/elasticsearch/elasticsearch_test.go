package elasticsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

type fakeES struct {
	mu       sync.Mutex
	exists   bool
	created  map[string]any
	indexed  map[string]map[string]any
	searched map[string]any
	refreshs int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/news":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/news":
		f.exists = true
		f.created = body
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasPrefix(r.URL.Path, "/news/_doc/"):
		f.indexed[strings.TrimPrefix(r.URL.Path, "/news/_doc/")] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case r.URL.Path == "/news/_refresh":
		f.refreshs++
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/news/_search":
		f.searched = body
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"n1","_score":0.7,"_source":{"content":"March 2025\nTariffs","month":"2025-03","topic":"World News"}}]}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such index"}`))
	}
}

func newStorage(t *testing.T, fake *fakeES) *Storage {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := New(Config{Addresses: []string{srv.URL}}, nil)
	require.NoError(t, err)
	return s
}

func TestEnsureIndexCreatesDenseVectorMapping(t *testing.T) {
	fake := &fakeES{indexed: map[string]map[string]any{}}
	s := newStorage(t, fake)
	spec := vectorstore.IndexSpec{Name: "news", Dimension: 384, Metric: "cosine"}

	created, err := s.EnsureIndex(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, created)

	props := fake.created["mappings"].(map[string]any)["properties"].(map[string]any)
	vec := props["embedding"].(map[string]any)
	require.Equal(t, "dense_vector", vec["type"])
	require.Equal(t, float64(384), vec["dims"])
	require.Equal(t, "cosine", vec["similarity"])
	require.Equal(t, map[string]any{"type": "keyword"}, props["month"])

	created, err = s.EnsureIndex(context.Background(), spec)
	require.NoError(t, err)
	require.False(t, created)
}

func TestUpsertIndexesAndRefreshes(t *testing.T) {
	fake := &fakeES{exists: true, indexed: map[string]map[string]any{}}
	s := newStorage(t, fake)
	doc := domain.NewDocument("March 2025\nTariffs", domain.Metadata{Month: "2025-03", Topic: domain.TopicWorldNews})

	require.NoError(t, s.Upsert(context.Background(), "news", []domain.Document{doc}, [][]float64{{0.5, 0.5}}))
	require.Contains(t, fake.indexed, doc.ID)
	require.Equal(t, "2025-03", fake.indexed[doc.ID]["month"])
	require.Equal(t, []any{0.5, 0.5}, fake.indexed[doc.ID]["embedding"])
	require.Equal(t, 1, fake.refreshs)
}

func TestSearchUsesKnnWithTermFilters(t *testing.T) {
	fake := &fakeES{exists: true, indexed: map[string]map[string]any{}}
	s := newStorage(t, fake)

	res, err := s.Search(context.Background(), "news", []float64{1, 0}, 1, domain.Filter{Month: "2025-03", Topic: domain.TopicWorldNews})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "n1", res[0].Document.ID)
	require.Equal(t, domain.TopicWorldNews, res[0].Document.Metadata.Topic)

	knn := fake.searched["knn"].(map[string]any)
	require.Equal(t, "embedding", knn["field"])
	require.Equal(t, float64(1), knn["k"])
	require.Equal(t, float64(100), knn["num_candidates"])
	require.Equal(t, []any{
		map[string]any{"term": map[string]any{"month": "2025-03"}},
		map[string]any{"term": map[string]any{"topic": "World News"}},
	}, knn["filter"])
}

func TestSearchMissingIndex(t *testing.T) {
	fake := &fakeES{indexed: map[string]map[string]any{}}
	s := newStorage(t, fake)
	_, err := s.Search(context.Background(), "strategies", []float64{1}, 1, domain.Filter{Commodity: "Gold"})
	require.ErrorIs(t, err, domain.ErrIndexNotFound)
}
