// Package pinecone stores indexes in Pinecone serverless indexes through the
// official Go SDK. The control plane resolves and creates indexes; each index
// then gets its own data-plane connection, opened once and reused.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const upsertBatch = 100

// controlPlane is the index management part of *pinecone.Client.
type controlPlane interface {
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

// dataPlane is the vector part of *pinecone.IndexConnection.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

type Config struct {
	// ControlURL overrides the SDK's default control-plane host.
	ControlURL   string
	APIKey       string
	Timeout      time.Duration
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

type Storage struct {
	control      controlPlane
	connect      func(host string) (dataPlane, error)
	readyTimeout time.Duration
	poll         time.Duration

	mu    sync.Mutex
	conns map[string]dataPlane
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControlURL,
		RestClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	connect := func(host string) (dataPlane, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{Host: host})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return newStorage(client, connect, cfg), nil
}

func newStorage(control controlPlane, connect func(string) (dataPlane, error), cfg Config) *Storage {
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Storage{
		control:      control,
		connect:      connect,
		readyTimeout: cfg.ReadyTimeout,
		poll:         cfg.PollInterval,
		conns:        make(map[string]dataPlane),
	}
}

// Close releases every data-plane connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, c := range s.conns {
		errs = append(errs, c.Close())
		delete(s.conns, name)
	}
	return errors.Join(errs...)
}

func (s *Storage) EnsureIndex(ctx context.Context, spec vectorstore.IndexSpec) (bool, error) {
	if spec.Dimension <= 0 {
		return false, errors.New("invalid dimension")
	}
	idx, err := s.control.DescribeIndex(ctx, spec.Name)
	if err == nil {
		if idx.Dimension != nil && int(*idx.Dimension) != spec.Dimension {
			return false, fmt.Errorf("%w: index %s has %d, want %d", domain.ErrDimensionMismatch, spec.Name, *idx.Dimension, spec.Dimension)
		}
		if isReady(idx) {
			return false, nil
		}
		return false, s.awaitReady(ctx, spec.Name)
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("pinecone describe %s: %w", spec.Name, err)
	}

	dim := int32(spec.Dimension)
	metric := metricOf(spec.Metric)
	_, err = s.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      spec.Name,
		Dimension: &dim,
		Metric:    &metric,
		Cloud:     pinecone.Cloud(spec.Cloud),
		Region:    spec.Region,
	})
	if err != nil {
		return false, fmt.Errorf("pinecone create index %s: %w", spec.Name, err)
	}
	if err := s.awaitReady(ctx, spec.Name); err != nil {
		return true, err
	}
	return true, nil
}

// awaitReady polls until a freshly created index accepts writes; the SDK
// returns as soon as creation is accepted.
func (s *Storage) awaitReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()
	for {
		idx, err := s.control.DescribeIndex(ctx, name)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("pinecone describe %s: %w", name, err)
		}
		if err == nil && isReady(idx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("pinecone index %s not ready: %w", name, ctx.Err())
		case <-time.After(s.poll):
		}
	}
}

// conn returns the cached data-plane connection for index, opening it from
// the host DescribeIndex reports.
func (s *Storage) conn(ctx context.Context, index string) (dataPlane, error) {
	s.mu.Lock()
	c, ok := s.conns[index]
	s.mu.Unlock()
	if ok {
		return c, nil
	}
	idx, err := s.control.DescribeIndex(ctx, index)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
	}
	if err != nil {
		return nil, fmt.Errorf("pinecone describe %s: %w", index, err)
	}
	c, err = s.connect(idx.Host)
	if err != nil {
		return nil, fmt.Errorf("pinecone connect %s: %w", index, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conns[index]; ok {
		_ = c.Close()
		return existing, nil
	}
	s.conns[index] = c
	return c, nil
}

func (s *Storage) Upsert(ctx context.Context, index string, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	c, err := s.conn(ctx, index)
	if err != nil {
		return err
	}
	for start := 0; start < len(docs); start += upsertBatch {
		end := min(start+upsertBatch, len(docs))
		batch := make([]*pinecone.Vector, 0, end-start)
		for i := start; i < end; i++ {
			md, err := structpb.NewStruct(metadata(docs[i]))
			if err != nil {
				return fmt.Errorf("pinecone metadata for %s: %w", docs[i].ID, err)
			}
			values := toFloat32(vectors[i])
			batch = append(batch, &pinecone.Vector{Id: docs[i].ID, Values: &values, Metadata: md})
		}
		if _, err := c.UpsertVectors(ctx, batch); err != nil {
			return fmt.Errorf("pinecone upsert %s: %w", index, err)
		}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, index string, vec []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	c, err := s.conn(ctx, index)
	if err != nil {
		return nil, err
	}
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          toFloat32(vec),
		TopK:            uint32(topK),
		IncludeMetadata: true,
	}
	if f := buildFilter(filter); f != nil {
		mf, err := structpb.NewStruct(f)
		if err != nil {
			return nil, fmt.Errorf("pinecone filter: %w", err)
		}
		req.MetadataFilter = mf
	}
	resp, err := c.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query %s: %w", index, err)
	}
	out := make([]domain.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		field := func(key string) string {
			if m.Vector.Metadata == nil {
				return ""
			}
			return m.Vector.Metadata.GetFields()[key].GetStringValue()
		}
		out = append(out, domain.SearchResult{
			Document: domain.Document{
				ID:      m.Vector.Id,
				Content: field("text"),
				Metadata: domain.Metadata{
					Commodity: field("commodity"),
					Month:     field("month"),
					Topic:     field("topic"),
				},
			},
			Score: float64(m.Score),
		})
	}
	return out, nil
}

// metadata stores the document text under "text", alongside the filter keys.
func metadata(d domain.Document) map[string]any {
	md := map[string]any{"text": d.Content}
	for _, t := range (domain.Filter{Commodity: d.Metadata.Commodity, Month: d.Metadata.Month, Topic: d.Metadata.Topic}).Terms() {
		md[t.Key] = t.Value
	}
	return md
}

func buildFilter(f domain.Filter) map[string]any {
	terms := f.Terms()
	if len(terms) == 0 {
		return nil
	}
	out := make(map[string]any, len(terms))
	for _, t := range terms {
		out[t.Key] = map[string]any{"$eq": t.Value}
	}
	return out
}

func metricOf(metric string) pinecone.IndexMetric {
	switch strings.ToLower(metric) {
	case "dot", "dotproduct", "dot_product":
		return pinecone.Dotproduct
	case "euclid", "euclidean", "l2":
		return pinecone.Euclidean
	default:
		return pinecone.Cosine
	}
}

func isReady(idx *pinecone.Index) bool {
	return idx != nil && idx.Status != nil && idx.Status.Ready
}

func isNotFound(err error) bool {
	var perr *pinecone.PineconeError
	return errors.As(err, &perr) && perr.Code == http.StatusNotFound
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
