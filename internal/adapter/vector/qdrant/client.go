// Package qdrant implements the vector retrieval service on the Qdrant HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// DistanceCosine is the only metric the ranking pipeline uses.
const DistanceCosine = "Cosine"

// payloadKey holds the candidate id on every point.
const payloadKey = "candidate_id"

// Client is a minimal Qdrant HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Qdrant client with baseURL and optional apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Point is one vector with its payload.
type Point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Ping checks the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/collections", nil, nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.Ping: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("op=qdrant.Ping: status %d", status)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	status, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.EnsureCollection: %w", err)
	}
	if status == http.StatusOK {
		return nil
	}
	payload := map[string]any{"vectors": map[string]any{"size": vectorSize, "distance": distance}}
	status, err = c.do(ctx, http.MethodPut, "/collections/"+name, payload, nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.EnsureCollection: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("op=qdrant.EnsureCollection: create status %d", status)
	}
	return nil
}

// UpsertPoints writes points and waits for them to be indexed.
func (c *Client) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	status, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", map[string]any{"points": points}, nil)
	if err != nil {
		return fmt.Errorf("op=qdrant.UpsertPoints: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("op=qdrant.UpsertPoints: status %d", status)
	}
	return nil
}

// Search returns the topK nearest points with payloads.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]ScoredPoint, error) {
	body := map[string]any{"vector": vector, "limit": topK, "with_payload": true}
	var out struct {
		Result []ScoredPoint `json:"result"`
	}
	status, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &out)
	if err != nil {
		return nil, fmt.Errorf("op=qdrant.Search: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("op=qdrant.Search: status %d", status)
	}
	return out.Result, nil
}

// Index is a domain.VectorIndex over one collection keyed by candidate id.
type Index struct {
	client     *Client
	collection string
	dim        int
}

// NewIndex binds client to collection with vectors of dim dimensions.
func NewIndex(client *Client, collection string, dim int) *Index {
	return &Index{client: client, collection: collection, dim: dim}
}

// Client returns the underlying HTTP client.
func (x *Index) Client() *Client { return x.client }

// EnsureCollection creates the cosine collection when absent.
func (x *Index) EnsureCollection(ctx context.Context) error {
	return x.client.EnsureCollection(ctx, x.collection, x.dim, DistanceCosine)
}

// PointID maps a candidate id onto a Qdrant point id: unsigned integers are
// used as-is, anything else becomes a name-based UUID.
func PointID(candidateID string) any {
	if n, err := strconv.ParseUint(candidateID, 10, 64); err == nil {
		return n
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(candidateID)).String()
}

// Upsert stores one vector per candidate id.
func (x *Index) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("op=qdrant.Upsert: %w: %d ids for %d vectors", domain.ErrInvalidArgument, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("qdrant").Start(ctx, "Index.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", x.collection), attribute.Int("points", len(ids)))

	points := make([]Point, 0, len(ids))
	for i, id := range ids {
		if x.dim > 0 && len(vectors[i]) != x.dim {
			return fmt.Errorf("op=qdrant.Upsert: %w: vector for %s has %d dims, want %d", domain.ErrInvalidArgument, id, len(vectors[i]), x.dim)
		}
		points = append(points, Point{ID: PointID(id), Vector: vectors[i], Payload: map[string]any{payloadKey: id}})
	}
	return x.client.UpsertPoints(ctx, x.collection, points)
}

// Query returns up to topK matches by descending cosine similarity.
func (x *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.VectorMatch, error) {
	ctx, span := otel.Tracer("qdrant").Start(ctx, "Index.Query")
	defer span.End()
	span.SetAttributes(attribute.String("collection", x.collection), attribute.Int("top_k", topK))

	res, err := x.client.Search(ctx, x.collection, vector, topK)
	if err != nil {
		return nil, err
	}
	out := make([]domain.VectorMatch, 0, len(res))
	for _, p := range res {
		id, ok := p.Payload[payloadKey].(string)
		if !ok || id == "" {
			id = strings.Trim(string(p.ID), `"`)
		}
		out = append(out, domain.VectorMatch{ID: id, Score: p.Score})
	}
	return out, nil
}
