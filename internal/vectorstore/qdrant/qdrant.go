package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"eventbot/internal/domain"
)

// metaPointID is the fixed id of the point carrying the index metadata in
// the companion metadata collection.
var metaPointID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("eventbot:index-meta")).String()

const upsertBatch = 256

// errNotFound marks a 404 from Qdrant.
var errNotFound = errors.New("not found")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and recreates the collection on every rebuild.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	log        *slog.Logger
	meta       domain.IndexMeta
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config, log *slog.Logger) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Open connects to an existing collection and reads its metadata. A missing
// collection is a configuration error.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Storage, error) {
	s := NewStorage(cfg, log)
	ok, err := s.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking qdrant collection: %w", err)
	}
	if !ok {
		return nil, domain.Configf("qdrant collection %q not found; run the ingestion first", s.collection)
	}
	var resp struct {
		Result struct {
			Payload struct {
				Meta string `json:"meta"`
			} `json:"payload"`
		} `json:"result"`
	}
	err = s.do(ctx, http.MethodGet, s.metaCollection()+"/points/"+metaPointID, nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, domain.Configf("qdrant collection %q has no metadata; rebuild the index", s.collection)
	}
	if err != nil {
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(resp.Result.Payload.Meta), &s.meta); err != nil {
		return nil, domain.Configf("qdrant index metadata corrupt: %v", err)
	}
	s.log.Info("index opened", "collection", s.collection, "records", s.meta.Records, "model", s.meta.EmbeddingModel)
	return s, nil
}

// Exists reports whether the collection is present.
func (s *Storage) Exists(ctx context.Context) (bool, error) {
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	return err == nil, err
}

// BulkLoad drops and recreates the collection, then upserts every record.
// It is not atomic: a failed upsert leaves a partial collection behind.
func (s *Storage) BulkLoad(ctx context.Context, records []domain.IndexRecord, meta domain.IndexMeta) error {
	if len(records) == 0 {
		return errors.New("refusing to write an empty index")
	}
	dim := len(records[0].Vector)
	meta.Dimension = dim
	meta.Records = len(records)

	for _, coll := range []struct {
		url string
		dim int
	}{{s.collectionURL(), dim}, {s.metaCollection(), 1}} {
		if err := s.do(ctx, http.MethodDelete, coll.url, nil, nil); err != nil && !errors.Is(err, errNotFound) {
			return fmt.Errorf("dropping collection: %w", err)
		}
		body := map[string]any{"vectors": map[string]any{"size": coll.dim, "distance": "Cosine"}}
		if err := s.do(ctx, http.MethodPut, coll.url, body, nil); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}

	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))
		points := make([]map[string]any, 0, end-start)
		for _, r := range records[start:end] {
			if len(r.Vector) != dim {
				return errors.New("vector dimension mismatch")
			}
			points = append(points, map[string]any{
				"id":     pointID(r.Chunk),
				"vector": r.Vector,
				"payload": map[string]any{
					"source": r.Chunk.Source,
					"seq":    r.Chunk.Seq,
					"part":   r.Chunk.Part,
					"text":   r.Chunk.Text,
				},
			})
		}
		if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("upserting points: %w", err)
		}
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	metaPoint := map[string]any{"id": metaPointID, "vector": []float32{1}, "payload": map[string]any{"meta": string(rawMeta)}}
	if err := s.do(ctx, http.MethodPut, s.metaCollection()+"/points?wait=true", map[string]any{"points": []any{metaPoint}}, nil); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	s.meta = meta
	s.log.Info("index written", "collection", s.collection, "records", meta.Records, "dimension", dim)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Source string `json:"source"`
				Seq    int    `json:"seq"`
				Part   int    `json:"part"`
				Text   string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, domain.Configf("qdrant collection %q not found", s.collection)
		}
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{Source: p.Source, Seq: p.Seq, Part: p.Part, Text: p.Text},
			Score: r.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})
	return results, nil
}

func (s *Storage) Meta() domain.IndexMeta { return s.meta }

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) metaCollection() string {
	return fmt.Sprintf("%s/collections/%s_meta", s.url, s.collection)
}

// pointID derives a stable UUID from the chunk position, as Qdrant only
// accepts unsigned integers or UUIDs.
func pointID(c domain.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.Source+"#"+strconv.Itoa(c.Seq))).String()
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errNotFound)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
