// Package qdrant provides an approximate vector.Index backend using Qdrant.
//
// Vectors are scored by inner product; the store hands this index normalized
// vectors so scores are equivalent to cosine similarity.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for stored embeddings.
	DefaultCollectionName = "gravity"

	// payloadIDKey is the payload field carrying the original message id.
	// Qdrant point ids must be UUIDs or integers, so the message id rides
	// in the payload and the point id is a UUID derived from it.
	payloadIDKey = "message_id"
)

// Index implements vector.Index against a Qdrant server.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Host is the Qdrant gRPC host. Defaults to "localhost".
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// Collection is the collection name. Defaults to DefaultCollectionName.
	Collection string

	// Dimensions is the embedding dimensionality. Required.
	Dimensions uint64
}

// NewIndex connects to Qdrant and ensures the collection exists.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be configured", vector.ErrConnection)
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	idx := &Index{
		client:     client,
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, err
	}

	logger.Info("connected to Qdrant",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("collection", collection),
	)

	return idx, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     i.dimensions,
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
	}
	return nil
}

// Add inserts or replaces a single vector.
func (i *Index) Add(ctx context.Context, id string, embedding []float32) error {
	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         []*qdrant.PointStruct{pointFor(id, embedding)},
	})
	if err != nil {
		return fmt.Errorf("%w: upserting point: %v", vector.ErrConnection, err)
	}
	return nil
}

// Search returns up to k hits, best first.
func (i *Index) Search(ctx context.Context, embedding []float32, k int) ([]vector.IndexHit, error) {
	limit := uint64(k)
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying: %v", vector.ErrConnection, err)
	}

	hits := make([]vector.IndexHit, 0, len(points))
	for _, p := range points {
		id := p.Payload[payloadIDKey].GetStringValue()
		if id == "" {
			continue
		}
		hits = append(hits, vector.IndexHit{ID: id, Score: p.Score})
	}
	return hits, nil
}

// Rebuild drops the collection and re-upserts every vector. Qdrant supports
// point deletion, but rebuilds keep this backend interchangeable with
// simpler indexes that do not.
func (i *Index) Rebuild(ctx context.Context, embeddings map[string][]float32) error {
	if err := i.client.DeleteCollection(ctx, i.collection); err != nil {
		return fmt.Errorf("%w: dropping collection: %v", vector.ErrConnection, err)
	}
	if err := i.ensureCollection(ctx); err != nil {
		return err
	}

	if len(embeddings) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(embeddings))
	for id, emb := range embeddings {
		points = append(points, pointFor(id, emb))
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
	}
	return nil
}

// Close closes the client connection.
func (i *Index) Close() error {
	return i.client.Close()
}

func pointFor(id string, embedding []float32) *qdrant.PointStruct {
	pointID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{payloadIDKey: id}),
	}
}

// Ensure Index implements vector.Index
var _ vector.Index = (*Index)(nil)
