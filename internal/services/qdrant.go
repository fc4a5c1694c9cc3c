package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

type VectorSearchService interface {
	InitCollection() error
	UpsertRegulation(ctx context.Context, docID string, article string, text string, embedding []float32) error
	SearchSimilar(ctx context.Context, queryEmbedding []float32, minScore float32, limit int) ([]RegulationDoc, error)
	SearchText(ctx context.Context, term string, limit int) ([]RegulationDoc, error)
}

// RegulationDoc is one retrieved legal-corpus entry.
type RegulationDoc struct {
	ID      string
	Article string
	Text    string
	Score   float32
}

type qdrantService struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

func NewQdrantService(urlStr, apiKey, collectionName string) (VectorSearchService, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantService{
		client:         client,
		collectionName: collectionName,
		vectorSize:     768, // text-embedding-004 size
	}, nil
}

// InitCollection implements VectorSearchService.
func (q *qdrantService) InitCollection() error {
	ctx := context.Background()

	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Println("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})

	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// UpsertRegulation implements VectorSearchService.
func (q *qdrantService) UpsertRegulation(ctx context.Context, docID string, article string, text string, embedding []float32) error {
	pointID := uuid.New()

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(pointID.ID())),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"doc_id":  docID,
			"article": article,
			"text":    text,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// SearchSimilar implements VectorSearchService. Results below minScore are
// discarded by the backend.
func (q *qdrantService) SearchSimilar(ctx context.Context, queryEmbedding []float32, minScore float32, limit int) ([]RegulationDoc, error) {
	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(minScore),
		WithPayload:    qdrant.NewWithPayload(true),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var results []RegulationDoc
	for _, point := range searchResult {
		doc := docFromPayload(point.Payload)
		doc.Score = point.Score
		results = append(results, doc)
	}

	return results, nil
}

// SearchText implements VectorSearchService. Exact text match is the recall
// safety net for compliance-critical terms that vector search may rank too
// low.
func (q *qdrantService) SearchText(ctx context.Context, term string, limit int) ([]RegulationDoc, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchText("text", term),
		},
	}

	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collectionName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scroll: %w", err)
	}

	var results []RegulationDoc
	for _, point := range points {
		results = append(results, docFromPayload(point.Payload))
	}

	return results, nil
}

func docFromPayload(payload map[string]*qdrant.Value) RegulationDoc {
	var doc RegulationDoc

	if v, ok := payload["doc_id"]; ok {
		if val, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			doc.ID = val.StringValue
		}
	}
	if v, ok := payload["article"]; ok {
		if val, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			doc.Article = val.StringValue
		}
	}
	if v, ok := payload["text"]; ok {
		if val, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			doc.Text = val.StringValue
		}
	}

	return doc
}
