package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/septafinder/backend-go/internal/models"
)

// fakeClock implements a mock time source for testing
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.UTC()
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Verify mockDynamoDBClient implements DynamoDBClient interface
var _ DynamoDBClient = (*mockDynamoDBClient)(nil)

type mockDynamoDBClient struct {
	getItemFunc    func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFunc    func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	listTablesFunc func(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if m.listTablesFunc != nil {
		return m.listTablesFunc(ctx, params, optFns...)
	}
	return &dynamodb.ListTablesOutput{}, nil
}

// newMemoryDynamo returns a mock client backed by a map keyed on cacheKey
func newMemoryDynamo() (*mockDynamoDBClient, func() int) {
	var mu sync.RWMutex
	store := make(map[string]map[string]types.AttributeValue)

	client := &mockDynamoDBClient{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			mu.RLock()
			defer mu.RUnlock()
			key := params.Key["cacheKey"].(*types.AttributeValueMemberS).Value
			return &dynamodb.GetItemOutput{Item: store[key]}, nil
		},
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			mu.Lock()
			defer mu.Unlock()
			key := params.Item["cacheKey"].(*types.AttributeValueMemberS).Value
			store[key] = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	size := func() int {
		mu.RLock()
		defer mu.RUnlock()
		return len(store)
	}
	return client, size
}

func testResult() *models.StationResponse {
	return &models.StationResponse{
		StationName: "Suburban Station",
		DistanceKm:  0.26,
		GeoJSON: models.Feature{
			Type: models.FeatureType,
			Geometry: models.Geometry{
				Type:        models.PointType,
				Coordinates: []float64{-75.1677, 39.954},
			},
			Properties: map[string]interface{}{
				"Name": "Suburban Station",
				"Line": "All Lines",
			},
		},
		WalkingDirections: &models.WalkingDirections{
			Distance: 0.41,
			Duration: 5,
			Steps: []models.DirectionStep{
				{Instruction: "John F. Kennedy Boulevard", DistanceMeters: 180.2},
				{Instruction: "continue", DistanceMeters: 95.4},
			},
		},
	}
}
