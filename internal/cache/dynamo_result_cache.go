package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
)

// ResultRecord is one cached nearest-station answer as stored in DynamoDB.
// TTL is epoch seconds and doubles as the table's expiry attribute.
type ResultRecord struct {
	CacheKey    string                 `dynamodbav:"cacheKey"`
	Result      models.StationResponse `dynamodbav:"result"`
	LastUpdated int64                  `dynamodbav:"lastUpdated"`
	TTL         int64                  `dynamodbav:"ttl"`
}

// DynamoResultCache stores results in a DynamoDB table keyed by cacheKey
type DynamoResultCache struct {
	client    DynamoDBClient
	tableName string
	ttl       time.Duration
	clock     clock
}

func NewDynamoResultCache(client DynamoDBClient, tableName string, ttl time.Duration) *DynamoResultCache {
	return &DynamoResultCache{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		clock:     realClock{},
	}
}

// Get returns the stored result, or nil when absent or expired. DynamoDB removes
// expired items lazily, so the ttl attribute is checked here as well.
func (c *DynamoResultCache) Get(ctx context.Context, key string) (*models.StationResponse, error) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"cacheKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting result from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var record ResultRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling result record: %w", err)
	}

	if c.clock.Now().Unix() >= record.TTL {
		log.Debug().Str("key", key).Msg("Cached result expired")
		return nil, nil
	}
	return &record.Result, nil
}

// Put upserts the result under key
func (c *DynamoResultCache) Put(ctx context.Context, key string, result *models.StationResponse) error {
	now := c.clock.Now()
	record := ResultRecord{
		CacheKey:    key,
		Result:      *result,
		LastUpdated: now.Unix(),
		TTL:         now.Add(c.ttl).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling result record: %w", err)
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("putting result in DynamoDB: %w", err)
	}

	log.Debug().Str("key", key).Str("station", result.StationName).Msg("Saved result to cache")
	return nil
}

// Ping checks that DynamoDB answers and that the table exists
func (c *DynamoResultCache) Ping(ctx context.Context) error {
	var start *string
	for {
		out, err := c.client.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: start})
		if err != nil {
			return NewStoreUnavailableError("ping", err)
		}
		for _, name := range out.TableNames {
			if name == c.tableName {
				return nil
			}
		}
		if out.LastEvaluatedTableName == nil {
			break
		}
		start = out.LastEvaluatedTableName
	}
	return NewStoreUnavailableError("ping", fmt.Errorf("table %s not found", c.tableName))
}
