package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// DDBAPI is the subset of the DynamoDB client the lock table needs.
type DDBAPI interface {
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDB is a Locker backed by conditional writes on a table with a string
// partition key "PK" and a numeric "ttl" attribute.
type DynamoDB struct {
	client    DDBAPI
	tableName string
	nowFn     func() time.Time

	mu     sync.Mutex
	tokens map[string]string
}

var _ Locker = (*DynamoDB)(nil)

// NewDynamoDB loads AWS config and builds a DynamoDB Locker.
func NewDynamoDB(ctx context.Context, cfg *types.DynamoDBConfig) (*DynamoDB, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("dynamodb lock requires tableName")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	// DynamoDB Local accepts any static credentials.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return NewDynamoDBFromClient(dynamodb.NewFromConfig(awsCfg, clientOpts...), cfg.TableName), nil
}

// NewDynamoDBFromClient wraps an existing client. Useful for tests.
func NewDynamoDBFromClient(client DDBAPI, tableName string) *DynamoDB {
	return &DynamoDB{client: client, tableName: tableName, nowFn: time.Now, tokens: make(map[string]string)}
}

func lockPK(key string) string {
	return "LOCK#" + key
}

// lockItem is the row written for a held lock. TTL is epoch seconds so the
// table's TTL setting can reap abandoned locks.
type lockItem struct {
	PK    string `dynamodbav:"PK"`
	Owner string `dynamodbav:"owner"`
	TTL   int64  `dynamodbav:"ttl"`
}

func (d *DynamoDB) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := d.nowFn()
	token := ulid.Make().String()
	item, err := attributevalue.MarshalMap(lockItem{
		PK:    lockPK(key),
		Owner: token,
		TTL:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshaling lock item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #ttl < :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":now": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("dynamodb lock put: %w", err)
	}
	d.mu.Lock()
	d.tokens[key] = token
	d.mu.Unlock()
	return true, nil
}

func (d *DynamoDB) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	token, ok := d.tokens[key]
	delete(d.tokens, key)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: lockPK(key)},
		},
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":owner": &ddbtypes.AttributeValueMemberS{Value: token},
		},
	})
	if err != nil && !isConditionalCheckFailed(err) {
		return fmt.Errorf("dynamodb lock delete: %w", err)
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
