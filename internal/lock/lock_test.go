package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func TestMemory_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = m.Acquire(ctx, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, m.Release(ctx, "a"))
	ok, err = m.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_ExpiredLockIsReclaimed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return now }

	ok, _ := m.Acquire(ctx, "a", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, err := m.Acquire(ctx, "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, AcquireWait(ctx, m, "k", time.Minute, 5*time.Second)) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = m.Release(ctx, "k")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestAcquireWait_TimesOut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ok, _ := m.Acquire(ctx, "k", time.Minute)
	require.True(t, ok)

	err := AcquireWait(ctx, m, "k", time.Minute, 150*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestAcquireWait_ContextCancelled(t *testing.T) {
	m := NewMemory()
	ok, _ := m.Acquire(context.Background(), "k", time.Minute)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AcquireWait(ctx, m, "k", time.Minute, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("backend down")
}
func (failingLocker) Release(context.Context, string) error { return nil }

func TestAcquireWait_BackendError(t *testing.T) {
	err := AcquireWait(context.Background(), failingLocker{}, "k", time.Minute, time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Contains(t, err.Error(), "backend down")
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "ps-item:abc", ItemKey("abc"))
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	l, err := New(ctx, types.LockConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, l)

	_, err = New(ctx, types.LockConfig{Backend: "redis"})
	assert.Error(t, err)

	_, err = New(ctx, types.LockConfig{Backend: "dynamodb"})
	assert.Error(t, err)

	_, err = New(ctx, types.LockConfig{Backend: "zookeeper"})
	assert.Error(t, err)
}

// mockDDB is a minimal stand-in for the DynamoDB client.
type mockDDB struct {
	putItemFn    func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	deleteItemFn func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

func (m *mockDDB) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFn != nil {
		return m.putItemFn(ctx, input, opts...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDB) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, input, opts...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoDB_AcquireWritesConditionalItem(t *testing.T) {
	var got *dynamodb.PutItemInput
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			got = input
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	d := NewDynamoDBFromClient(mock, "locks")
	d.nowFn = func() time.Time { return time.Unix(1000, 0) }

	ok, err := d.Acquire(context.Background(), "ps-item:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotNil(t, got)
	assert.Equal(t, "locks", *got.TableName)
	assert.Equal(t, "attribute_not_exists(PK) OR #ttl < :now", *got.ConditionExpression)
	assert.Equal(t, "LOCK#ps-item:1", got.Item["PK"].(*ddbtypes.AttributeValueMemberS).Value)
	assert.Equal(t, "1060", got.Item["ttl"].(*ddbtypes.AttributeValueMemberN).Value)
	assert.Equal(t, "1000", got.ExpressionAttributeValues[":now"].(*ddbtypes.AttributeValueMemberN).Value)
}

func TestDynamoDB_AcquireHeld(t *testing.T) {
	mock := &mockDDB{
		putItemFn: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: strPtr("held")}
		},
	}
	d := NewDynamoDBFromClient(mock, "locks")

	ok, err := d.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoDB_AcquireError(t *testing.T) {
	mock := &mockDDB{
		putItemFn: func(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	d := NewDynamoDBFromClient(mock, "locks")

	ok, err := d.Acquire(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestDynamoDB_ReleaseDeletesOnlyOwnLock(t *testing.T) {
	var deletes []*dynamodb.DeleteItemInput
	var owner string
	mock := &mockDDB{
		putItemFn: func(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			owner = input.Item["owner"].(*ddbtypes.AttributeValueMemberS).Value
			return &dynamodb.PutItemOutput{}, nil
		},
		deleteItemFn: func(_ context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			deletes = append(deletes, input)
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	d := NewDynamoDBFromClient(mock, "locks")
	ctx := context.Background()

	// Never acquired: nothing to delete.
	require.NoError(t, d.Release(ctx, "k"))
	assert.Empty(t, deletes)

	ok, err := d.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, d.Release(ctx, "k"))

	require.Len(t, deletes, 1)
	assert.Equal(t, "#owner = :owner", *deletes[0].ConditionExpression)
	assert.Equal(t, owner, deletes[0].ExpressionAttributeValues[":owner"].(*ddbtypes.AttributeValueMemberS).Value)
}

func TestDynamoDB_ReleaseAfterTakeover(t *testing.T) {
	mock := &mockDDB{
		deleteItemFn: func(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: strPtr("owner changed")}
		},
	}
	d := NewDynamoDBFromClient(mock, "locks")
	ctx := context.Background()

	ok, err := d.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, d.Release(ctx, "k"))
}

func strPtr(s string) *string { return &s }
