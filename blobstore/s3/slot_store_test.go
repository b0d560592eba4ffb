package s3

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaginessa/duckstation/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // key -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	// Sort descending by version
	for i := 0; i < len(items)-1; i++ {
		for j := i + 1; j < len(items); j++ {
			vi := items[i]["version"].(*types.AttributeValueMemberN).Value
			vj := items[j]["version"].(*types.AttributeValueMemberN).Value
			if vi < vj {
				items[i], items[j] = items[j], items[i]
			}
		}
	}

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestSlotStore(ddb *mockDDBClient, baseURI string) *DDBSlotStore {
	s3Store := NewStore(&MockS3Client{}, "test-bucket", "test/")
	return NewDDBSlotStore(s3Store, ddb, "arena-snapshots", baseURI)
}

func readCurrent(t *testing.T, store *DDBSlotStore) string {
	t.Helper()
	blob, err := store.Open(context.Background(), "CURRENT")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, blob.Size())
	_, err = blob.ReadAt(buf, 0)
	require.NoError(t, err)
	return string(buf)
}

func TestDDBSlotStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := newTestSlotStore(ddb, "s3://test-bucket/test/")

	err := store.Put(ctx, "CURRENT", []byte("state_001.sav"))
	require.NoError(t, err)

	assert.Equal(t, "state_001.sav", readCurrent(t, store))
}

func TestDDBSlotStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := newTestSlotStore(ddb, "s3://test-bucket/test/")

	for i := 1; i <= 3; i++ {
		err := store.Put(ctx, "CURRENT", []byte(fmt.Sprintf("state_%03d.sav", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, "state_003.sav", readCurrent(t, store))
}

func TestDDBSlotStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store := newTestSlotStore(ddb, "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "CURRENT", []byte("state_001.sav")))

	var wg sync.WaitGroup
	successes := 0
	conflicts := 0
	var mu sync.Mutex

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, "CURRENT", []byte(fmt.Sprintf("state_%03d.sav", id+2)))
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case ErrConcurrentModification:
				conflicts++
			case nil:
				successes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()
	assert.Greater(t, successes, 0, "at least one writer should succeed")
	t.Logf("successes: %d, conflicts: %d", successes, conflicts)
}

func TestDDBSlotStore_NotFoundBeforeCommit(t *testing.T) {
	ddb := newMockDDBClient()
	store := newTestSlotStore(ddb, "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), "CURRENT")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBSlotStore_CreateCurrentRejected(t *testing.T) {
	ddb := newMockDDBClient()
	store := newTestSlotStore(ddb, "s3://test-bucket/test/")

	_, err := store.Create(context.Background(), "CURRENT")
	require.Error(t, err)
}

func TestDDBSlotStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1 := newTestSlotStore(ddb, "s3://bucket-a/path/")
	store2 := newTestSlotStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, "CURRENT", []byte("state_00A.sav")))
	require.NoError(t, store2.Put(ctx, "CURRENT", []byte("state_00B.sav")))

	assert.Equal(t, "state_00A.sav", readCurrent(t, store1))
	assert.Equal(t, "state_00B.sav", readCurrent(t, store2))
}
