package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/taggo/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3Client is a map-backed Client for exercising the commit store
// end to end without the network.
type fakeS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: make(map[string][]byte)}
}

func (f *fakeS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	body := data
	if params.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		body = data[start : end+1]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.objects {
		if params.Prefix == nil || len(key) >= len(*params.Prefix) && key[:len(*params.Prefix)] == *params.Prefix {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3Client) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeS3Client) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeS3Client) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeS3Client) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("not supported by fake")
}

// mockDDBClient is an in-memory DynamoDB with conditional writes.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]ddbtypes.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]ddbtypes.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*ddbtypes.AttributeValueMemberS).Value
	version := params.Item["version"].(*ddbtypes.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*ddbtypes.AttributeValueMemberS).Value

	var items []map[string]ddbtypes.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*ddbtypes.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	// Descending by numeric version.
	sort.Slice(items, func(i, j int) bool {
		vi := items[i]["version"].(*ddbtypes.AttributeValueMemberN).Value
		vj := items[j]["version"].(*ddbtypes.AttributeValueMemberN).Value
		if len(vi) != len(vj) {
			return len(vi) > len(vj)
		}
		return vi > vj
	})

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestCommitStore(ddb *mockDDBClient, baseURI string) (*DDBCommitStore, *fakeS3Client) {
	fake := newFakeS3Client()
	s3Store := NewStore(fake, "test-bucket", "test")
	return NewDDBCommitStore(s3Store, ddb, "taggo-commits", baseURI, "manifest.json"), fake
}

func readBlob(t *testing.T, store blobstore.BlobStore, name string) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, name)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStoreFirstCommit(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store, fake := newTestCommitStore(ddb, "s3://test-bucket/test/")

	err := store.Put(ctx, "manifest.json", []byte(`{"format_version":1}`))
	require.NoError(t, err)

	assert.Equal(t, `{"format_version":1}`, readBlob(t, store, "manifest.json"))

	// The content landed under a versioned key.
	fake.mu.Lock()
	found := false
	for key := range fake.objects {
		if strings.HasPrefix(key, "test/manifests/manifest.json.v00000001-") {
			found = true
		}
	}
	fake.mu.Unlock()
	assert.True(t, found)
}

func TestDDBCommitStoreMultipleCommits(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store, _ := newTestCommitStore(ddb, "s3://test-bucket/test/")

	for i := 1; i <= 3; i++ {
		err := store.Put(ctx, "manifest.json", []byte(fmt.Sprintf("version %d", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, "version 3", readBlob(t, store, "manifest.json"))

	// Older versions remain for readers holding an old pointer.
	names, err := store.List(ctx, "manifests/")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestDDBCommitStoreConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store, _ := newTestCommitStore(ddb, "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "manifest.json", []byte("base")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	conflicts := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, "manifest.json", []byte(fmt.Sprintf("writer %d", id)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrConcurrentModification):
				conflicts++
			case err == nil:
				successes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()
	assert.Greater(t, successes, 0, "at least one writer should succeed")
	assert.Equal(t, 5, successes+conflicts)
}

func TestDDBCommitStoreNotFoundBeforeCommit(t *testing.T) {
	ddb := newMockDDBClient()
	store, _ := newTestCommitStore(ddb, "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), "manifest.json")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStoreIsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1, _ := newTestCommitStore(ddb, "s3://bucket-a/path/")
	store2, _ := newTestCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, "manifest.json", []byte("index a")))
	require.NoError(t, store2.Put(ctx, "manifest.json", []byte("index b")))

	assert.Equal(t, "index a", readBlob(t, store1, "manifest.json"))
	assert.Equal(t, "index b", readBlob(t, store2, "manifest.json"))
}

func TestDDBCommitStorePassThrough(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	store, fake := newTestCommitStore(ddb, "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "intern.bin", []byte("section bytes")))

	// Section objects bypass the commit log entirely.
	assert.Empty(t, ddb.items)
	fake.mu.Lock()
	_, ok := fake.objects["test/intern.bin"]
	fake.mu.Unlock()
	assert.True(t, ok)

	assert.Equal(t, "section bytes", readBlob(t, store, "intern.bin"))
}
