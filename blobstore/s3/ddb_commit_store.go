package s3

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/taggo/blobstore"
)

// ErrConcurrentModification is returned when a concurrent manifest
// commit is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API used by DDBCommitStore.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore wraps an S3 store with a DynamoDB commit log for the
// snapshot manifest, giving the compare-and-swap semantics S3 lacks.
// Multiple writers can save snapshots against the same prefix without
// losing commits.
//
// Writes to the configured manifest name are redirected: the manifest
// content goes to a versioned S3 object, then a DynamoDB conditional
// write advances the current-version pointer. Opens of the manifest
// name resolve the pointer and read the versioned object. All other
// names pass through to the underlying S3 store unchanged. Manifest
// commits must use Put, not Create.
//
// Table schema:
//   - Partition key: base_uri (string), the logical index location
//   - Sort key: version (number), monotonically increasing
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name taggo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
	manifest  string
}

// NewDDBCommitStore creates an S3+DynamoDB commit store. baseURI is the
// partition key, conventionally "s3://bucket/prefix". manifestName is
// the blob name whose writes become versioned commits.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI, manifestName string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
		manifest:  manifestName,
	}
}

// versionedKey returns a unique S3 object name for a manifest commit
// attempt. The nonce keeps racing writers from overwriting each other
// before the commit log picks the winner.
func (s *DDBCommitStore) versionedKey(version uint64) string {
	var nonce [4]byte
	_, _ = rand.Read(nonce[:])
	return fmt.Sprintf("manifests/%s.v%08d-%s", s.manifest, version, hex.EncodeToString(nonce[:]))
}

// Open opens a blob for reading. The manifest name resolves to the
// latest committed version.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != s.manifest {
		return s.s3Store.Open(ctx, name)
	}

	version, objectKey, err := s.latestVersion(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return s.s3Store.Open(ctx, objectKey)
}

// Put writes a blob. The manifest name commits a new version.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != s.manifest {
		return s.s3Store.Put(ctx, name, data)
	}

	version, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}
	next := version + 1
	objectKey := s.versionedKey(next)

	// Content first, pointer second. A losing writer orphans its own
	// upload but can never clobber the winner's or leave a dangling
	// pointer.
	if err := s.s3Store.Put(ctx, objectKey, data); err != nil {
		return err
	}
	return s.commitVersion(ctx, next, objectKey)
}

// Create creates a writable blob on the underlying store.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.s3Store.Create(ctx, name)
}

// Delete deletes a blob on the underlying store.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs on the underlying store.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the newest committed version.
// Returns version 0 when nothing has been committed yet.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid manifest_path attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}

	return version, pathAttr.Value, nil
}

// commitVersion advances the pointer with a conditional write. The
// condition fails if another writer committed the same version first.
func (s *DDBCommitStore) commitVersion(ctx context.Context, version uint64, manifestPath string) error {
	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: manifestPath},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}

	return nil
}
