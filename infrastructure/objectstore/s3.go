package objectstore

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"graphmeta-backend/application/ports"
	apperrors "graphmeta-backend/pkg/errors"
)

// putTimeout bounds snapshot uploads.
const putTimeout = 30 * time.Second

// s3API is the subset of the S3 client used here, split out for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SnapshotStore persists org export snapshots to an S3 bucket. The
// bucket is append-only from the service's perspective: snapshots are
// written, never overwritten or deleted.
type SnapshotStore struct {
	client s3API
	bucket string
	logger *zap.Logger
}

// NewSnapshotStore creates a snapshot store on the given client and bucket.
func NewSnapshotStore(client *s3.Client, bucket string, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, bucket: bucket, logger: logger}
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// Put uploads a snapshot blob under the given key with object metadata.
func (s *SnapshotStore) Put(ctx context.Context, key string, blob []byte, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		return apperrors.NewExternalError("object store", err)
	}

	s.logger.Debug("Snapshot written",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(blob)),
	)
	return nil
}
