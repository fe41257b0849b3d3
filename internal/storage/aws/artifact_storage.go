package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ArtifactStorage writes run artifacts as JSON objects to an S3 bucket
type ArtifactStorage struct {
	client S3API
	bucket string
	logger arbor.ILogger
}

var _ interfaces.ArtifactStorage = (*ArtifactStorage)(nil)

// NewArtifactStorage creates an S3 artifact store
func NewArtifactStorage(client S3API, bucket string, logger arbor.ILogger) *ArtifactStorage {
	return &ArtifactStorage{client: client, bucket: bucket, logger: logger}
}

func (s *ArtifactStorage) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.Key == "" {
		return fmt.Errorf("artifact key is required")
	}

	body, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(artifact.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact to s3://%s/%s: %w", s.bucket, artifact.Key, err)
	}

	s.logger.Info().Str("bucket", s.bucket).Str("key", artifact.Key).Msg("Artifact uploaded")
	return nil
}

func (s *ArtifactStorage) GetArtifact(ctx context.Context, key string) (*models.Artifact, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("artifact %s: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download artifact %s: %w", key, err)
	}
	defer out.Body.Close()

	var artifact models.Artifact
	if err := json.NewDecoder(out.Body).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", key, err)
	}
	artifact.Key = key
	return &artifact, nil
}
