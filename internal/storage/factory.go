package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	awsstore "github.com/ternarybob/earningsear/internal/storage/aws"
	"github.com/ternarybob/earningsear/internal/storage/badger"
)

// Manager is the configured storage backend. Site configs always live in
// Badger; messages and artifacts move to DynamoDB and S3 for the aws type.
type Manager struct {
	local    *badger.Manager
	messages interfaces.MessageStorage
	artifact interfaces.ArtifactStorage
	dynamo   awsstore.DynamoAPI
	s3       awsstore.S3API
	logger   arbor.ILogger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (*Manager, error) {
	switch config.Storage.Type {
	case "", "badger":
		local, err := badger.NewManager(logger, &config.Storage.Badger, config.Storage.Artifacts)
		if err != nil {
			return nil, err
		}
		return &Manager{
			local:    local,
			messages: local.MessageStorage(),
			artifact: local.ArtifactStorage(),
			logger:   logger,
		}, nil

	case "aws":
		awsConfig, err := awsstore.LoadConfig(ctx, config.AWS.Region)
		if err != nil {
			return nil, err
		}
		return newAWSManager(logger, config, dynamodb.NewFromConfig(awsConfig), s3.NewFromConfig(awsConfig))

	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'aws')", config.Storage.Type)
	}
}

func newAWSManager(logger arbor.ILogger, config *common.Config, dynamo awsstore.DynamoAPI, s3Client awsstore.S3API) (*Manager, error) {
	if config.Storage.DynamoDB.MessagesTable == "" {
		return nil, fmt.Errorf("%w: storage.dynamodb.messages_table is required for aws storage", models.ErrInvalidConfig)
	}

	local, err := badger.NewManager(logger, &config.Storage.Badger, false)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		local:    local,
		messages: awsstore.NewMessageStorage(dynamo, config.Storage.DynamoDB.MessagesTable, logger),
		dynamo:   dynamo,
		s3:       s3Client,
		logger:   logger,
	}
	if config.Storage.Artifacts && config.Storage.S3.ArtifactBucket != "" {
		m.artifact = awsstore.NewArtifactStorage(s3Client, config.Storage.S3.ArtifactBucket, logger)
	}

	logger.Info().
		Str("table", config.Storage.DynamoDB.MessagesTable).
		Str("bucket", config.Storage.S3.ArtifactBucket).
		Msg("AWS storage manager initialized")
	return m, nil
}

func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.messages
}

func (m *Manager) ArtifactStorage() interfaces.ArtifactStorage {
	return m.artifact
}

func (m *Manager) SiteConfigStorage() interfaces.SiteConfigStorage {
	return m.local.SiteConfigStorage()
}

// ForSite returns the message and artifact stores for one run. On the aws
// backend a site's messages_table and s3_artifact_bucket override the
// configured ones; local sites always use Badger.
func (m *Manager) ForSite(site models.WorkflowConfig) (interfaces.MessageStorage, interfaces.ArtifactStorage) {
	if site.IsLocal() {
		return m.local.MessageStorage(), m.local.ArtifactStorage()
	}

	messages, artifacts := m.messages, m.artifact
	if m.dynamo != nil && site.MessagesTable != "" {
		messages = awsstore.NewMessageStorage(m.dynamo, site.MessagesTable, m.logger)
	}
	if m.s3 != nil && site.S3ArtifactBucket != "" {
		artifacts = awsstore.NewArtifactStorage(m.s3, site.S3ArtifactBucket, m.logger)
	}
	return messages, artifacts
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.local.Close()
}
