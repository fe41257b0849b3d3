package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// ArtifactStorage keeps run artifacts in Badger
type ArtifactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArtifactStorage creates a new ArtifactStorage instance
func NewArtifactStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArtifactStorage {
	return &ArtifactStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ArtifactStorage) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.Key == "" {
		return fmt.Errorf("artifact key is required")
	}
	if err := s.db.Store().Upsert(artifact.Key, artifact); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	s.logger.Debug().Str("key", artifact.Key).Msg("Artifact saved")
	return nil
}

func (s *ArtifactStorage) GetArtifact(ctx context.Context, key string) (*models.Artifact, error) {
	var artifact models.Artifact
	if err := s.db.Store().Get(key, &artifact); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("artifact %s: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	artifact.Key = key
	return &artifact, nil
}
