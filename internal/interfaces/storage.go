package interfaces

import (
	"context"

	"github.com/ternarybob/earningsear/internal/models"
)

// MessageStorage persists sent digests. Writes are append-only.
type MessageStorage interface {
	SaveMessage(ctx context.Context, msg *models.StoredMessage) error
	GetMessage(ctx context.Context, id string) (*models.StoredMessage, error)
	// ListMessages returns messages for ticker, newest first. An empty ticker lists all.
	ListMessages(ctx context.Context, ticker string, limit int) ([]*models.StoredMessage, error)
}

// ArtifactStorage keeps the raw inputs and outputs of a run.
type ArtifactStorage interface {
	SaveArtifact(ctx context.Context, artifact *models.Artifact) error
	GetArtifact(ctx context.Context, key string) (*models.Artifact, error)
}

// SiteConfigStorage keeps site configurations keyed by ticker.
type SiteConfigStorage interface {
	PutSiteConfig(ctx context.Context, record *models.SiteConfigRecord) error
	GetSiteConfig(ctx context.Context, ticker string) (*models.SiteConfigRecord, error)
	ListSiteConfigs(ctx context.Context) ([]*models.SiteConfigRecord, error)
	DeleteSiteConfig(ctx context.Context, ticker string) error
}

// StorageManager bundles the stores for the configured backend.
type StorageManager interface {
	MessageStorage() MessageStorage
	// ArtifactStorage returns nil when artifact persistence is disabled.
	ArtifactStorage() ArtifactStorage
	SiteConfigStorage() SiteConfigStorage
	Close() error
}
