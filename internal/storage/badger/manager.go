package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	message   interfaces.MessageStorage
	artifact  interfaces.ArtifactStorage
	siteConfig interfaces.SiteConfigStorage
	logger    arbor.ILogger
}

// NewManager opens the database and creates every store. Artifact storage is
// only created when enabled.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, artifacts bool) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		message:   NewMessageStorage(db, logger),
		siteConfig: NewSiteConfigStorage(db, logger),
		logger:    logger,
	}
	if artifacts {
		manager.artifact = NewArtifactStorage(db, logger)
	}

	logger.Info().Bool("artifacts", artifacts).Msg("Badger storage manager initialized")

	return manager, nil
}

// DB returns the underlying connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

func (m *Manager) MessageStorage() interfaces.MessageStorage {
	return m.message
}

func (m *Manager) ArtifactStorage() interfaces.ArtifactStorage {
	return m.artifact
}

func (m *Manager) SiteConfigStorage() interfaces.SiteConfigStorage {
	return m.siteConfig
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage")
	return m.db.Close()
}
