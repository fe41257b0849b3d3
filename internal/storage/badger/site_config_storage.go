package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// SiteConfigStorage keeps site configurations keyed by upper-case ticker
type SiteConfigStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSiteConfigStorage creates a new SiteConfigStorage instance
func NewSiteConfigStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SiteConfigStorage {
	return &SiteConfigStorage{
		db:     db,
		logger: logger,
	}
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (s *SiteConfigStorage) PutSiteConfig(ctx context.Context, record *models.SiteConfigRecord) error {
	record.Ticker = normalizeTicker(record.Ticker)
	if record.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", models.ErrInvalidConfig)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(record.Ticker, record); err != nil {
		return fmt.Errorf("failed to save site config: %w", err)
	}
	s.logger.Debug().Str("ticker", record.Ticker).Msg("Site config saved")
	return nil
}

func (s *SiteConfigStorage) GetSiteConfig(ctx context.Context, ticker string) (*models.SiteConfigRecord, error) {
	key := normalizeTicker(ticker)
	var record models.SiteConfigRecord
	if err := s.db.Store().Get(key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("site config %s: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get site config: %w", err)
	}
	return &record, nil
}

func (s *SiteConfigStorage) ListSiteConfigs(ctx context.Context) ([]*models.SiteConfigRecord, error) {
	var records []models.SiteConfigRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Ticker").Ne("").SortBy("Ticker")); err != nil {
		return nil, fmt.Errorf("failed to list site configs: %w", err)
	}

	result := make([]*models.SiteConfigRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *SiteConfigStorage) DeleteSiteConfig(ctx context.Context, ticker string) error {
	key := normalizeTicker(ticker)
	if err := s.db.Store().Delete(key, &models.SiteConfigRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("site config %s: %w", key, models.ErrNotFound)
		}
		return fmt.Errorf("failed to delete site config: %w", err)
	}
	return nil
}
