package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// MessageStorage keeps sent digests in Badger
type MessageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMessageStorage creates a new MessageStorage instance
func NewMessageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MessageStorage {
	return &MessageStorage{
		db:     db,
		logger: logger,
	}
}

// SaveMessage inserts msg. Existing ids are never overwritten.
func (s *MessageStorage) SaveMessage(ctx context.Context, msg *models.StoredMessage) error {
	if msg.MessageID == "" {
		return fmt.Errorf("message id is required")
	}
	msg.Ticker = strings.ToUpper(msg.Ticker)
	if err := s.db.Store().Insert(msg.MessageID, msg); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("message %s already stored", msg.MessageID)
		}
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id string) (*models.StoredMessage, error) {
	var msg models.StoredMessage
	if err := s.db.Store().Get(id, &msg); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStorage) ListMessages(ctx context.Context, ticker string, limit int) ([]*models.StoredMessage, error) {
	query := badgerhold.Where("MessageID").Ne("")
	if ticker != "" {
		query = badgerhold.Where("Ticker").Eq(strings.ToUpper(ticker)).Index("Ticker")
	}
	query = query.SortBy("Timestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.StoredMessage
	if err := s.db.Store().Find(&messages, query); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	result := make([]*models.StoredMessage, len(messages))
	for i := range messages {
		result[i] = &messages[i]
	}
	return result, nil
}
