package aws

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
)

// Item attribute names. The digest lives under discord_message so tables
// written by earlier deployments stay readable.
const (
	attrMessageID = "message_id"
	attrTicker    = "ticker"
	attrQuarter   = "quarter"
	attrYear      = "year"
	attrTimestamp = "timestamp"
	attrMessage   = "discord_message"
)

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// MessageStorage keeps sent digests in a DynamoDB table keyed by message_id
type MessageStorage struct {
	client DynamoAPI
	table  string
	logger arbor.ILogger
}

var _ interfaces.MessageStorage = (*MessageStorage)(nil)

// NewMessageStorage creates a DynamoDB message store
func NewMessageStorage(client DynamoAPI, table string, logger arbor.ILogger) *MessageStorage {
	return &MessageStorage{client: client, table: table, logger: logger}
}

// SaveMessage writes msg. A conditional put keeps records append-only.
func (s *MessageStorage) SaveMessage(ctx context.Context, msg *models.StoredMessage) error {
	if msg.MessageID == "" {
		return fmt.Errorf("message id is required")
	}
	msg.Ticker = strings.ToUpper(msg.Ticker)

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                toItem(msg),
		ConditionExpression: aws.String("attribute_not_exists(" + attrMessageID + ")"),
	})
	if err != nil {
		return fmt.Errorf("failed to put message into %s: %w", s.table, err)
	}

	s.logger.Debug().Str("table", s.table).Str("message_id", msg.MessageID).Msg("Message stored")
	return nil
}

func (s *MessageStorage) GetMessage(ctx context.Context, id string) (*models.StoredMessage, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrMessageID: &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("message %s: %w", id, models.ErrNotFound)
	}
	return fromItem(out.Item), nil
}

// ListMessages scans the table, filtered by ticker when given, newest first.
func (s *MessageStorage) ListMessages(ctx context.Context, ticker string, limit int) ([]*models.StoredMessage, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if ticker != "" {
		input.FilterExpression = aws.String("#t = :t")
		input.ExpressionAttributeNames = map[string]string{"#t": attrTicker}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: strings.ToUpper(ticker)},
		}
	}

	var messages []*models.StoredMessage
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.table, err)
		}
		for _, item := range page.Items {
			messages = append(messages, fromItem(item))
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func toItem(msg *models.StoredMessage) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrMessageID: &types.AttributeValueMemberS{Value: msg.MessageID},
		attrTicker:    &types.AttributeValueMemberS{Value: msg.Ticker},
		attrQuarter:   &types.AttributeValueMemberN{Value: strconv.Itoa(msg.Quarter)},
		attrYear:      &types.AttributeValueMemberN{Value: strconv.Itoa(msg.Year)},
		attrTimestamp: &types.AttributeValueMemberS{Value: msg.Timestamp.UTC().Format(time.RFC3339)},
		attrMessage:   &types.AttributeValueMemberS{Value: msg.Message},
	}
}

func fromItem(item map[string]types.AttributeValue) *models.StoredMessage {
	msg := &models.StoredMessage{
		MessageID: stringAttr(item, attrMessageID),
		Ticker:    stringAttr(item, attrTicker),
		Quarter:   numberAttr(item, attrQuarter),
		Year:      numberAttr(item, attrYear),
		Message:   stringAttr(item, attrMessage),
	}
	if ts, err := time.Parse(time.RFC3339, stringAttr(item, attrTimestamp)); err == nil {
		msg.Timestamp = ts
	}
	return msg
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// numberAttr also accepts numeric strings; older items stored quarter and year as S.
func numberAttr(item map[string]types.AttributeValue, name string) int {
	var raw string
	switch v := item[name].(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
