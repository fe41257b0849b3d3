package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	stypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/models"
)

type fakeDynamo struct {
	items map[string]map[string]dtypes.AttributeValue
	scans int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]dtypes.AttributeValue{}}
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := stringAttr(params.Item, attrMessageID)
	if _, exists := f.items[id]; exists && params.ConditionExpression != nil {
		return nil, &dtypes.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[stringAttr(params.Key, attrMessageID)]}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans++
	var want string
	if v, ok := params.ExpressionAttributeValues[":t"].(*dtypes.AttributeValueMemberS); ok {
		want = v.Value
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if want == "" || stringAttr(item, attrTicker) == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func TestMessageStorage(t *testing.T) {
	client := newFakeDynamo()
	store := NewMessageStorage(client, "earnings-messages", arbor.NewLogger())
	ctx := context.Background()
	base := time.Date(2025, 2, 18, 21, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		ticker := "anet"
		if id == "b" {
			ticker = "nvda"
		}
		require.NoError(t, store.SaveMessage(ctx, &models.StoredMessage{
			MessageID: id,
			Ticker:    ticker,
			Quarter:   4,
			Year:      2024,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Message:   "digest " + id,
		}))
	}

	item := client.items["a"]
	assert.Equal(t, "digest a", stringAttr(item, attrMessage))
	assert.Equal(t, "ANET", stringAttr(item, attrTicker))
	assert.Equal(t, &dtypes.AttributeValueMemberN{Value: "2024"}, item[attrYear])

	list, err := store.ListMessages(ctx, "anet", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].MessageID)
	assert.Equal(t, "a", list[1].MessageID)
	assert.Equal(t, base, list[1].Timestamp)

	limited, err := store.ListMessages(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].MessageID)

	got, err := store.GetMessage(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got.Ticker)
	assert.Equal(t, 4, got.Quarter)

	_, err = store.GetMessage(ctx, "zzz")
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = store.SaveMessage(ctx, &models.StoredMessage{MessageID: "a"})
	var conflict *dtypes.ConditionalCheckFailedException
	assert.True(t, errors.As(err, &conflict))
}

func TestFromItemAcceptsStringNumbers(t *testing.T) {
	msg := fromItem(map[string]dtypes.AttributeValue{
		attrMessageID: &dtypes.AttributeValueMemberS{Value: "legacy"},
		attrQuarter:   &dtypes.AttributeValueMemberS{Value: "3"},
		attrYear:      &dtypes.AttributeValueMemberS{Value: "2024.0"},
	})
	assert.Equal(t, 3, msg.Quarter)
	assert.Equal(t, 2024, msg.Year)
	assert.True(t, msg.Timestamp.IsZero())
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &stypes.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestArtifactStorage(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewArtifactStorage(client, "earnings-artifacts", arbor.NewLogger())
	ctx := context.Background()

	artifact := &models.Artifact{
		Key:            "ANET_20250218_210509.json",
		Ticker:         "ANET",
		Timestamp:      "20250218_210509",
		ScrapedURL:     "https://investors.arista.com/q4.pdf",
		ScrapedContent: "Revenue of $1.93 billion",
		Message:        "digest",
	}
	require.NoError(t, store.SaveArtifact(ctx, artifact))

	stored := client.objects["earnings-artifacts/ANET_20250218_210509.json"]
	require.NotEmpty(t, stored)
	assert.Contains(t, string(stored), `"scraped_url": "https://investors.arista.com/q4.pdf"`)
	assert.Equal(t, "application/json", client.types["earnings-artifacts/ANET_20250218_210509.json"])

	got, err := store.GetArtifact(ctx, artifact.Key)
	require.NoError(t, err)
	assert.Equal(t, artifact.Key, got.Key)
	assert.Equal(t, "Revenue of $1.93 billion", got.ScrapedContent)

	_, err = store.GetArtifact(ctx, "missing.json")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Error(t, store.SaveArtifact(ctx, &models.Artifact{}))
}
