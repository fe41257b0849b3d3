package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// snsSubjectLimit is the maximum SNS subject length.
const snsSubjectLimit = 100

// SNSPublisher is the subset of the SNS client used here.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes digests to an SNS topic.
type SNSNotifier struct {
	client   SNSPublisher
	topicARN string
	logger   arbor.ILogger
}

var _ interfaces.Notifier = (*SNSNotifier)(nil)

// NewSNSNotifier creates a topic notifier
func NewSNSNotifier(client SNSPublisher, topicARN string, logger arbor.ILogger) *SNSNotifier {
	return &SNSNotifier{client: client, topicARN: topicARN, logger: logger}
}

func (s *SNSNotifier) Name() string {
	return "sns"
}

func (s *SNSNotifier) Notify(ctx context.Context, n interfaces.Notification) error {
	subject := Subject(n)
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit]
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(n.Message.String()),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.topicARN, err)
	}

	s.logger.Info().
		Str("ticker", n.Ticker).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("Published digest to SNS")
	return nil
}
