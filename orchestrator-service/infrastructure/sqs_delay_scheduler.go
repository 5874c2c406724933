package infrastructure

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ domain.TimeoutScheduler = (*SQSDelayScheduler)(nil)

// maxSQSDelay is the hard SQS cap on per-message delay
const maxSQSDelay = 900 * time.Second

// SQSDelayScheduler implements domain.TimeoutScheduler using SQS delayed
// messages on the orchestrator's own inbound queue, so fired timeouts arrive
// through the normal subscriber path and survive restarts. A delayed message
// cannot be revoked, so Cancel is a no-op: the engine's token-liveness check
// on delivery makes the eventual fire stale.
type SQSDelayScheduler struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSDelayScheduler creates a new SQSDelayScheduler
func NewSQSDelayScheduler(client *sqs.Client, queueURL string) *SQSDelayScheduler {
	return &SQSDelayScheduler{
		client:   client,
		queueURL: queueURL,
	}
}

// NewSQSDelaySchedulerAdapter builds a scheduler with a default AWS config
func NewSQSDelaySchedulerAdapter(queueURL string) (*SQSDelayScheduler, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return NewSQSDelayScheduler(sqs.NewFromConfig(cfg), queueURL), nil
}

// Schedule sends the event as a delayed SQS message and returns its token
func (s *SQSDelayScheduler) Schedule(ctx context.Context, delay time.Duration, event *events.Event) (string, error) {
	if delay > maxSQSDelay {
		return "", errors.Errorf("delay %s exceeds the SQS maximum of %s", delay, maxSQSDelay)
	}

	token := uuid.New().String()
	event.WithMetadata(domain.TimeoutTokenKey, token)

	body, err := event.ToJSON()
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal timeout event")
	}

	delaySeconds := int32(delay / time.Second)

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(s.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySeconds,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to send delayed message to SQS")
	}

	return token, nil
}

// Cancel is a no-op; token liveness is checked when the message arrives
func (s *SQSDelayScheduler) Cancel(ctx context.Context, token string) error {
	return nil
}
