package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/tendant/simple-video-pipeline/internal/metrics"
)

// SQSAPI is the subset of the SQS client the consumer uses
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConfig configures the SQS consumer
type SQSConfig struct {
	QueueURL    string
	Concurrency int
	// VisibilityTimeout must exceed the longest run deadline
	VisibilityTimeout time.Duration
	WaitTime          time.Duration
}

// SQSConsumer receives S3 ObjectCreated notifications from SQS.
// A message is deleted only after every run for it succeeded or was skipped;
// otherwise it reappears after the visibility timeout.
type SQSConsumer struct {
	client     SQSAPI
	cfg        SQSConfig
	dispatcher Dispatcher
	stat       Statter
	logger     *slog.Logger
}

// NewSQSConsumer creates a consumer. stat may be nil.
func NewSQSConsumer(client SQSAPI, cfg SQSConfig, dispatcher Dispatcher, stat Statter, logger *slog.Logger) *SQSConsumer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 16 * time.Minute
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSConsumer{client: client, cfg: cfg, dispatcher: dispatcher, stat: stat, logger: logger}
}

// Run polls until ctx is cancelled, then waits for in-flight messages
func (c *SQSConsumer) Run(ctx context.Context) error {
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	backoff := time.Second
	c.logger.Info("sqs consumer started", slog.String("queue", c.cfg.QueueURL), slog.Int("concurrency", c.cfg.Concurrency))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("sqs consumer stopping, waiting for active messages")
			return nil
		case sem <- struct{}{}:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.cfg.QueueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     int32(c.cfg.WaitTime / time.Second),
			VisibilityTimeout:   int32(c.cfg.VisibilityTimeout / time.Second),
		})
		if err != nil {
			<-sem
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("sqs receive failed", slog.Any("error", err), slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if len(out.Messages) == 0 {
			<-sem
			continue
		}

		wg.Add(1)
		go func(m types.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			c.Handle(context.WithoutCancel(ctx), m)
		}(out.Messages[0])
	}
}

// Handle processes one message and reports whether it was deleted
func (c *SQSConsumer) Handle(ctx context.Context, m types.Message) bool {
	log := c.logger.With(slog.String("message_id", aws.ToString(m.MessageId)))

	evs, err := ParseS3Notification([]byte(aws.ToString(m.Body)))
	if err != nil {
		// Unparseable bodies never succeed on redelivery
		log.Error("invalid notification, dropping", slog.Any("error", err))
		return c.delete(ctx, m, log)
	}

	ok := true
	for _, ev := range evs {
		metrics.EventsReceivedTotal.WithLabelValues("sqs").Inc()
		ResolveContentType(ctx, c.stat, &ev)
		resp := c.dispatcher.Dispatch(ctx, ev, nil)
		if !resp.Success {
			ok = false
			log.Error("event failed, leaving message for redelivery",
				slog.String("bucket", ev.Bucket),
				slog.String("object", ev.ObjectPath),
				slog.String("error", resp.Error),
			)
		}
	}
	if !ok {
		return false
	}
	return c.delete(ctx, m, log)
}

func (c *SQSConsumer) delete(ctx context.Context, m types.Message, log *slog.Logger) bool {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Error("failed to delete sqs message", slog.Any("error", err))
		return false
	}
	return true
}
