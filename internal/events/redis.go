package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-video-pipeline/internal/metrics"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// PayloadField is the stream entry field holding the JSON UploadEvent
const PayloadField = "payload"

// StreamConfig configures the Redis Streams consumer
type StreamConfig struct {
	Stream       string
	Group        string
	Consumer     string
	Workers      int
	BlockTimeout time.Duration
	// MinIdle is how long an entry must be pending before another consumer claims it
	MinIdle time.Duration
	// ReclaimInterval is how often pending entries are re-examined; defaults to MinIdle/2
	ReclaimInterval time.Duration
	MaxLen          int64
}

// StreamConsumer reads upload events from a Redis Stream consumer group.
// Entries are acknowledged once dispatched successfully; failed entries stay
// pending and are reclaimed by XAUTOCLAIM on the next start.
type StreamConsumer struct {
	rc         redis.UniversalClient
	cfg        StreamConfig
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewStreamConsumer creates a consumer
func NewStreamConsumer(rc redis.UniversalClient, cfg StreamConfig, dispatcher Dispatcher, logger *slog.Logger) *StreamConsumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 10 * time.Minute
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = cfg.MinIdle / 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamConsumer{rc: rc, cfg: cfg, dispatcher: dispatcher, logger: logger}
}

// EnsureGroup creates the consumer group (and stream) if missing
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.rc.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Start claims stale entries, then runs the worker loops until ctx is cancelled.
// Pending entries are reclaimed again every ReclaimInterval.
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure redis group: %w", err)
	}

	c.logger.Info("stream consumer started",
		slog.String("stream", c.cfg.Stream),
		slog.String("group", c.cfg.Group),
		slog.String("consumer", c.cfg.Consumer),
		slog.Int("workers", c.cfg.Workers),
	)

	c.autoClaim(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reclaim(ctx, c.cfg.ReclaimInterval)
	}()
	defer wg.Wait()

	errCh := make(chan error, c.cfg.Workers)
	for i := 0; i < c.cfg.Workers; i++ {
		go func() { errCh <- c.loop(ctx) }()
	}

	var firstErr error
	for i := 0; i < c.cfg.Workers; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reclaim retries entries whose dispatch failed or whose consumer died
func (c *StreamConsumer) reclaim(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.autoClaim(ctx)
		}
	}
}

// autoClaim takes over entries idle for MinIdle and handles them
func (c *StreamConsumer) autoClaim(ctx context.Context) {
	next := "0-0"
	for {
		msgs, start, err := c.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.MinIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("auto-claim failed", slog.Any("error", err))
			}
			return
		}
		if len(msgs) > 0 {
			c.logger.Info("claimed pending entries", slog.Int("count", len(msgs)))
		}
		for _, m := range msgs {
			c.Handle(context.WithoutCancel(ctx), m)
		}
		if start == "0-0" || len(msgs) == 0 {
			return
		}
		next = start
	}
}

func (c *StreamConsumer) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		streams, err := c.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			Streams:  []string{c.cfg.Stream, ">"},
			Count:    1,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("xreadgroup failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				c.Handle(context.WithoutCancel(ctx), m)
			}
		}
	}
}

// Handle dispatches one stream entry and reports whether it was acknowledged
func (c *StreamConsumer) Handle(ctx context.Context, m redis.XMessage) bool {
	log := c.logger.With(slog.String("entry_id", m.ID))

	ev, err := DecodeStreamEntry(m.Values)
	if err != nil {
		log.Error("invalid stream entry, acknowledging", slog.Any("error", err))
		return c.ack(ctx, m.ID, log)
	}

	metrics.EventsReceivedTotal.WithLabelValues("redis").Inc()
	resp := c.dispatcher.Dispatch(ctx, ev, nil)
	if !resp.Success {
		log.Error("event failed, leaving entry pending",
			slog.String("object", ev.ObjectPath),
			slog.String("error", resp.Error),
		)
		return false
	}
	return c.ack(ctx, m.ID, log)
}

func (c *StreamConsumer) ack(ctx context.Context, id string, log *slog.Logger) bool {
	if err := c.rc.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		log.Error("xack failed", slog.Any("error", err))
		return false
	}
	return true
}

// Publish appends an upload event to the stream
func (c *StreamConsumer) Publish(ctx context.Context, ev pipeline.UploadEvent) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return c.rc.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		MaxLen: c.cfg.MaxLen,
		Approx: c.cfg.MaxLen > 0,
		Values: map[string]any{PayloadField: string(raw)},
	}).Result()
}

// DecodeStreamEntry reads the JSON UploadEvent from an entry's payload field
func DecodeStreamEntry(values map[string]any) (pipeline.UploadEvent, error) {
	var ev pipeline.UploadEvent
	raw, ok := values[PayloadField].(string)
	if !ok {
		return ev, fmt.Errorf("missing %q field", PayloadField)
	}
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return ev, fmt.Errorf("decode payload: %w", err)
	}
	if ev.Bucket == "" || ev.ObjectPath == "" || ev.ContentType == "" {
		return ev, errors.New("payload missing required fields")
	}
	return ev, nil
}
