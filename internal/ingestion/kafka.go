package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/idhash"
	"cloudboost-metrics/internal/logging"
	"cloudboost-metrics/internal/observability"
	"cloudboost-metrics/internal/storage"
)

// KafkaConfig configures the record consumer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxBackoff caps the retry delay after fetch or store failures.
	MaxBackoff time.Duration
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// KafkaConsumer appends JSON records read from a Kafka topic. Offsets are
// committed only after a record is stored or permanently rejected, so a
// store outage stalls the partition instead of dropping records.
type KafkaConsumer struct {
	cfg      KafkaConfig
	reader   messageReader
	appender Appender
	log      *slog.Logger
}

// NewKafkaConsumer creates a consumer group reader for cfg.
func NewKafkaConsumer(cfg KafkaConfig, appender Appender) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaConsumer(cfg, reader, appender), nil
}

func newKafkaConsumer(cfg KafkaConfig, reader messageReader, appender Appender) *KafkaConsumer {
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &KafkaConsumer{
		cfg:      cfg,
		reader:   reader,
		appender: appender,
		log:      logging.Component("kafka").With("topic", cfg.Topic, "group", cfg.GroupID),
	}
}

// Run consumes until ctx is canceled or the reader is closed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Error("reader close failed", "error", err)
		}
	}()
	c.log.Info("consumer started", "brokers", strings.Join(c.cfg.Brokers, ","))

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.log.Error("fetch failed", "error", err)
			if !c.sleep(ctx, &backoff) {
				return nil
			}
			continue
		}
		backoff = time.Second

		for {
			err := c.handleMessage(ctx, msg)
			if err == nil {
				break
			}
			c.log.Error("append failed, retrying",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			if !c.sleep(ctx, &backoff) {
				return nil
			}
		}
		backoff = time.Second

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		observability.UpdateKafkaLag(c.reader.Stats().Lag)
	}
}

// handleMessage decodes and appends one message. A nil error means the
// offset may be committed: undecodable, invalid and duplicate records are
// logged and skipped.
func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	rec, err := decodeRecord(msg)
	if err != nil {
		observability.RecordRejected("kafka", "decode")
		c.log.Warn("message rejected", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return nil
	}

	err = c.appender.AppendBatch(ctx, "kafka", []*domain.Record{rec})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicateKey):
		c.log.Debug("duplicate record skipped", "id", rec.ID, "offset", msg.Offset)
		return nil
	case errors.Is(err, domain.ErrInvalidRecord):
		c.log.Warn("record rejected", "id", rec.ID, "offset", msg.Offset, "error", err)
		return nil
	}
	return err
}

// decodeRecord parses a message value. Records without an id are keyed by
// topic, partition and offset so redelivery is idempotent.
func decodeRecord(msg kafka.Message) (*domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = idhash.RecordID(msg.Topic, strconv.Itoa(msg.Partition), strconv.FormatInt(msg.Offset, 10))
	}
	return &rec, nil
}

func (c *KafkaConsumer) sleep(ctx context.Context, backoff *time.Duration) bool {
	select {
	case <-time.After(*backoff):
		if *backoff < c.cfg.MaxBackoff {
			*backoff *= 2
			if *backoff > c.cfg.MaxBackoff {
				*backoff = c.cfg.MaxBackoff
			}
		}
		return true
	case <-ctx.Done():
		c.log.Info("consumer stopped")
		return false
	}
}
