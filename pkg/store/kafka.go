package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/tracing"
	"go.uber.org/zap"
)

// ErrReadUnsupported is returned by write-only backends
var ErrReadUnsupported = errors.New("read unsupported by this feature store")

// producer is the subset of *kafka.Producer the store uses
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaStore streams feature rows to one topic per group, Avro encoded in
// the Confluent wire format. Messages are keyed by RowKey so a compacted
// topic keeps a single copy of a retried row.
type KafkaStore struct {
	producer    producer
	registry    schema.RegistryClient
	codec       *schema.AvroCodec
	topicPrefix string
	logger      *zap.Logger

	mu      sync.Mutex
	schemas map[string]*schema.SchemaMetadata
}

// KafkaConfig holds Kafka store configuration
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	Registry    schema.Config
}

// NewKafkaStore creates the producer and the schema registry client
func NewKafkaStore(config KafkaConfig, logger *zap.Logger) (*KafkaStore, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers specified")
	}

	registry, err := schema.NewRegistryClient(&config.Registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema registry client: %w", err)
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka feature store initialized",
		zap.Strings("brokers", config.Brokers),
		zap.String("topic_prefix", config.TopicPrefix),
	)

	return newKafkaStore(p, registry, config.TopicPrefix, logger), nil
}

func newKafkaStore(p producer, registry schema.RegistryClient, topicPrefix string, logger *zap.Logger) *KafkaStore {
	return &KafkaStore{
		producer:    p,
		registry:    registry,
		codec:       schema.NewAvroCodec(registry, logger),
		topicPrefix: topicPrefix,
		logger:      logger,
		schemas:     make(map[string]*schema.SchemaMetadata),
	}
}

// Topic returns the topic of a feature group
func (k *KafkaStore) Topic(group *schema.FeatureGroup) string {
	return k.topicPrefix + group.ID()
}

func (k *KafkaStore) schemaFor(ctx context.Context, group *schema.FeatureGroup) (*schema.SchemaMetadata, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if md, ok := k.schemas[group.ID()]; ok {
		return md, nil
	}
	md, err := schema.EnsureGroupSchema(ctx, k.registry, group)
	if err != nil {
		return nil, err
	}
	k.schemas[group.ID()] = md
	return md, nil
}

// Write produces every row and waits for all delivery reports
func (k *KafkaStore) Write(ctx context.Context, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if table.Len() == 0 {
		return nil
	}

	md, err := k.schemaFor(ctx, table.Group)
	if err != nil {
		return err
	}

	topic := k.Topic(table.Group)
	traceHeaders := make(map[string]string)
	tracing.InjectTraceContext(ctx, traceHeaders)

	deliveries := make(chan kafka.Event, table.Len())
	for _, row := range table.Rows {
		key, err := RowKey(table.Group, row)
		if err != nil {
			return err
		}
		ts, err := EventTimeMillis(table.Group, row)
		if err != nil {
			return err
		}
		value, err := k.codec.Encode(table.Group, row, md)
		if err != nil {
			return ferrors.NewClassifiedError(err, ferrors.CategoryFatal, "failed to encode row").
				WithMetadata("group", table.Group.ID())
		}

		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{
				Topic:     &topic,
				Partition: kafka.PartitionAny,
			},
			Key:   []byte(key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_time", Value: []byte(strconv.FormatInt(ts, 10))},
				{Key: "feature_group", Value: []byte(table.Group.ID())},
			},
		}
		for _, name := range []string{"traceparent", "tracestate"} {
			if v, ok := traceHeaders[name]; ok {
				msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(v)})
			}
		}
		if err := k.producer.Produce(msg, deliveries); err != nil {
			return fmt.Errorf("failed to produce to %s: %w", topic, err)
		}
	}

	var firstErr error
	for i := 0; i < table.Len(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-deliveries:
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil && firstErr == nil {
				firstErr = m.TopicPartition.Error
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("kafka delivery to %s failed: %w", topic, firstErr)
	}

	k.logger.Info("Batch produced to Kafka",
		zap.String("topic", topic),
		zap.Int("rows", table.Len()),
		zap.Int("schema_id", md.ID),
	)
	return nil
}

// Read is not supported; consumers read the topics directly
func (k *KafkaStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	return nil, ferrors.NewClassifiedError(ErrReadUnsupported, ferrors.CategoryFatal, "kafka").
		WithMetadata("group", group.ID())
}

// Close flushes outstanding messages and closes the producer
func (k *KafkaStore) Close() error {
	if remaining := k.producer.Flush(30000); remaining > 0 {
		k.logger.Warn("Messages still in queue", zap.Int("count", remaining))
	}
	k.producer.Close()
	k.logger.Info("Closing Kafka feature store")
	return k.registry.Close()
}
