package store

import (
	"context"
	"errors"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type fakeProducer struct {
	messages []*kafka.Message
	fail     error
	closed   bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	f.messages = append(f.messages, msg)
	reported := *msg
	reported.TopicPartition.Error = f.fail
	deliveryChan <- &reported
	return nil
}

func (f *fakeProducer) Flush(timeoutMs int) int { return 0 }

func (f *fakeProducer) Close() { f.closed = true }

type fakeRegistry struct {
	schemas   map[int]*schema.SchemaMetadata
	registers int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{schemas: make(map[int]*schema.SchemaMetadata)}
}

func (r *fakeRegistry) GetSchema(ctx context.Context, id int) (*schema.SchemaMetadata, error) {
	if md, ok := r.schemas[id]; ok {
		return md, nil
	}
	return nil, errors.New("schema not found")
}

func (r *fakeRegistry) GetLatestSchema(ctx context.Context, subject string) (*schema.SchemaMetadata, error) {
	for _, md := range r.schemas {
		if md.Subject == subject {
			return md, nil
		}
	}
	return nil, errors.New("subject not found")
}

func (r *fakeRegistry) RegisterSchema(ctx context.Context, subject, s string, t schema.SchemaType) (*schema.SchemaMetadata, error) {
	r.registers++
	md := &schema.SchemaMetadata{ID: len(r.schemas) + 1, Version: 1, Schema: s, Subject: subject, SchemaType: t}
	r.schemas[md.ID] = md
	return md, nil
}

func (r *fakeRegistry) Close() error { return nil }

func TestKafkaStoreWrite(t *testing.T) {
	p := &fakeProducer{}
	registry := newFakeRegistry()
	s := newKafkaStore(p, registry, "features.", zap.NewNop())

	table := labelTable(labelRow("t1", "4111", 1, 0), labelRow("t2", "5500", 2, 1))
	require.NoError(t, s.Write(context.Background(), table))
	require.NoError(t, s.Write(context.Background(), table))

	assert.Equal(t, 1, registry.registers, "schema registered once per group")
	require.Len(t, p.messages, 4)

	msg := p.messages[0]
	assert.Equal(t, "features.transactions_fraud_label_2", *msg.TopicPartition.Topic)
	assert.Equal(t, "transactions_fraud_label_2/4111/00000000000000000001", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "event_time", Value: []byte("1")},
		{Key: "feature_group", Value: []byte("transactions_fraud_label_2")},
	}, msg.Headers)

	id, err := schema.SchemaID(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	codec := schema.NewAvroCodec(registry, zap.NewNop())
	decoded, err := codec.Decode(context.Background(), table.Group, msg.Value, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}(labelRow("t1", "4111", 1, 0)), decoded)
}

func TestKafkaStoreWritePropagatesTraceContext(t *testing.T) {
	p := &fakeProducer{}
	s := newKafkaStore(p, newFakeRegistry(), "", zap.NewNop())

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0xf7, 0x65, 0x19, 0x16, 0xcd, 0x43, 0xdd, 0x84, 0x48, 0xeb, 0x21, 0x1c, 0x80, 0x31, 0x9c},
		SpanID:     trace.SpanID{0xb7, 0xad, 0x6b, 0x71, 0x69, 0x20, 0x33, 0x31},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	require.NoError(t, s.Write(ctx, labelTable(labelRow("t1", "4111", 1, 0))))
	require.Len(t, p.messages, 1)
	assert.Contains(t, p.messages[0].Headers, kafka.Header{
		Key:   "traceparent",
		Value: []byte("00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"),
	})
}

func TestKafkaStoreDeliveryFailure(t *testing.T) {
	p := &fakeProducer{fail: errors.New("broker down")}
	s := newKafkaStore(p, newFakeRegistry(), "", zap.NewNop())

	err := s.Write(context.Background(), labelTable(labelRow("t1", "4111", 1, 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaStoreReadUnsupported(t *testing.T) {
	p := &fakeProducer{}
	s := newKafkaStore(p, newFakeRegistry(), "", zap.NewNop())

	_, err := s.Read(context.Background(), schema.FraudLabelsGroup())
	assert.ErrorIs(t, err, ErrReadUnsupported)
	assert.True(t, ferrors.IsFatal(err))

	require.NoError(t, s.Close())
	assert.True(t, p.closed)
}

func TestNewKafkaStoreRequiresBrokers(t *testing.T) {
	_, err := NewKafkaStore(KafkaConfig{}, zap.NewNop())
	assert.Error(t, err)
}
