package kafka

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/prashantkr001/inventory-api/internal/pkg/apm"
)

func TestKgoDialer(t *testing.T) {
	dialer, err := kgoDialer(&Config{})
	require.NoError(t, err)
	assert.Nil(t, dialer.Config)

	_, err = kgoDialer(&Config{CACertificate: "%%not-base64%%"})
	require.Error(t, err)

	_, err = kgoDialer(&Config{CACertificate: base64.StdEncoding.EncodeToString([]byte("not a pem"))})
	require.Error(t, err)
}

func TestKgoOptsFromCfg(t *testing.T) {
	producerOnly, err := kgoOptsFromCfg(&Config{Seeds: []string{"localhost:9092"}})
	require.NoError(t, err)

	consumer, err := kgoOptsFromCfg(&Config{
		Seeds:         []string{"localhost:9092"},
		Topics:        []string{"item_create"},
		ConsumerGroup: "inventory-api",
		AuthMechanism: "sasl",
		SASLUsername:  "user",
		SASLPassword:  "pass",
		FetchMaxBytes: 1024,
	})
	require.NoError(t, err)

	// consume topics, consumer group, 2 fetch size options & SASL
	assert.Len(t, consumer, len(producerOnly)+5)

	_, err = kgoOptsFromCfg(&Config{EnableTLSDialer: true, CACertificate: "%%"})
	require.Error(t, err)
}

func newHandlerKafka(t *testing.T, cfg *Config) *Kafka {
	t.Helper()
	histogram, err := apm.Global().AppMeter().Int64Histogram("test.kafka.handler.duration")
	require.NoError(t, err)

	return &Kafka{
		cfg:               cfg,
		tracer:            newTracer(cfg),
		latencyInstrument: histogram,
	}
}

func TestHandleTopic(t *testing.T) {
	kfk := newHandlerKafka(t, &Config{ConsumerGroup: "inventory-api"})

	ctx := t.Context()
	commits := make([]*kgo.Record, 0, 2)
	okRecord := &kgo.Record{Topic: "item_create", Value: []byte("ok"), Context: ctx}
	badRecord := &kgo.Record{Topic: "item_create", Value: []byte("bad"), Context: ctx}

	handler := func(_ context.Context, payload []byte) error {
		if string(payload) == "bad" {
			return errors.New("cannot handle")
		}
		return nil
	}

	assert.True(t, kfk.HandleTopic(ctx, &commits, okRecord, handler))
	assert.False(t, kfk.HandleTopic(ctx, &commits, badRecord, handler))

	require.Len(t, commits, 1)
	assert.Same(t, okRecord, commits[0])
}

func TestHandleTopicRetries(t *testing.T) {
	kfk := newHandlerKafka(t, &Config{
		ConsumerGroup:       "inventory-api",
		HandlerRetries:      2,
		HandlerRetryBackoff: time.Millisecond,
	})
	ctx := t.Context()

	t.Run("transient failure is retried", func(t *testing.T) {
		calls := 0
		handler := func(context.Context, []byte) error {
			calls++
			if calls < 3 {
				return errors.New("store unavailable")
			}
			return nil
		}

		commits := make([]*kgo.Record, 0, 1)
		record := &kgo.Record{Topic: "item_create", Value: []byte("{}"), Context: ctx}
		require.True(t, kfk.HandleTopic(ctx, &commits, record, handler))
		assert.Equal(t, 3, calls)
		assert.Len(t, commits, 1)
	})

	t.Run("gives up once retries run out", func(t *testing.T) {
		calls := 0
		handler := func(context.Context, []byte) error {
			calls++
			return errors.New("store unavailable")
		}

		commits := make([]*kgo.Record, 0, 1)
		record := &kgo.Record{Topic: "item_create", Value: []byte("{}"), Context: ctx}
		require.False(t, kfk.HandleTopic(ctx, &commits, record, handler))
		assert.Equal(t, 3, calls)
		assert.Empty(t, commits)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		handler := func(context.Context, []byte) error {
			calls++
			return errors.New("store unavailable")
		}

		commits := make([]*kgo.Record, 0, 1)
		record := &kgo.Record{Topic: "item_create", Value: []byte("{}"), Context: cctx}
		require.False(t, kfk.HandleTopic(cctx, &commits, record, handler))
		assert.Equal(t, 1, calls)
	})
}

func TestItemCodeKey(t *testing.T) {
	key, err := itemCodeKey(&kgo.Record{Key: []byte("101")})
	require.NoError(t, err)
	assert.Equal(t, "101", key)

	_, err = itemCodeKey(&kgo.Record{Key: []byte("rice")})
	require.Error(t, err)

	_, err = itemCodeKey(&kgo.Record{})
	require.Error(t, err)
}
