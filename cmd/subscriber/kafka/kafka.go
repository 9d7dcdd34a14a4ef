// Package kafka is responsible for all subscription interfaces with Kafka
// Similar to the HTTP package, this should only have the "handlers" and none of the business logic
package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/prashantkr001/inventory-api/internal/api"
	"github.com/prashantkr001/inventory-api/internal/pkg/kafka"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

type Config struct {
	// TopicItemAdd carries item JSON payloads which are added to the inventory
	TopicItemAdd string
}

// consumer is the part of the kafka client used by the subscriber
type consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, records ...*kgo.Record) error
	HandleTopic(ctx context.Context, commitRecords *[]*kgo.Record, record *kgo.Record, fn kafka.Handler) bool
	Rewind(records ...*kgo.Record)
	Shutdown(ctx context.Context) error
}

type Kafka struct {
	client consumer
	apiSvc *api.API
	// receivedFirstMessage is set to true if the subscriber successfully received
	// a message *ever*
	locker                 *sync.Mutex
	receivedFirstMessageAt *time.Time
	receivedLastMessageAt  *time.Time

	topicItemAdd string
}

func NewService(kfk *kafka.Kafka, apiSvc *api.API, cfg *Config) (*Kafka, error) {
	if cfg.TopicItemAdd == "" {
		return nil, errors.Validation("no topic provided for item subscription")
	}

	kf := &Kafka{
		apiSvc:       apiSvc,
		locker:       &sync.Mutex{},
		topicItemAdd: cfg.TopicItemAdd,
	}
	if kfk != nil {
		kf.client = kfk
	}

	return kf, nil
}

func (kfk *Kafka) Shutdown(ctx context.Context) error {
	if kfk == nil || kfk.client == nil {
		return nil
	}
	return kfk.client.Shutdown(ctx)
}

func (kfk *Kafka) ReceivedFirstMessageAt() *time.Time {
	var t *time.Time
	kfk.locker.Lock()
	defer kfk.locker.Unlock()

	if kfk.receivedFirstMessageAt != nil {
		tt := *kfk.receivedFirstMessageAt
		t = &tt
	}
	return t
}

func (kfk *Kafka) ReceivedLastMessageAt() *time.Time {
	var t *time.Time
	kfk.locker.Lock()
	defer kfk.locker.Unlock()

	if kfk.receivedLastMessageAt != nil {
		tt := *kfk.receivedLastMessageAt
		t = &tt
	}
	return t
}

func (kfk *Kafka) markReceived() {
	kfk.locker.Lock()
	defer kfk.locker.Unlock()

	now := time.Now()
	if kfk.receivedFirstMessageAt == nil {
		kfk.receivedFirstMessageAt = &now
	}
	kfk.receivedLastMessageAt = &now
}

// Subscribe polls until the context is cancelled or a non-retriable fetch error occurs.
func (kfk *Kafka) Subscribe(ctx context.Context) error {
	for {
		fetches := kfk.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			// All errors are retried internally when fetching, but non-retriable errors are
			// returned from polls.
			return errors.Errorf("%+v", errs)
		}

		kfk.markReceived()
		recordCommits := kfk.handleRecords(ctx, fetches)

		err := kfk.client.CommitRecords(ctx, recordCommits...)
		if err != nil {
			// a commit failure is not fatal, the records are redelivered after a rebalance or restart
			logger.ErrWithStacktraceCtx(ctx, err)
		}
	}
}

type topicPartition struct {
	topic     string
	partition int32
}

/*
handleRecords returns the records to be committed. Once a record fails, the rest of its
partition is neither handled nor committed in this poll, and the partition is rewound so
the failed record is fetched again.
*/
func (kfk *Kafka) handleRecords(ctx context.Context, fetches kgo.Fetches) []*kgo.Record {
	iter := fetches.RecordIter()
	recordCommits := make([]*kgo.Record, 0, fetches.NumRecords())
	failed := make(map[topicPartition]*kgo.Record)
	for !iter.Done() {
		record := iter.Next()
		tp := topicPartition{topic: record.Topic, partition: record.Partition}
		if _, blocked := failed[tp]; blocked {
			continue
		}

		switch record.Topic {
		case kfk.topicItemAdd:
			if !kfk.client.HandleTopic(ctx, &recordCommits, record, kfk.ItemAdd) {
				failed[tp] = record
			}
		default:
			// nothing else is subscribed, commit so it is not redelivered
			recordCommits = append(recordCommits, record)
		}
	}

	if len(failed) > 0 {
		rewind := make([]*kgo.Record, 0, len(failed))
		for _, record := range failed {
			rewind = append(rewind, record)
		}
		kfk.client.Rewind(rewind...)
	}

	return recordCommits
}
