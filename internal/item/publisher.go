package item

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/prashantkr001/inventory-api/internal/pkg/kafka"
	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

type EventType string

const (
	EventItemSaved   EventType = "item.saved"
	EventItemDeleted EventType = "item.deleted"
)

// Event is published after every successful change to the store.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Code       int       `json:"code"`
	Item       *Item     `json:"item,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func newEvent(etype EventType, code int, item *Item) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       etype,
		Code:       code,
		Item:       item,
		OccurredAt: time.Now().UTC(),
	}
}

type publisher interface {
	Publish(ctx context.Context, event *Event) error
}

type kafkaItemPublisher struct {
	cli         *kafka.Kafka
	eventsTopic string
}

func NewKafkaItemPublisher(
	kcli *kafka.Kafka,
	pubTopic string,
) (*kafkaItemPublisher, error) { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	if pubTopic == "" {
		return nil, errors.Validation("events topic is required")
	}
	return &kafkaItemPublisher{
		cli:         kcli,
		eventsTopic: pubTopic,
	}, nil
}

func (kip *kafkaItemPublisher) Publish(ctx context.Context, event *Event) error {
	jbytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "json marshal failed")
	}

	// keyed by item code so all events of an item land on the same partition, in order
	err = kip.cli.ProduceSync(ctx, &kgo.Record{
		Key:   []byte(strconv.Itoa(event.Code)),
		Value: jbytes,
		Topic: kip.eventsTopic,
	})
	if err != nil {
		return errors.Wrap(err, "kafka produce sync failed")
	}

	return nil
}

// publishingStore announces every successful save and delete of the wrapped store.
// Publishing is asynchronous and its failures are only logged.
type publishingStore struct {
	persistentStore
	publisher publisher
	timeout   time.Duration
}

func NewPublishingStore(store persistentStore, pub publisher) *publishingStore { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	const publishTimeout = time.Second * 3
	return &publishingStore{
		persistentStore: store,
		publisher:       pub,
		timeout:         publishTimeout,
	}
}

func (ps *publishingStore) publish(event *Event) {
	// since this is asynchronous, maybe implement some retry logic if required
	go func() {
		gctx, cancel := context.WithTimeout(context.Background(), ps.timeout)
		defer cancel()

		perr := ps.publisher.Publish(gctx, event)
		if perr != nil {
			logger.ErrWithStacktrace(perr)
			return
		}
		logger.Debug(
			"published item event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int("code", event.Code),
		)
	}()
}

func (ps *publishingStore) SaveItem(ctx context.Context, item Item) (*Item, error) {
	saved, err := ps.persistentStore.SaveItem(ctx, item)
	if err != nil {
		return nil, err
	}

	evItem := item
	ps.publish(newEvent(EventItemSaved, item.Code, &evItem))

	return saved, nil
}

func (ps *publishingStore) DeleteByCode(ctx context.Context, code int) error {
	err := ps.persistentStore.DeleteByCode(ctx, code)
	if err != nil {
		return err
	}

	ps.publish(newEvent(EventItemDeleted, code, nil))

	return nil
}
