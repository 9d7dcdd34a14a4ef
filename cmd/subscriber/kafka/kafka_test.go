package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/naughtygopher/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/prashantkr001/inventory-api/internal/api"
	"github.com/prashantkr001/inventory-api/internal/item"
	"github.com/prashantkr001/inventory-api/internal/pkg/kafka"
)

type itemStore interface {
	ExistsByCode(ctx context.Context, code int) (bool, error)
	SaveItem(ctx context.Context, itm item.Item) (*item.Item, error)
	ItemByCode(ctx context.Context, code int) (*item.Item, error)
	ListItems(ctx context.Context) ([]item.Item, error)
	DeleteByCode(ctx context.Context, code int) error
}

// unavailableStore fails every save of failCode
type unavailableStore struct {
	itemStore
	failCode int
}

func (ustore *unavailableStore) SaveItem(ctx context.Context, itm item.Item) (*item.Item, error) {
	if itm.Code == ustore.failCode {
		return nil, errors.New("store unavailable")
	}
	return ustore.itemStore.SaveItem(ctx, itm)
}

// fakeConsumer handles records without retries and keeps track of rewinds
type fakeConsumer struct {
	rewound []*kgo.Record
}

func (fc *fakeConsumer) PollFetches(context.Context) kgo.Fetches {
	return nil
}

func (fc *fakeConsumer) CommitRecords(context.Context, ...*kgo.Record) error {
	return nil
}

func (fc *fakeConsumer) HandleTopic(ctx context.Context, commitRecords *[]*kgo.Record, record *kgo.Record, fn kafka.Handler) bool {
	if fn(ctx, record.Value) != nil {
		return false
	}
	*commitRecords = append(*commitRecords, record)
	return true
}

func (fc *fakeConsumer) Rewind(records ...*kgo.Record) {
	fc.rewound = append(fc.rewound, records...)
}

func (fc *fakeConsumer) Shutdown(context.Context) error {
	return nil
}

func itemRecord(t *testing.T, partition int32, offset int64, code int) *kgo.Record {
	t.Helper()
	payload, err := json.Marshal(item.Item{Code: code, Name: "Grain", Quantity: 1})
	require.NoError(t, err)
	return &kgo.Record{Topic: "item_add", Partition: partition, Offset: offset, Value: payload}
}

func fetchesOf(topic string, partitions map[int32][]*kgo.Record) kgo.Fetches {
	ftopic := kgo.FetchTopic{Topic: topic}
	for partition, records := range partitions {
		ftopic.Partitions = append(ftopic.Partitions, kgo.FetchPartition{Partition: partition, Records: records})
	}
	return kgo.Fetches{{Topics: []kgo.FetchTopic{ftopic}}}
}

func TestHandleRecordsStopsPartitionAtFailure(t *testing.T) {
	svc, err := item.NewService(&unavailableStore{itemStore: item.NewMemoryPersistentStore(), failCode: 13})
	require.NoError(t, err)
	apiSvc := api.NewService(svc)

	consumer := &fakeConsumer{}
	kfk := &Kafka{client: consumer, apiSvc: apiSvc, locker: &sync.Mutex{}, topicItemAdd: "item_add"}

	p0Handled := itemRecord(t, 0, 10, 1)
	p0Failed := itemRecord(t, 0, 11, 13)
	p0After := itemRecord(t, 0, 12, 2)
	p1Handled := itemRecord(t, 1, 20, 3)

	ctx := context.Background()
	commits := kfk.handleRecords(ctx, fetchesOf("item_add", map[int32][]*kgo.Record{
		0: {p0Handled, p0Failed, p0After},
		1: {p1Handled},
	}))

	assert.ElementsMatch(t, []*kgo.Record{p0Handled, p1Handled}, commits)
	require.Len(t, consumer.rewound, 1)
	assert.Same(t, p0Failed, consumer.rewound[0])

	// records after the failure are left for the next poll
	found, err := apiSvc.ItemByCode(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = apiSvc.ItemByCode(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestHandleRecordsWithoutFailures(t *testing.T) {
	consumer := &fakeConsumer{}
	kfk, _ := newSubscriber(t)
	kfk.client = consumer

	records := []*kgo.Record{itemRecord(t, 0, 0, 1), itemRecord(t, 0, 1, 2)}
	other := &kgo.Record{Topic: "unknown", Partition: 0, Offset: 5, Value: []byte("ignored")}

	commits := kfk.handleRecords(context.Background(), fetchesOf("item_add", map[int32][]*kgo.Record{0: records}))
	commits = append(commits, kfk.handleRecords(context.Background(), fetchesOf("unknown", map[int32][]*kgo.Record{0: {other}}))...)

	assert.Equal(t, append(records, other), commits)
	assert.Empty(t, consumer.rewound)
}
