package item

import (
	"context"

	"github.com/naughtygopher/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// persistentStore is the keyed CRUD contract the service depends on. Implementations must
// return ErrNotFound from ItemByCode when there's no item with the code.
type persistentStore interface {
	ExistsByCode(ctx context.Context, code int) (bool, error)
	SaveItem(ctx context.Context, item Item) (*Item, error)
	ItemByCode(ctx context.Context, code int) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	DeleteByCode(ctx context.Context, code int) error
}

type mongoItemStore struct {
	mongoDriver    *mongo.Database
	itemCollection *mongo.Collection
}

func NewMongoPersistentStore(client *mongo.Database) (*mongoItemStore, error) { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	istore := &mongoItemStore{
		mongoDriver:    client,
		itemCollection: client.Collection("items"),
	}
	return istore, nil
}

// EnsureIndexes creates the unique index on item code. It is safe to call on every startup.
func (istore *mongoItemStore) EnsureIndexes(ctx context.Context) error {
	_, err := istore.itemCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_code"),
	})
	if err != nil {
		return errors.Wrap(err, "could not create items index")
	}
	return nil
}

func (istore *mongoItemStore) ExistsByCode(ctx context.Context, code int) (bool, error) {
	count, err := istore.itemCollection.CountDocuments(
		ctx,
		bson.M{"code": bson.M{"$eq": code}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, errors.Wrap(err, "could not check item existence")
	}

	return count > 0, nil
}

// SaveItem upserts the item keyed by its code.
func (istore *mongoItemStore) SaveItem(ctx context.Context, item Item) (*Item, error) {
	_, err := istore.itemCollection.ReplaceOne(
		ctx,
		bson.M{"code": bson.M{"$eq": item.Code}},
		item,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not save the item")
	}

	return &item, nil
}

func (istore *mongoItemStore) ItemByCode(ctx context.Context, code int) (*Item, error) {
	result := istore.itemCollection.FindOne(ctx, bson.M{"code": bson.M{"$eq": code}})
	item := new(Item)
	err := result.Decode(item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed getting item")
	}

	return item, nil
}

func (istore *mongoItemStore) ListItems(ctx context.Context) ([]Item, error) {
	result, err := istore.itemCollection.Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "code", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch items")
	}

	list := make([]Item, 0)
	err = result.All(ctx, &list)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch items")
	}

	return list, nil
}

func (istore *mongoItemStore) DeleteByCode(ctx context.Context, code int) error {
	_, err := istore.itemCollection.DeleteOne(ctx, bson.M{"code": bson.M{"$eq": code}})
	if err != nil {
		return errors.Wrap(err, "could not delete the item")
	}

	return nil
}
