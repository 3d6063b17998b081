package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rl1809/vending-ledger/internal/port"
)

const ledgerCollection = "ledger_kv"

type mongoEntry struct {
	Key     string `bson:"_id"`
	Value   []byte `bson:"v"`
	Version int64  `bson:"version"`
}

// MongoStore stores one document per key and updates it by compare-and-swap
// on the version field.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(ledgerCollection),
	}
}

// OpenMongo connects to uri and verifies the connection.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoStore(client, database), nil
}

func (m *MongoStore) load(ctx context.Context, key string) (*mongoEntry, error) {
	var e mongoEntry
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return &e, nil
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := m.load(ctx, key)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

func (m *MongoStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "v", Value: value}}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, key string, fn port.UpdateFunc) ([]byte, error) {
	for i := 0; i < maxUpdateRetry; i++ {
		next, err := m.tryUpdate(ctx, key, fn)
		if !errors.Is(err, ErrOptimisticLock) {
			return next, err
		}
		if err := backoff(ctx, i); err != nil {
			return nil, err
		}
	}
	return nil, port.ErrConflict
}

func (m *MongoStore) tryUpdate(ctx context.Context, key string, fn port.UpdateFunc) ([]byte, error) {
	e, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}

	var cur []byte
	if e != nil {
		cur = e.Value
	}
	next, err := fn(cur, e != nil)
	if err != nil {
		return nil, err
	}

	if e == nil {
		_, err := m.coll.InsertOne(ctx, mongoEntry{Key: key, Value: next, Version: 1})
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrOptimisticLock
		}
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", key, err)
		}
		return next, nil
	}

	res, err := m.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: key}, {Key: "version", Value: e.Version}},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "v", Value: next}}},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrOptimisticLock
	}
	return next, nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
