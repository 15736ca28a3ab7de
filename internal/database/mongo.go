package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"invitetrack/internal/config"
)

// MongoDB stores table rows as {_id: key, v: value} documents, one
// collection per table. It satisfies the key-value contract the counter
// store declares: Connect, Get, Set, Find.
type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string

	mu        sync.Mutex
	connected bool
}

type envelope struct {
	ID string   `bson:"_id"`
	V  bson.Raw `bson:"v"`
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	password := conf.Mongo.Password
	if password == "" && conf.Store.Encrypt {
		// store security key doubles as the auth secret when no explicit
		// password is configured; file-store options do not apply here
		password = conf.Store.SecurityKey
	}
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

// Connect verifies the server is reachable. Idempotent: repeated calls after
// a successful ping are no-ops.
func (m *MongoDB) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)
	if err = connection.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping: %w", err)
	}
	m.connected = true
	return nil
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) Get(ctx context.Context, table, key string, out interface{}) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(table)
	filter := bson.D{{Key: "_id", Value: key}}
	var doc envelope
	err = collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongodb find: %w", err)
	}
	if err = bson.Unmarshal(doc.V, out); err != nil {
		return false, fmt.Errorf("mongodb decode: %w", err)
	}
	return true, nil
}

func (m *MongoDB) Set(ctx context.Context, table, key string, value interface{}) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	raw, err := bson.Marshal(value)
	if err != nil {
		return fmt.Errorf("mongodb encode: %w", err)
	}
	collection := connection.Database(m.database).Collection(table)
	filter := bson.D{{Key: "_id", Value: key}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "v", Value: bson.Raw(raw)}}}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb set: %w", err)
	}
	return nil
}

// Find scans the table and decodes the first row the match function accepts
// into out. Returns false when nothing matched.
func (m *MongoDB) Find(ctx context.Context, table string, match func(key string, value bson.Raw) bool, out interface{}) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(table)
	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("mongodb scan: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc envelope
		if err = cursor.Decode(&doc); err != nil {
			return false, fmt.Errorf("mongodb decode: %w", err)
		}
		if !match(doc.ID, doc.V) {
			continue
		}
		if err = bson.Unmarshal(doc.V, out); err != nil {
			return false, fmt.Errorf("mongodb decode: %w", err)
		}
		return true, nil
	}
	if err = cursor.Err(); err != nil {
		return false, fmt.Errorf("mongodb scan: %w", err)
	}
	return false, nil
}
