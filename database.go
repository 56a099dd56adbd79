package straincrawler

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const checkpointCollection = "checkpoints"

type mongoCheckpoint struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func newMongoCheckpoint(ctx context.Context, uri, database string) (*mongoCheckpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, eris.Wrap(err, "failed to ping MongoDB")
	}

	collection := client.Database(database).Collection(checkpointCollection)
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "run", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = client.Disconnect(ctx)
		return nil, eris.Wrap(err, "could not create index")
	}
	return &mongoCheckpoint{client: client, collection: collection}, nil
}

func (m *mongoCheckpoint) Completed(ctx context.Context, run string) (map[string]bool, error) {
	filter := bson.D{{Key: "run", Value: run}, {Key: "status", Value: true}}
	cursor, err := m.collection.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, eris.Wrap(err, "failed to query checkpoints")
	}
	var entries []CheckpointEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, eris.Wrap(err, "failed to decode checkpoints")
	}
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		done[e.Name] = true
	}
	return done, nil
}

// MarkComplete upserts the entry and bumps its attempts.
func (m *mongoCheckpoint) MarkComplete(ctx context.Context, run, name string) error {
	timeNow := time.Now()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: true},
			{Key: "error", Value: false},
			{Key: "updated_at", Value: timeNow},
		}},
		{Key: "$inc", Value: bson.D{{Key: "attempts", Value: 1}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: timeNow}}},
	}
	return m.upsert(ctx, run, name, update)
}

func (m *mongoCheckpoint) MarkError(ctx context.Context, run, name string, cause error) error {
	timeNow := time.Now()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "error", Value: true},
			{Key: "last_error", Value: cause.Error()},
			{Key: "updated_at", Value: timeNow},
		}},
		{Key: "$inc", Value: bson.D{{Key: "attempts", Value: 1}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "status", Value: false},
			{Key: "created_at", Value: timeNow},
		}},
	}
	return m.upsert(ctx, run, name, update)
}

func (m *mongoCheckpoint) upsert(ctx context.Context, run, name string, update bson.D) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.D{{Key: "run", Value: run}, {Key: "name", Value: name}}
	if _, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return eris.Wrapf(err, "[%s:%s] could not update checkpoint", run, name)
	}
	return nil
}

func (m *mongoCheckpoint) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
