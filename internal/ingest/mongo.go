package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource streams events out of a MongoDB collection.
type MongoSource struct {
	URI        string
	Database   string
	Collection string

	client *mongo.Client
	cursor *mongo.Cursor
}

type eventDoc struct {
	EventTime    time.Time `bson:"event_time"`
	EventType    string    `bson:"event_type"`
	ProductID    int64     `bson:"product_id"`
	CategoryID   int64     `bson:"category_id"`
	CategoryCode string    `bson:"category_code,omitempty"`
	Brand        string    `bson:"brand,omitempty"`
	Price        float64   `bson:"price"`
	UserID       int64     `bson:"user_id"`
	UserSession  string    `bson:"user_session,omitempty"`
}

func (ms *MongoSource) Name() string {
	return "mongo"
}

func (ms *MongoSource) Open(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(ms.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "event_time", Value: 1}})
	cursor, err := client.Database(ms.Database).Collection(ms.Collection).Find(ctx, bson.M{}, findOpts)
	if err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("failed to open cursor on %s.%s: %w", ms.Database, ms.Collection, err)
	}

	ms.client = client
	ms.cursor = cursor
	return nil
}

func (ms *MongoSource) Next(ctx context.Context, batch []Event) (int, error) {
	n := 0
	for n < len(batch) {
		if !ms.cursor.Next(ctx) {
			if err := ms.cursor.Err(); err != nil {
				return n, err
			}
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}

		var doc eventDoc
		if err := ms.cursor.Decode(&doc); err != nil {
			return n, err
		}
		batch[n] = Event{
			EventTime:    doc.EventTime,
			EventType:    doc.EventType,
			ProductID:    doc.ProductID,
			CategoryID:   doc.CategoryID,
			CategoryCode: doc.CategoryCode,
			Brand:        doc.Brand,
			Price:        doc.Price,
			UserID:       doc.UserID,
			UserSession:  doc.UserSession,
		}
		n++
	}
	return n, nil
}

func (ms *MongoSource) Close() error {
	ctx := context.Background()
	if ms.cursor != nil {
		ms.cursor.Close(ctx)
	}
	if ms.client != nil {
		return ms.client.Disconnect(ctx)
	}
	return nil
}
