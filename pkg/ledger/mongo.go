package ledger

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoLedger keeps the ledger in a dedicated collection, one document per
// processed file.
type MongoLedger struct {
	col *mongo.Collection
}

func NewMongoLedger(col *mongo.Collection) *MongoLedger {
	return &MongoLedger{col: col}
}

func (ml *MongoLedger) HasProcessed(ctx context.Context, file, sha256 string) (bool, error) {
	err := ml.col.FindOne(ctx, bson.M{"file": file, "sha256": sha256}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (ml *MongoLedger) Record(ctx context.Context, entry Entry) error {
	_, err := ml.col.InsertOne(ctx, entry)
	return err
}
