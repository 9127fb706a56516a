package mongoadapter

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careflow/ingest/pkg/contracts"
	"github.com/careflow/ingest/pkg/utils"
)

// Adapter is the document-store loader. Writes are unordered bulk upserts
// keyed on the natural key (patient_id, admission.date); a matched document is
// replaced wholesale, last write wins.
type Adapter struct {
	uri        string
	database   string
	collection string
	client     *mongo.Client
	col        *mongo.Collection
}

func New(uri, database, collection string) *Adapter {
	return &Adapter{uri: uri, database: database, collection: collection}
}

// NewWithCollection wraps an existing collection handle, for callers that
// already hold a connected client.
func NewWithCollection(col *mongo.Collection) *Adapter {
	return &Adapter{col: col}
}

func (a *Adapter) Setup(ctx context.Context) error {
	if a.col != nil {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.uri))
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return err
	}
	a.client = client
	a.col = client.Database(a.database).Collection(a.collection)
	return nil
}

// Collection exposes the underlying handle for read-only collaborators.
func (a *Adapter) Collection() *mongo.Collection {
	return a.col
}

// NaturalKey extracts the upsert filter from a canonical document. Either part
// may be absent; absent parts match documents missing the same field, so rows
// with no id and no admission date collapse onto one upsert target.
func NaturalKey(rec utils.Record) bson.M {
	filter := bson.M{
		"patient_id":     rec["patient_id"],
		"admission.date": nil,
	}
	if admission, ok := rec["admission"].(utils.Record); ok {
		filter["admission.date"] = admission["date"]
	}
	return filter
}

// EnsureIndexes creates the query-path indexes. CreateMany is idempotent, so
// reissuing at every startup is safe.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "patient_id", Value: 1}}},
		{Keys: bson.D{{Key: "admission.date", Value: 1}}},
		{Keys: bson.D{{Key: "medical_condition", Value: 1}}},
		{Keys: bson.D{{Key: "name.first", Value: 1}}},
		{Keys: bson.D{{Key: "medications.name", Value: 1}}},
	}
	_, err := a.col.Indexes().CreateMany(ctx, models)
	return err
}

func (a *Adapter) StoreBatch(ctx context.Context, batch []utils.Record) error {
	if len(batch) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(batch))
	for _, rec := range batch {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(NaturalKey(rec)).
			SetUpdate(bson.M{"$set": rec}).
			SetUpsert(true))
	}
	_, err := a.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (a *Adapter) StoreSingle(ctx context.Context, rec utils.Record) error {
	return a.StoreBatch(ctx, []utils.Record{rec})
}

// CountDocuments counts documents matching the filter.
func (a *Adapter) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return a.col.CountDocuments(ctx, filter)
}

// Find returns matching documents as records.
func (a *Adapter) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]utils.Record, error) {
	cursor, err := a.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeAll(ctx, cursor)
}

// Aggregate runs an aggregation pipeline and returns the results as records.
func (a *Adapter) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]utils.Record, error) {
	cursor, err := a.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeAll(ctx, cursor)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]utils.Record, error) {
	var records []utils.Record
	for cursor.Next(ctx) {
		var rec utils.Record
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, cursor.Err()
}

func (a *Adapter) Close() error {
	if a.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.client.Disconnect(ctx)
	}
	return nil
}

var _ contracts.Loader = (*Adapter)(nil)
