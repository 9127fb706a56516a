package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/careflow/ingest/pkg/utils"
)

// Querier is the read-only slice of the document store the report consumes.
type Querier interface {
	CountDocuments(ctx context.Context, filter any) (int64, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]utils.Record, error)
	Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]utils.Record, error)
}

// Options parameterize the five fixed queries.
type Options struct {
	Cutoff       time.Time
	AgeThreshold int
	FirstName    string
	Medication   string
	Limit        int64
}

// DefaultOptions mirror the report's historical parameters.
func DefaultOptions() Options {
	return Options{
		Cutoff:       time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		AgeThreshold: 50,
		FirstName:    "Thomas",
		Medication:   "Lipitor",
		Limit:        50,
	}
}

// Runner issues the five analytical queries and renders a deterministic
// markdown report.
type Runner struct {
	q    Querier
	opts Options
}

func NewRunner(q Querier, opts Options) *Runner {
	return &Runner{q: q, opts: opts}
}

// Build runs the queries and returns the report body.
func (r *Runner) Build(ctx context.Context) (string, error) {
	var lines []string
	w := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	w("# Query Results")
	w("")

	total, err := r.q.CountDocuments(ctx, bson.M{})
	if err != nil {
		return "", fmt.Errorf("total count: %w", err)
	}
	w("**1) Total patients (documents)**: %d", total)
	w("")

	admitted, err := r.q.Find(ctx,
		bson.M{"admission.date": bson.M{"$gt": r.opts.Cutoff}},
		options.Find().
			SetProjection(bson.M{"_id": 0, "name": 1, "admission.date": 1}).
			SetLimit(r.opts.Limit))
	if err != nil {
		return "", fmt.Errorf("admissions after cutoff: %w", err)
	}
	w("**2) Patients admitted after %s (first %d):**", r.opts.Cutoff.Format("2006-01-02"), r.opts.Limit)
	for _, rec := range admitted {
		name := subdoc(rec["name"])
		admission := subdoc(rec["admission"])
		w("- %s %s — %s", field(name, "first"), field(name, "last"), fmtDate(admission["date"]))
	}
	w("")

	over, err := r.q.CountDocuments(ctx, bson.M{"age": bson.M{"$gt": r.opts.AgeThreshold}})
	if err != nil {
		return "", fmt.Errorf("age threshold count: %w", err)
	}
	w("**3a) Patients older than %d**: %d", r.opts.AgeThreshold, over)

	named, err := r.q.CountDocuments(ctx, bson.M{
		"name.first": primitive.Regex{Pattern: "^" + r.opts.FirstName + "$", Options: "i"},
	})
	if err != nil {
		return "", fmt.Errorf("first name count: %w", err)
	}
	w("**3b) Patients with first name '%s'**: %d", r.opts.FirstName, named)

	conditions, err := r.q.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"medical_condition": bson.M{"$ne": nil}}}},
		bson.D{{Key: "$group", Value: bson.M{"_id": "$medical_condition", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return "", fmt.Errorf("condition counts: %w", err)
	}
	w("**3c) Patients per Medical Condition:**")
	for _, rec := range conditions {
		w("- %v: %v", rec["_id"], rec["count"])
	}
	w("")

	medications, err := r.q.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$unwind", Value: "$medications"}},
		bson.D{{Key: "$group", Value: bson.M{"_id": bson.M{"$toUpper": "$medications.name"}, "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return "", fmt.Errorf("medication counts: %w", err)
	}
	w("**4) Medication usage frequency:**")
	for _, rec := range medications {
		w("- %v: %v", rec["_id"], rec["count"])
	}
	w("")

	takers, err := r.q.Find(ctx,
		bson.M{"medications.name": primitive.Regex{Pattern: "^" + r.opts.Medication + "$", Options: "i"}},
		options.Find().
			SetProjection(bson.M{"_id": 0, "name": 1, "age": 1, "medical_condition": 1, "medications": 1}).
			SetLimit(r.opts.Limit))
	if err != nil {
		return "", fmt.Errorf("medication lookup: %w", err)
	}
	w("**5) Patients taking '%s' (first %d):**", r.opts.Medication, r.opts.Limit)
	for _, rec := range takers {
		name := subdoc(rec["name"])
		w("- %s %s — age %s, condition: %s",
			field(name, "first"), field(name, "last"),
			fieldAny(rec, "age"), fieldAny(rec, "medical_condition"))
	}
	w("")

	return strings.Join(lines, "\n"), nil
}

// Write builds the report and writes it to path, creating parent directories.
func (r *Runner) Write(ctx context.Context, path string) error {
	body, err := r.Build(ctx)
	if err != nil {
		return err
	}
	return Save(path, body)
}

// Save writes an already-built report body to path.
func Save(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0644)
}

func subdoc(v any) utils.Record {
	switch m := v.(type) {
	case utils.Record:
		return m
	case bson.M:
		return utils.Record(m)
	case bson.D:
		return utils.Record(m.Map())
	}
	return nil
}

func field(rec utils.Record, key string) string {
	if rec == nil {
		return "?"
	}
	return fieldAny(rec, key)
}

func fieldAny(rec utils.Record, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return "?"
	}
	return fmt.Sprintf("%v", v)
}

func fmtDate(v any) string {
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format("2006-01-02 15:04:05")
	case primitive.DateTime:
		return d.Time().UTC().Format("2006-01-02 15:04:05")
	case nil:
		return "?"
	default:
		return fmt.Sprintf("%v", v)
	}
}
