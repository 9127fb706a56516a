package transformers

import (
	"context"
	"strings"
	"time"

	"github.com/careflow/ingest/pkg/mappers"
	"github.com/careflow/ingest/pkg/utils"
)

// CanonicalBuilder assembles the canonical patient document from a mapped
// record: value normalization, nested structure, provenance stamps, and the
// recursive prune that removes every empty leaf and branch.
type CanonicalBuilder struct {
	SourceFile string
	Now        func() time.Time
}

func NewCanonicalBuilder(sourceFile string) *CanonicalBuilder {
	return &CanonicalBuilder{SourceFile: sourceFile, Now: func() time.Time { return time.Now().UTC() }}
}

func (cb *CanonicalBuilder) Name() string {
	return "CanonicalBuilder"
}

func (cb *CanonicalBuilder) Transform(_ context.Context, rec utils.Record) (utils.Record, error) {
	doc := utils.Record{
		"patient_id": utils.String(rec[mappers.FieldPatientID]),
		"name": utils.Record{
			"first": TitleCase(utils.String(rec[mappers.FieldFirstName])),
			"last":  TitleCase(utils.String(rec[mappers.FieldLastName])),
		},
		"gender": TitleCase(utils.String(rec[mappers.FieldGender])),
		"admission": utils.Record{
			"hospital": TitleCase(utils.String(rec[mappers.FieldHospital])),
			"doctor":   TitleCase(utils.String(rec[mappers.FieldDoctor])),
		},
		"medical_condition": TitleCase(utils.String(rec[mappers.FieldCondition])),
		"address": utils.Record{
			"city":    TitleCase(utils.String(rec[mappers.FieldCity])),
			"state":   strings.ToUpper(utils.String(rec[mappers.FieldState])),
			"zip":     utils.String(rec[mappers.FieldZip]),
			"country": TitleCase(utils.String(rec[mappers.FieldCountry])),
		},
		"source_file": cb.SourceFile,
		"ingested_at": cb.Now(),
	}
	if dob, ok := ParseDate(rec[mappers.FieldDOB]); ok {
		doc["dob"] = dob
	}
	if doa, ok := ParseDate(rec[mappers.FieldAdmissionDate]); ok {
		doc["admission"].(utils.Record)["date"] = doa
	}
	if age, ok := ParseAge(rec[mappers.FieldAge]); ok {
		doc["age"] = age
	}
	if meds := ParseMedications(rec[mappers.FieldMedications]); len(meds) > 0 {
		entries := make([]any, 0, len(meds))
		for _, m := range meds {
			entry := utils.Record{"name": m.Name}
			if m.Dosage != "" {
				entry["dosage"] = m.Dosage
			}
			entries = append(entries, entry)
		}
		doc["medications"] = entries
	}
	if allergies := SplitList(rec[mappers.FieldAllergies]); len(allergies) > 0 {
		items := make([]any, len(allergies))
		for i, a := range allergies {
			items[i] = a
		}
		doc["allergies"] = items
	}
	return utils.PruneRecord(doc), nil
}
