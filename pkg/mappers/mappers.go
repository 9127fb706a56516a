package mappers

import (
	"context"
	"strings"

	"github.com/careflow/ingest/pkg/utils"
)

// Canonical field names produced by the patient mapper.
const (
	FieldPatientID     = "patient_id"
	FieldFirstName     = "first_name"
	FieldLastName      = "last_name"
	FieldGender        = "gender"
	FieldDOB           = "dob"
	FieldAge           = "age"
	FieldAdmissionDate = "admission_date"
	FieldHospital      = "hospital"
	FieldDoctor        = "doctor"
	FieldCondition     = "medical_condition"
	FieldMedications   = "medications"
	FieldAllergies     = "allergies"
	FieldCity          = "city"
	FieldState         = "state"
	FieldZip           = "zip"
	FieldCountry       = "country"
)

// patientAliases maps each canonical field to the ordered list of source column
// names that may carry it. The first alias holding a non-blank value wins.
var patientAliases = map[string][]string{
	FieldPatientID:     {"PatientID", "patient_id", "id", "ID"},
	FieldFirstName:     {"FirstName", "first_name", "First Name", "firstname"},
	FieldLastName:      {"LastName", "last_name", "Last Name", "lastname"},
	FieldGender:        {"Gender", "sex"},
	FieldDOB:           {"DateOfBirth", "dob", "Date of Birth"},
	FieldAge:           {"Age", "age"},
	FieldAdmissionDate: {"DateOfAdmission", "admission_date", "Date of Admission"},
	FieldHospital:      {"Hospital", "hospital"},
	FieldDoctor:        {"Doctor", "doctor"},
	FieldCondition:     {"MedicalCondition", "Medical Condition", "Condition", "medical_condition"},
	FieldMedications:   {"Medications", "Medication", "medications"},
	FieldAllergies:     {"Allergies", "allergies"},
	FieldCity:          {"Address_City", "City"},
	FieldState:         {"Address_State", "State"},
	FieldZip:           {"Address_Zip", "Zip", "PostalCode"},
	FieldCountry:       {"Country", "country"},
}

// combinedNameAliases is consulted only when neither first nor last name
// resolves through the discrete columns.
var combinedNameAliases = []string{"Name", "name", "FullName", "Full Name"}

// AliasMapper resolves raw source columns to canonical field names through
// ordered alias lists.
type AliasMapper struct {
	aliases map[string][]string
}

func NewPatientMapper() *AliasMapper {
	return &AliasMapper{aliases: patientAliases}
}

func (am *AliasMapper) Name() string {
	return "PatientAliasMapper"
}

// Map resolves every canonical field from the raw row. Fields with no
// resolvable source value are simply absent from the output; there is no
// error path for missing data.
func (am *AliasMapper) Map(_ context.Context, rec utils.Record) (utils.Record, error) {
	out := make(utils.Record, len(am.aliases))
	for field, candidates := range am.aliases {
		if v, ok := firstNonBlank(rec, candidates); ok {
			out[field] = v
		}
	}
	_, hasFirst := out[FieldFirstName]
	_, hasLast := out[FieldLastName]
	if !hasFirst && !hasLast {
		if v, ok := firstNonBlank(rec, combinedNameAliases); ok {
			first, last := SplitName(utils.String(v))
			if first != "" {
				out[FieldFirstName] = first
			}
			if last != "" {
				out[FieldLastName] = last
			}
		}
	}
	return out, nil
}

func firstNonBlank(rec utils.Record, candidates []string) (any, bool) {
	for _, key := range candidates {
		if v, ok := rec[key]; ok && !utils.IsBlank(v) {
			return v, true
		}
	}
	return nil, false
}

// SplitName splits a combined full name on whitespace. The last token is the
// last name; everything before it is the first name. A single token is a
// first name with no last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
