package transformers

import (
	"regexp"
	"strings"

	"github.com/careflow/ingest/pkg/utils"
)

// Medication is one entry in a patient's medication list.
type Medication struct {
	Name   string
	Dosage string
}

// medPattern separates a leading drug name from an optional trailing dosage
// (number plus unit). Letters, internal spaces, hyphens and slashes form the
// name. A token that does not fit the pattern degrades to name-only; a drug
// name containing digits is deliberately not second-guessed.
var medPattern = regexp.MustCompile(`^\s*([A-Za-z][\w\s\-/]*?)(?:\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml)))?\s*$`)

// ParseMedications splits a free-text medication field on |, ; or , and
// parses each token into name plus optional dosage. Blank input yields nil.
func ParseMedications(v any) []Medication {
	s := utils.String(v)
	if s == "" {
		return nil
	}
	parts := listSplitter.Split(s, -1)
	meds := make([]Medication, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if m := medPattern.FindStringSubmatch(p); m != nil {
			meds = append(meds, Medication{
				Name:   strings.TrimSpace(m[1]),
				Dosage: strings.TrimSpace(m[2]),
			})
			continue
		}
		meds = append(meds, Medication{Name: p})
	}
	return meds
}
