package health

import (
	"fmt"

	"github.com/careplus/careplus-go/internal/platform/apperr"
)

// CheckupCandidates lists the selectable checkup dates of a bundle in
// bundle order (most recent first). Records without a date are skipped.
func CheckupCandidates(b Bundle) []CheckupCandidate {
	var out []CheckupCandidate
	for _, rec := range b.Checkups {
		date := stringField(rec, checkupFieldKeys["checkupDate"]...)
		if date == "" {
			continue
		}
		out = append(out, CheckupCandidate{
			Date:         FormatCheckupDate(date),
			HospitalName: stringField(rec, checkupFieldKeys["hospitalName"]...),
		})
	}
	return out
}

// SelectCheckup returns a copy of candidates with exactly the one at index
// selected. Re-selecting moves the mark; two candidates are never selected
// at once.
func SelectCheckup(candidates []CheckupCandidate, index int) ([]CheckupCandidate, error) {
	if index < 0 || index >= len(candidates) {
		return nil, fmt.Errorf("checkup index %d out of range (%d candidates)", index, len(candidates))
	}
	out := make([]CheckupCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Selected = i == index
	}
	return out, nil
}

// SelectedCheckup returns the selected candidate. Advancing the wizard
// without one is a validation failure that blocks navigation.
func SelectedCheckup(candidates []CheckupCandidate) (CheckupCandidate, error) {
	for _, c := range candidates {
		if c.Selected {
			return c, nil
		}
	}
	return CheckupCandidate{}, apperr.NewValidation("checkupDate", "검진일을 선택해주세요.")
}
