package health

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/careplus/careplus-go/internal/platform/backend"
)

// MedicationRecord is one prescription row from the aggregator.
type MedicationRecord struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Text returns the searchable text of the record.
func (m MedicationRecord) Text() string {
	if m.Description == "" {
		return m.Name
	}
	return m.Name + " " + m.Description
}

// Bundle is the parsed aggregated health bundle: checkup records in
// most-recent-first order plus the medication list. Raw keeps the original
// response so the bundle can be re-derived after a restart.
type Bundle struct {
	Checkups    []map[string]any
	Medications []MedicationRecord
	Raw         json.RawMessage
}

// Field name candidates per canonical checkup field. The aggregator emits
// NHIS Korean labels; some backend builds romanize them. First match wins.
var checkupFieldKeys = map[string][]string{
	"height":        {"height", "신장", "키"},
	"weight":        {"weight", "체중"},
	"bloodPressure": {"bloodPressure", "혈압"},
	"bloodSugar":    {"bloodSugar", "혈당", "공복혈당"},
	"creatinine":    {"creatinine", "혈청크레아티닌", "크레아티닌"},
	"eGFR":          {"eGFR", "egfr", "신사구체여과율"},
	"checkupDate":   {"checkupDate", "검진일자", "검진일"},
	"hospitalName":  {"hospitalName", "검진기관명", "검진기관", "기관명"},
}

// ParseBundle extracts the checkup and medication sequences from the backend
// response. The upstream shape is not strictly typed: each payload may be a
// sequence, a single record, or absent. Nothing here ever fails; unusable
// input yields an empty bundle.
func ParseBundle(resp *backend.HealthDataResponse) Bundle {
	b := Bundle{}
	if resp == nil {
		return b
	}
	b.Checkups = parseRecords(resp.HealthCheckupData)
	b.Medications = parseMedications(resp.MedicationData)
	if raw, err := json.Marshal(resp); err == nil {
		b.Raw = raw
	}
	return b
}

// parseRecords accepts a JSON array of objects, a single object, or an
// object wrapping the array under ResultList.
func parseRecords(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil
	}
	if inner, ok := single["ResultList"]; ok {
		if innerRaw, err := json.Marshal(inner); err == nil {
			if wrapped := parseRecords(innerRaw); wrapped != nil {
				return wrapped
			}
		}
	}
	return []map[string]any{single}
}

func parseMedications(raw json.RawMessage) []MedicationRecord {
	var out []MedicationRecord
	for _, rec := range parseRecords(raw) {
		name := stringField(rec, "name", "처방약품명", "약품명", "medicationName")
		desc := stringField(rec, "description", "약품효능", "효능")
		if name == "" && desc == "" {
			continue
		}
		out = append(out, MedicationRecord{Name: name, Description: desc})
	}
	if out != nil {
		return out
	}
	// Some builds send a bare array of name strings.
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		for _, n := range names {
			if n != "" {
				out = append(out, MedicationRecord{Name: n})
			}
		}
	}
	return out
}

// Latest returns the first checkup record, assumed most recent. Nil when the
// bundle has none.
func (b Bundle) Latest() map[string]any {
	if len(b.Checkups) == 0 {
		return nil
	}
	return b.Checkups[0]
}

// StringField reads the named canonical field from the latest checkup record
// as display text. Absent sources yield "".
func (b Bundle) StringField(field string) string {
	return stringField(b.Latest(), checkupFieldKeys[field]...)
}

// NumberField reads the named canonical field from the latest checkup record
// as a number. Absent or unparseable values yield nil, never an error.
func (b Bundle) NumberField(field string) *float64 {
	return numberField(b.Latest(), checkupFieldKeys[field]...)
}

// MedicationNames returns the medication names in bundle order.
func (b Bundle) MedicationNames() []string {
	names := make([]string, 0, len(b.Medications))
	for _, m := range b.Medications {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

func stringField(rec map[string]any, keys ...string) string {
	if rec == nil {
		return ""
	}
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func numberField(rec map[string]any, keys ...string) *float64 {
	if rec == nil {
		return nil
	}
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			f := t
			return &f
		case string:
			// Values arrive with units attached ("55.0 mL/min"); take the
			// leading numeric run.
			if f, ok := leadingNumber(t); ok {
				return &f
			}
		}
	}
	return nil
}

func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || (end == 0 && s[end] == '-')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatCheckupDate renders an 8-digit checkup date as YYYY.MM.DD; anything
// else passes through unchanged.
func FormatCheckupDate(s string) string {
	digits := s
	if len(digits) == 8 {
		allDigits := true
		for i := 0; i < 8; i++ {
			if digits[i] < '0' || digits[i] > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return digits[:4] + "." + digits[4:6] + "." + digits[6:]
		}
	}
	return s
}
