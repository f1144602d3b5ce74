package health

import (
	"encoding/json"
	"testing"

	"github.com/careplus/careplus-go/internal/platform/backend"
)

func TestParseBundle_SequenceTakesFirst(t *testing.T) {
	resp := &backend.HealthDataResponse{
		HealthCheckupData: json.RawMessage(`[
			{"신사구체여과율": "55", "검진일자": "20230726"},
			{"신사구체여과율": "80", "검진일자": "20210310"}
		]`),
	}
	b := ParseBundle(resp)
	if len(b.Checkups) != 2 {
		t.Fatalf("got %d checkups", len(b.Checkups))
	}
	egfr := b.NumberField("eGFR")
	if egfr == nil || *egfr != 55 {
		t.Errorf("got eGFR %v, want first record's 55", egfr)
	}
}

func TestParseBundle_SingleRecord(t *testing.T) {
	resp := &backend.HealthDataResponse{
		HealthCheckupData: json.RawMessage(`{"eGFR": 72.5, "checkupDate": "20220101"}`),
	}
	b := ParseBundle(resp)
	egfr := b.NumberField("eGFR")
	if egfr == nil || *egfr != 72.5 {
		t.Errorf("got eGFR %v", egfr)
	}
}

func TestParseBundle_ResultListWrapper(t *testing.T) {
	resp := &backend.HealthDataResponse{
		MedicationData: json.RawMessage(`{"ResultList": [{"처방약품명": "메트포르민", "약품효능": "당뇨병용제"}]}`),
	}
	b := ParseBundle(resp)
	if len(b.Medications) != 1 {
		t.Fatalf("got %d medications", len(b.Medications))
	}
	if b.Medications[0].Name != "메트포르민" || b.Medications[0].Description != "당뇨병용제" {
		t.Errorf("got %+v", b.Medications[0])
	}
}

func TestParseBundle_MedicationNameStrings(t *testing.T) {
	resp := &backend.HealthDataResponse{
		MedicationData: json.RawMessage(`["암로디핀정", "타이레놀"]`),
	}
	b := ParseBundle(resp)
	if len(b.Medications) != 2 || b.Medications[0].Name != "암로디핀정" {
		t.Errorf("got %+v", b.Medications)
	}
}

func TestParseBundle_AbsentAndGarbage(t *testing.T) {
	b := ParseBundle(nil)
	if b.Latest() != nil || len(b.Medications) != 0 {
		t.Error("nil response should yield empty bundle")
	}

	b = ParseBundle(&backend.HealthDataResponse{
		HealthCheckupData: json.RawMessage(`"not an object"`),
		MedicationData:    json.RawMessage(`42`),
	})
	if b.NumberField("eGFR") != nil {
		t.Error("garbage input should yield absent fields, not values")
	}
	if b.StringField("hospitalName") != "" {
		t.Error("garbage input should yield empty strings")
	}
}

func TestNumberField_UnitSuffixAndNull(t *testing.T) {
	resp := &backend.HealthDataResponse{
		HealthCheckupData: json.RawMessage(`[{"신사구체여과율": "55.0 mL/min/1.73m2", "체중": null}]`),
	}
	b := ParseBundle(resp)
	egfr := b.NumberField("eGFR")
	if egfr == nil || *egfr != 55 {
		t.Errorf("got %v, want 55 from suffixed value", egfr)
	}
	if b.NumberField("weight") != nil {
		t.Error("null value should be absent")
	}
}

func TestFormatCheckupDate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"20230726", "2023.07.26"},
		{"2023.07.26", "2023.07.26"},
		{"2023-07", "2023-07"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FormatCheckupDate(tc.in); got != tc.want {
			t.Errorf("FormatCheckupDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCheckupCandidates(t *testing.T) {
	resp := &backend.HealthDataResponse{
		HealthCheckupData: json.RawMessage(`[
			{"검진일자": "20230726", "검진기관명": "서울의료원"},
			{"검진기관명": "기관만 있음"},
			{"검진일자": "20210310"}
		]`),
	}
	got := CheckupCandidates(ParseBundle(resp))
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want dateless record skipped", len(got))
	}
	if got[0].Date != "2023.07.26" || got[0].HospitalName != "서울의료원" {
		t.Errorf("got %+v", got[0])
	}
}

func TestSelectCheckup_ExactlyOne(t *testing.T) {
	candidates := []CheckupCandidate{{Date: "2023.07.26"}, {Date: "2021.03.10"}, {Date: "2019.05.01"}}

	first, err := SelectCheckup(candidates, 0)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// Re-selecting moves the mark.
	second, err := SelectCheckup(first, 2)
	if err != nil {
		t.Fatalf("reselect: %v", err)
	}

	selectedCount := 0
	for _, c := range second {
		if c.Selected {
			selectedCount++
		}
	}
	if selectedCount != 1 {
		t.Errorf("got %d selected, want exactly one", selectedCount)
	}
	if !second[2].Selected {
		t.Error("expected index 2 selected after reselect")
	}

	if _, err := SelectCheckup(candidates, 5); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestSelectedCheckup_NoneIsValidationError(t *testing.T) {
	_, err := SelectedCheckup([]CheckupCandidate{{Date: "2023.07.26"}})
	if err == nil {
		t.Fatal("expected error when nothing selected")
	}
}
