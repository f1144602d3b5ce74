package health

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/careplus/careplus-go/internal/domain/verification"
	"github.com/careplus/careplus-go/internal/platform/backend"
)

func f(v float64) *float64 { return &v }

func TestStageForEGFR(t *testing.T) {
	cases := []struct {
		egfr  *float64
		stage int
	}{
		{nil, 0},
		{f(120), 1},
		{f(90), 1}, // boundary belongs to the better stage
		{f(89.9), 2},
		{f(60), 2},
		{f(59.9), 3},
		{f(55), 3},
		{f(30), 3},
		{f(29.9), 4},
		{f(15), 4},
		{f(14.9), 5},
		{f(5), 5},
	}
	for _, tc := range cases {
		stage, desc := StageForEGFR(tc.egfr)
		if stage != tc.stage {
			t.Errorf("StageForEGFR(%v) = %d, want %d", tc.egfr, stage, tc.stage)
		}
		if desc == "" {
			t.Errorf("StageForEGFR(%v): empty description", tc.egfr)
		}
	}
}

func TestStageForEGFR_MonotoneInEGFR(t *testing.T) {
	prev := 6
	for egfr := 0.0; egfr <= 130; egfr += 0.5 {
		stage, _ := StageForEGFR(f(egfr))
		if stage > prev {
			t.Fatalf("stage worsened as eGFR improved: eGFR=%.1f stage=%d prev=%d", egfr, stage, prev)
		}
		prev = stage
	}
}

func TestDetectDialysis(t *testing.T) {
	cases := []struct {
		name string
		meds []MedicationRecord
		want bool
	}{
		{"korean hemodialysis", []MedicationRecord{{Name: "혈액투석 처방"}}, true},
		{"english", []MedicationRecord{{Name: "Hemodialysis solution"}}, true},
		{"in description", []MedicationRecord{{Name: "타이레놀", Description: "복막투석 보조"}}, true},
		{"none", []MedicationRecord{{Name: "타이레놀"}, {Name: "암로디핀정"}}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectDialysis(tc.meds); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInferDiseases_Deduplicates(t *testing.T) {
	meds := []MedicationRecord{
		{Name: "암로디핀정 5mg"},
		{Name: "노바스크정"},
	}
	got := InferDiseases(meds)
	if len(got) != 1 {
		t.Fatalf("expected one condition, got %d: %+v", len(got), got)
	}
	if got[0].Name != "고혈압" {
		t.Errorf("got %q, want 고혈압", got[0].Name)
	}
	want := []string{"암로디핀정 5mg", "노바스크정"}
	if !reflect.DeepEqual(got[0].SourceMedications, want) {
		t.Errorf("got medications %v, want %v", got[0].SourceMedications, want)
	}
}

func TestInferDiseases_MultipleConditions(t *testing.T) {
	meds := []MedicationRecord{
		{Name: "암로디핀정"},
		{Name: "메트포르민서방정"},
	}
	got := InferDiseases(meds)
	if len(got) != 2 {
		t.Fatalf("expected two conditions, got %+v", got)
	}
	names := map[string]bool{got[0].Name: true, got[1].Name: true}
	if !names["고혈압"] || !names["당뇨병"] {
		t.Errorf("got %v", names)
	}
}

func TestInferDiseases_NoMatch(t *testing.T) {
	if got := InferDiseases([]MedicationRecord{{Name: "타이레놀"}}); len(got) != 0 {
		t.Errorf("expected no conditions, got %+v", got)
	}
}

func scenarioBundle(t *testing.T) Bundle {
	t.Helper()
	resp := &backend.HealthDataResponse{
		Status: "SUCCESS",
		HealthCheckupData: json.RawMessage(`[
			{"신장": "175", "체중": "70", "혈압": "120/80", "혈당": "95",
			 "혈청크레아티닌": "1.4", "신사구체여과율": "55", "검진일자": "20230726",
			 "검진기관명": "서울의료원"}
		]`),
		MedicationData: json.RawMessage(`[{"처방약품명": "암로디핀정"}]`),
	}
	return ParseBundle(resp)
}

func TestNormalize_Scenario(t *testing.T) {
	bundle := scenarioBundle(t)
	id := verification.Identity{Name: "홍길동", BirthDate: "19990101", PhoneNumber: "01012345678"}

	p := Normalize(bundle, id)

	if p.Name != "홍길동" || p.BirthDate != "19990101" || p.PhoneNumber != "01012345678" {
		t.Errorf("identity not carried: %+v", p)
	}
	if p.KidneyFunction.CKDStage != 3 {
		t.Errorf("got stage %d, want 3", p.KidneyFunction.CKDStage)
	}
	if p.Dialysis {
		t.Error("expected dialysis false")
	}
	if len(p.MedicalHistory) != 1 || p.MedicalHistory[0].Name != "고혈압" {
		t.Fatalf("got history %+v", p.MedicalHistory)
	}
	if !reflect.DeepEqual(p.MedicalHistory[0].SourceMedications, []string{"암로디핀정"}) {
		t.Errorf("got medications %v", p.MedicalHistory[0].SourceMedications)
	}
	if p.Height == nil || *p.Height != 175 {
		t.Errorf("got height %v", p.Height)
	}
	if p.RecentTests.LastCheckupDate != "2023.07.26" {
		t.Errorf("got checkup date %q", p.RecentTests.LastCheckupDate)
	}
	if p.RecentTests.BloodPressure != "120/80" {
		t.Errorf("got blood pressure %q", p.RecentTests.BloodPressure)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	bundle := scenarioBundle(t)
	id := verification.Identity{Name: "홍길동", BirthDate: "19990101", PhoneNumber: "01012345678"}

	first := Normalize(bundle, id)
	second := Normalize(bundle, id)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestNormalize_EmptyBundle(t *testing.T) {
	p := Normalize(Bundle{}, verification.Identity{Name: "홍길동"})
	if p.KidneyFunction.CKDStage != 0 {
		t.Errorf("got stage %d, want 0 for missing eGFR", p.KidneyFunction.CKDStage)
	}
	if p.Height != nil || p.Weight != nil {
		t.Error("expected absent vitals to stay nil")
	}
	if p.Dialysis {
		t.Error("expected dialysis false")
	}
	if len(p.MedicalHistory) != 0 {
		t.Errorf("got history %+v", p.MedicalHistory)
	}
}
