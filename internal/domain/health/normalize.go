package health

import (
	"strings"

	"github.com/careplus/careplus-go/internal/domain/verification"
)

// CKD stages by eGFR threshold, best function first. A boundary value
// belongs to the better stage: eGFR 90 is stage 1, eGFR 60 is stage 2.
var ckdStages = []struct {
	minEGFR     float64
	stage       int
	description string
}{
	{90, 1, "정상 또는 경미한 손상"},
	{60, 2, "경도 감소"},
	{30, 3, "중등도 감소"},
	{15, 4, "중증 감소"},
}

const (
	ckdStageFailure = 5
	ckdFailureDesc  = "신부전"
	ckdStageNoData  = 0
	ckdNoDataDesc   = "데이터 없음"
)

// StageForEGFR maps an eGFR value to a CKD stage and its description. A nil
// eGFR means the checkup carried no value: stage 0, no data.
func StageForEGFR(egfr *float64) (int, string) {
	if egfr == nil {
		return ckdStageNoData, ckdNoDataDesc
	}
	for _, s := range ckdStages {
		if *egfr >= s.minEGFR {
			return s.stage, s.description
		}
	}
	return ckdStageFailure, ckdFailureDesc
}

// dialysisKeywords flag a patient as on dialysis when any medication name or
// description contains one. Latin keywords match case-insensitively (input
// is lowercased before the substring test); Korean keywords match byte-wise.
var dialysisKeywords = []string{
	"투석",
	"혈액투석",
	"복막투석",
	"dialysis",
	"hemodialysis",
	"peritoneal dialysis",
}

// DetectDialysis reports whether any medication record mentions dialysis.
func DetectDialysis(meds []MedicationRecord) bool {
	for _, m := range meds {
		text := strings.ToLower(m.Text())
		for _, kw := range dialysisKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}

// DiseaseRule maps medication-name fragments to a condition. The table is
// the extension point: adding a condition is adding a row.
type DiseaseRule struct {
	ID       string
	Name     string
	Keywords []string
}

// DiseaseRules is the built-in inference table. Keyword fragments are
// matched against the lowercased medication text.
var DiseaseRules = []DiseaseRule{
	{
		ID:   "hypertension",
		Name: "고혈압",
		Keywords: []string{
			"암로디핀", "amlodipine", "노바스크",
			"로자탄", "losartan", "코자",
			"텔미사르탄", "telmisartan",
			"발사르탄", "valsartan",
			"혈압",
		},
	},
	{
		ID:   "diabetes",
		Name: "당뇨병",
		Keywords: []string{
			"메트포르민", "metformin", "다이아벡스",
			"글리메피리드", "glimepiride", "아마릴",
			"시타글립틴", "sitagliptin", "자누비아",
			"당뇨",
		},
	},
	{
		ID:   "hyperlipidemia",
		Name: "고지혈증",
		Keywords: []string{
			"아토르바스타틴", "atorvastatin", "리피토",
			"로수바스타틴", "rosuvastatin", "크레스토",
			"심바스타틴", "simvastatin",
		},
	},
	{
		ID:   "gastritis",
		Name: "위염",
		Keywords: []string{
			"에소메프라졸", "esomeprazole", "넥시움",
			"라베프라졸", "rabeprazole",
			"위염",
		},
	},
}

// InferDiseases tests every medication record against every rule and
// accumulates one condition per matching rule, carrying the names of the
// medications that triggered it. Two medications matching the same rule
// yield one entry with both names, not two entries.
func InferDiseases(meds []MedicationRecord) []MedicalCondition {
	var conditions []MedicalCondition
	index := make(map[string]int)

	for _, rule := range DiseaseRules {
		for _, m := range meds {
			text := strings.ToLower(m.Text())
			matched := false
			for _, kw := range rule.Keywords {
				if strings.Contains(text, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			i, ok := index[rule.ID]
			if !ok {
				conditions = append(conditions, MedicalCondition{ID: rule.ID, Name: rule.Name})
				i = len(conditions) - 1
				index[rule.ID] = i
			}
			conditions[i].SourceMedications = append(conditions[i].SourceMedications, m.Name)
		}
	}
	return conditions
}

// Normalize derives the canonical health profile from a parsed bundle and
// the verified identity. Pure: no I/O, deterministic, and safe to re-run on
// the staged bundle after a restart.
func Normalize(b Bundle, id verification.Identity) HealthProfile {
	egfr := b.NumberField("eGFR")
	stage, desc := StageForEGFR(egfr)

	return HealthProfile{
		Name:        id.Name,
		BirthDate:   id.BirthDate,
		PhoneNumber: id.PhoneNumber,
		Height:      b.NumberField("height"),
		Weight:      b.NumberField("weight"),
		KidneyFunction: KidneyFunction{
			Creatinine:       b.NumberField("creatinine"),
			EGFR:             egfr,
			CKDStage:         stage,
			StageDescription: desc,
		},
		Dialysis:       DetectDialysis(b.Medications),
		MedicalHistory: InferDiseases(b.Medications),
		RecentTests: RecentTests{
			BloodPressure:   b.StringField("bloodPressure"),
			BloodSugar:      b.StringField("bloodSugar"),
			LastCheckupDate: FormatCheckupDate(b.StringField("checkupDate")),
		},
		RawBundle: b.Raw,
	}
}
