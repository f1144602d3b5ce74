// Package health turns the heterogeneous aggregator payload into a canonical
// health profile: vitals extraction, kidney-function staging, dialysis
// detection, and disease inference from medication names. It also drives the
// checkup-date selection and the optional AI disease analysis.
package health

import "encoding/json"

// Disease-analysis status discriminators.
const (
	AnalysisSuccess = "SUCCESS"
	AnalysisPartial = "PARTIAL_SUCCESS"
	AnalysisError   = "ERROR"
	AnalysisNoData  = "NO_DATA"
)

// Risk levels attached to a disease analysis.
const (
	RiskLow     = "LOW"
	RiskMedium  = "MEDIUM"
	RiskHigh    = "HIGH"
	RiskUnknown = "UNKNOWN"
)

// Severity levels for a disease candidate. Display weights only; no business
// logic hangs off them.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// KidneyFunction is the staged kidney assessment of a profile. Creatinine
// and EGFR are nil when the checkup carried no value.
type KidneyFunction struct {
	Creatinine       *float64 `json:"creatinine"`
	EGFR             *float64 `json:"eGFR"`
	CKDStage         int      `json:"ckdStage"`
	StageDescription string   `json:"stageDescription"`
}

// MedicalCondition is one inferred preexisting condition, deduplicated per
// condition with every medication name that triggered it.
type MedicalCondition struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	SourceMedications []string `json:"sourceMedications"`
}

// RecentTests carries the latest checkup measurements kept as display text.
type RecentTests struct {
	BloodPressure   string `json:"bloodPressure"`
	BloodSugar      string `json:"bloodSugar"`
	LastCheckupDate string `json:"lastCheckupDate"`
}

// HealthProfile is the canonical profile derived once from the aggregated
// bundle. Immutable after creation; it is only merged into the final account
// payload.
type HealthProfile struct {
	Name           string             `json:"name"`
	BirthDate      string             `json:"birthDate"`
	PhoneNumber    string             `json:"phoneNumber"`
	Height         *float64           `json:"height"`
	Weight         *float64           `json:"weight"`
	KidneyFunction KidneyFunction     `json:"kidneyFunction"`
	Dialysis       bool               `json:"dialysis"`
	MedicalHistory []MedicalCondition `json:"medicalHistory"`
	RecentTests    RecentTests        `json:"recentTests"`
	RawBundle      json.RawMessage    `json:"rawBundle,omitempty"`
}

// CheckupCandidate is one selectable checkup date. Exactly one candidate is
// selected before the wizard can advance.
type CheckupCandidate struct {
	Date         string `json:"date"`
	HospitalName string `json:"hospitalName"`
	Selected     bool   `json:"isSelected"`
}

// DiseaseCandidate is one entry of a disease analysis, reviewed by the user
// before final submission.
type DiseaseCandidate struct {
	Name     string `json:"name"`
	Detail   string `json:"detail,omitempty"`
	Severity string `json:"severity"`
}

// Analysis is the outcome of the disease-analysis step. It never blocks the
// wizard: failures degrade to NO_DATA or to keyword inference.
type Analysis struct {
	Status    string             `json:"status"`
	Diseases  []DiseaseCandidate `json:"predictedDiseases"`
	RiskLevel string             `json:"riskLevel"`
}
