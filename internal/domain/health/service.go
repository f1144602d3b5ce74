package health

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/platform/apperr"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
)

// Aggregator is the backend surface this service needs. Satisfied by
// *backend.Client.
type Aggregator interface {
	FetchHealthData(ctx context.Context, token json.RawMessage) (*backend.HealthDataResponse, error)
	AnalyzeDiseases(ctx context.Context, medications []string) (*backend.DiseaseAnalysisResponse, error)
}

// Service fetches the aggregated bundle, stages it for idempotent re-derivation,
// and runs the optional disease analysis.
type Service struct {
	backend Aggregator
	store   staging.Store
	logger  zerolog.Logger
}

// NewService creates a health Service.
func NewService(b Aggregator, store staging.Store, logger zerolog.Logger) *Service {
	return &Service{backend: b, store: store, logger: logger}
}

// FetchBundle exchanges the verification token for the aggregated bundle.
// Only a SUCCESS discriminator yields one; anything else is an
// AggregationError carrying the backend message when present. On success the
// raw response is staged under healthData before any derivation, so the
// normalizer can re-run after a restart without a second network call, and
// the most recent checkup summary is staged under latestCheckupInfo for the
// home screen.
func (s *Service) FetchBundle(ctx context.Context, token json.RawMessage) (Bundle, error) {
	resp, err := s.backend.FetchHealthData(ctx, token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("health data fetch failed")
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return Bundle{}, apperr.NewAggregation(apiErr.Message, err)
		}
		return Bundle{}, apperr.NewAggregation("", err)
	}
	if resp.Status != "SUCCESS" {
		s.logger.Warn().Str("status", resp.Status).Msg("health data fetch rejected")
		return Bundle{}, apperr.NewAggregation(resp.Message, nil)
	}

	if err := s.store.Put(staging.KeyHealthData, resp); err != nil {
		return Bundle{}, apperr.NewAggregation("", err)
	}

	bundle := ParseBundle(resp)
	if candidates := CheckupCandidates(bundle); len(candidates) > 0 {
		if err := s.store.Put(staging.KeyLatestCheckupInfo, candidates[0]); err != nil {
			return Bundle{}, apperr.NewAggregation("", err)
		}
	}

	s.logger.Info().
		Int("checkups", len(bundle.Checkups)).
		Int("medications", len(bundle.Medications)).
		Msg("health bundle staged")
	return bundle, nil
}

// StagedBundle re-derives the bundle from the staged healthData response.
// The boolean reports whether one was staged.
func (s *Service) StagedBundle() (Bundle, bool, error) {
	var resp backend.HealthDataResponse
	ok, err := s.store.Get(staging.KeyHealthData, &resp)
	if err != nil || !ok {
		return Bundle{}, false, err
	}
	return ParseBundle(&resp), true, nil
}

// Analyze requests the AI disease prediction for the bundle's medications.
// This step is optional enrichment and never blocks the wizard: a backend
// failure or empty result falls back to the keyword inference table, and an
// empty medication list is a NO_DATA terminal state. The outcome is staged
// under diseaseAnalysis.
func (s *Service) Analyze(ctx context.Context, bundle Bundle) Analysis {
	analysis := s.analyze(ctx, bundle)
	if err := s.store.Put(staging.KeyDiseaseAnalysis, analysis); err != nil {
		s.logger.Warn().Err(err).Msg("staging disease analysis failed")
	}
	return analysis
}

func (s *Service) analyze(ctx context.Context, bundle Bundle) Analysis {
	names := bundle.MedicationNames()
	if len(names) == 0 {
		return Analysis{Status: AnalysisNoData, Diseases: []DiseaseCandidate{}, RiskLevel: RiskLow}
	}

	resp, err := s.backend.AnalyzeDiseases(ctx, names)
	if err == nil && resp.Status == AnalysisSuccess && len(resp.Entries()) > 0 {
		diseases := make([]DiseaseCandidate, 0, len(resp.Entries()))
		for _, d := range resp.Entries() {
			severity := d.Severity
			if severity == "" {
				severity = SeverityMedium
			}
			diseases = append(diseases, DiseaseCandidate{Name: d.Name, Detail: d.Detail, Severity: severity})
		}
		risk := resp.RiskLevel
		if risk == "" {
			risk = RiskUnknown
		}
		return Analysis{Status: AnalysisSuccess, Diseases: diseases, RiskLevel: risk}
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("disease analysis failed, falling back to keyword inference")
	}

	inferred := InferDiseases(bundle.Medications)
	if len(inferred) == 0 {
		return Analysis{Status: AnalysisNoData, Diseases: []DiseaseCandidate{}, RiskLevel: RiskLow}
	}
	diseases := make([]DiseaseCandidate, 0, len(inferred))
	for _, c := range inferred {
		diseases = append(diseases, DiseaseCandidate{
			Name:     c.Name,
			Detail:   "복용 약물: " + strings.Join(c.SourceMedications, ", "),
			Severity: SeverityMedium,
		})
	}
	return Analysis{Status: AnalysisPartial, Diseases: diseases, RiskLevel: RiskUnknown}
}

// SelectCheckupDate marks exactly one candidate selected and stages it under
// selectedCheckupDate.
func (s *Service) SelectCheckupDate(candidates []CheckupCandidate, index int) ([]CheckupCandidate, error) {
	updated, err := SelectCheckup(candidates, index)
	if err != nil {
		return nil, apperr.NewValidation("checkupDate", "검진일을 선택해주세요.")
	}
	if err := s.store.Put(staging.KeySelectedCheckupDate, updated[index]); err != nil {
		return nil, err
	}
	return updated, nil
}
