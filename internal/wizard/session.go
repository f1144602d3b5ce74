// Package wizard is the session engine driving the registration flow: one
// linear sequence of steps per user, each with an explicit state the UI
// renders from. Network steps are idempotent-guarded and late responses from
// abandoned steps are discarded.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/domain/health"
	"github.com/careplus/careplus-go/internal/domain/registration"
	"github.com/careplus/careplus-go/internal/domain/verification"
	"github.com/careplus/careplus-go/internal/platform/apperr"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
)

// Step identifies one wizard screen.
type Step int

const (
	StepRegister Step = iota
	StepIdentity
	StepGate
	StepHealthFetch
	StepCheckupSelect
	StepDiseaseReview
	StepFinalize
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepRegister:
		return "register"
	case StepIdentity:
		return "identity"
	case StepGate:
		return "gate"
	case StepHealthFetch:
		return "health-fetch"
	case StepCheckupSelect:
		return "checkup-select"
	case StepDiseaseReview:
		return "disease-review"
	case StepFinalize:
		return "finalize"
	case StepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepState is the submission state of a step. The UI renders from it; it
// never drives the flow itself.
type StepState int

const (
	StateIdle StepState = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s StepState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrInFlight reports a duplicate submit while one is outstanding. The
// second trigger is a no-op.
var ErrInFlight = errors.New("submission already in flight")

// ErrStale reports a response that arrived after its step was abandoned.
// The result was discarded without touching session state.
var ErrStale = errors.New("stale response discarded")

// Session is one wizard run. All methods are called from the single logical
// thread driving the flow; the mutex exists for the guard bookkeeping and
// the stale-discard check, not for cross-step parallelism.
type Session struct {
	mu      sync.Mutex
	step    Step
	states  map[Step]StepState
	epoch   uint64
	lastErr string

	verification *verification.Service
	health       *health.Service
	registration *registration.Service
	gate         *verification.Gate
	store        staging.Store
	logger       zerolog.Logger

	identity   verification.Identity
	draft      registration.Draft
	token      json.RawMessage
	bundle     health.Bundle
	profile    health.HealthProfile
	candidates []health.CheckupCandidate
	analysis   health.Analysis
}

// NewSession wires a session over the domain services and the shared
// staging store.
func NewSession(
	v *verification.Service,
	h *health.Service,
	r *registration.Service,
	store staging.Store,
	logger zerolog.Logger,
) *Session {
	return &Session{
		step:         StepRegister,
		states:       make(map[Step]StepState),
		verification: v,
		health:       h,
		registration: r,
		store:        store,
		logger:       logger,
	}
}

// Step returns the active step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// StateOf returns the submission state of a step.
func (s *Session) StateOf(step Step) StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[step]
}

// LastError returns the user-facing message of the most recent failure.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Candidates returns the selectable checkup dates.
func (s *Session) Candidates() []health.CheckupCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]health.CheckupCandidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Profile returns the derived health profile.
func (s *Session) Profile() health.HealthProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Analysis returns the disease analysis of the review step.
func (s *Session) Analysis() health.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// Resume restores a session from staged state after a restart. The deepest
// recoverable step wins: a staged health bundle resumes at checkup
// selection, a staged verification token at the gate, a staged draft at
// identity entry.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok, err := s.registration.StagedDraft()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.draft = draft
	s.step = StepIdentity

	var identity verification.Identity
	if ok, err := s.store.Get(staging.KeyUserInfo, &identity); err == nil && ok {
		s.identity = identity
	}

	token, ok, err := s.verification.StagedToken()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.token = token
	s.gate = verification.NewGate()
	s.step = StepGate

	bundle, ok, err := s.health.StagedBundle()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.bundle = bundle
	s.profile = health.Normalize(bundle, s.identity)
	s.candidates = health.CheckupCandidates(bundle)
	s.step = StepCheckupSelect
	s.logger.Info().Str("step", s.step.String()).Msg("session resumed from staging")
	return nil
}

// StartRegistration validates the credentials, stages the draft, and moves
// to identity entry.
func (s *Session) StartRegistration(userID, password string) error {
	draft, err := s.registration.CreateDraft(userID, password)
	if err != nil {
		s.setFailure(StepRegister, err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = draft
	s.states[StepRegister] = StateSucceeded
	s.step = StepIdentity
	return nil
}

// SubmitIdentity validates and submits the identity fields with the chosen
// provider. A second call while one is outstanding returns ErrInFlight and
// sends nothing. On success the session advances to the completion gate.
// Failures keep the entered fields so retry needs no re-entry.
func (s *Session) SubmitIdentity(ctx context.Context, id verification.Identity, providerID string) error {
	epoch, err := s.begin(StepIdentity)
	if err != nil {
		return err
	}

	token, reqErr := s.verification.Request(ctx, id, providerID)

	return s.finish(StepIdentity, epoch, reqErr, func() {
		birth, _ := verification.ExpandBirthDate(id.BirthDate)
		s.identity = verification.Identity{
			Name:        id.Name,
			BirthDate:   birth,
			PhoneNumber: verification.DigitsOnly(id.PhoneNumber),
		}
		s.draft.Provider = providerID
		if err := s.registration.SetProvider(providerID); err != nil {
			s.logger.Warn().Err(err).Msg("staging provider choice failed")
		}
		s.token = token
		s.gate = verification.NewGate()
		s.step = StepGate
	})
}

// Gate returns the completion gate of the active verification, or nil before
// one exists.
func (s *Session) Gate() *verification.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// ConfirmVerification records the user's acknowledgement that verification
// finished in the provider app.
func (s *Session) ConfirmVerification() {
	if g := s.Gate(); g != nil {
		g.Confirm()
	}
}

// AwaitGate blocks until the gate is confirmed, then advances to the health
// fetch. Cancelling returns control to the caller with identity and token
// intact.
func (s *Session) AwaitGate(ctx context.Context) error {
	g := s.Gate()
	if g == nil {
		return errors.New("no verification in progress")
	}
	if err := g.Wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[StepGate] = StateSucceeded
	s.step = StepHealthFetch
	return nil
}

// FetchHealth exchanges the verification token for the aggregated bundle,
// derives the profile, and advances to checkup selection. Retryable without
// re-running verification.
func (s *Session) FetchHealth(ctx context.Context) error {
	epoch, err := s.begin(StepHealthFetch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	token := s.token
	identity := s.identity
	s.mu.Unlock()

	bundle, fetchErr := s.health.FetchBundle(ctx, token)

	return s.finish(StepHealthFetch, epoch, fetchErr, func() {
		s.bundle = bundle
		s.profile = health.Normalize(bundle, identity)
		s.candidates = health.CheckupCandidates(bundle)
		s.step = StepCheckupSelect
	})
}

// SelectCheckup marks exactly one checkup date selected and advances to the
// disease review.
func (s *Session) SelectCheckup(index int) error {
	s.mu.Lock()
	candidates := s.candidates
	s.mu.Unlock()

	updated, err := s.health.SelectCheckupDate(candidates, index)
	if err != nil {
		s.setFailure(StepCheckupSelect, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = updated
	s.states[StepCheckupSelect] = StateSucceeded
	s.step = StepDiseaseReview
	return nil
}

// ReviewDiseases runs the optional disease analysis and advances to
// finalization. The analysis never blocks the wizard; its degraded outcomes
// are terminal states of their own.
func (s *Session) ReviewDiseases(ctx context.Context) (health.Analysis, error) {
	epoch, err := s.begin(StepDiseaseReview)
	if err != nil {
		return health.Analysis{}, err
	}

	s.mu.Lock()
	bundle := s.bundle
	s.mu.Unlock()

	analysis := s.health.Analyze(ctx, bundle)

	err = s.finish(StepDiseaseReview, epoch, nil, func() {
		s.analysis = analysis
		s.step = StepFinalize
	})
	return analysis, err
}

// Finalize merges everything and submits the account creation. On success
// the wizard staging is purged, the new session staged, and the wizard is
// done.
func (s *Session) Finalize(ctx context.Context) (*registration.AccountResult, error) {
	epoch, err := s.begin(StepFinalize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	draft := s.draft
	identity := s.identity
	profile := s.profile
	analysis := s.analysis
	candidates := s.candidates
	s.mu.Unlock()

	checkup, selErr := health.SelectedCheckup(candidates)
	if selErr != nil {
		s.setFailure(StepFinalize, selErr)
		return nil, selErr
	}

	result, finErr := s.registration.Finalize(ctx, draft, identity, profile, analysis, checkup)

	err = s.finish(StepFinalize, epoch, finErr, func() {
		s.step = StepDone
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Back abandons the active step and returns to the previous one. An
// in-flight request is not cancelled; its result is discarded when it
// arrives. Already-confirmed earlier state (identity, token) is kept.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.states[s.step] = StateIdle
	if s.step > StepRegister && s.step < StepDone {
		s.step--
	}
}

// begin takes the in-flight guard for step. It fails when the step is not
// active or a submission is already outstanding.
func (s *Session) begin(step Step) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != step {
		return 0, fmt.Errorf("step %s is not active (at %s)", step, s.step)
	}
	if s.states[step] == StateSubmitting {
		return 0, ErrInFlight
	}
	s.states[step] = StateSubmitting
	return s.epoch, nil
}

// finish releases the guard and applies the step's outcome, unless the
// session epoch moved on while the request was in flight; then the response
// is stale and dropped.
func (s *Session) finish(step Step, epoch uint64, opErr error, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		s.logger.Debug().Str("step", step.String()).Msg("discarding stale response")
		return ErrStale
	}

	if opErr != nil {
		s.states[step] = StateFailed
		s.lastErr = apperr.UserMessage(opErr)
		return opErr
	}

	s.states[step] = StateSucceeded
	s.lastErr = ""
	apply()
	return nil
}

func (s *Session) setFailure(step Step, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[step] = StateFailed
	s.lastErr = apperr.UserMessage(err)
}

// NewDefaultSession builds the standard production wiring of a session: one
// backend client shared by the three domain services over the given store.
func NewDefaultSession(client *backend.Client, store staging.Store, logger zerolog.Logger, regOpts ...registration.Option) *Session {
	return NewSession(
		verification.NewService(client, store, logger),
		health.NewService(client, store, logger),
		registration.NewService(client, store, logger, regOpts...),
		store,
		logger,
	)
}
