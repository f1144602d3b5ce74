package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/domain/health"
	"github.com/careplus/careplus-go/internal/domain/registration"
	"github.com/careplus/careplus-go/internal/domain/verification"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
)

// stubBackend implements the backend surface of all three domain services.
// fetchGate, when set, blocks FetchHealthData until closed so tests can hold
// a request in flight.
type stubBackend struct {
	mu           sync.Mutex
	verifyCalls  int
	fetchCalls   int
	fetchGate    chan struct{}
	fetchStarted chan struct{}
	fetchErr     error
	completeErr  error
}

func (b *stubBackend) RequestVerification(_ context.Context, _ backend.AuthRequest) (json.RawMessage, error) {
	b.mu.Lock()
	b.verifyCalls++
	b.mu.Unlock()
	return json.RawMessage(`{"CxId":"cx-1","TxId":"tx-1"}`), nil
}

func (b *stubBackend) FetchHealthData(_ context.Context, _ json.RawMessage) (*backend.HealthDataResponse, error) {
	b.mu.Lock()
	b.fetchCalls++
	gate := b.fetchGate
	started := b.fetchStarted
	b.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	return &backend.HealthDataResponse{
		Status:            "SUCCESS",
		HealthCheckupData: json.RawMessage(`[{"신사구체여과율": "55", "검진일자": "20230726", "검진기관명": "서울의료원"}]`),
		MedicationData:    json.RawMessage(`[{"처방약품명": "암로디핀정"}]`),
	}, nil
}

func (b *stubBackend) AnalyzeDiseases(_ context.Context, _ []string) (*backend.DiseaseAnalysisResponse, error) {
	return &backend.DiseaseAnalysisResponse{
		Status:            health.AnalysisSuccess,
		PredictedDiseases: []backend.PredictedDisease{{Name: "고혈압", Severity: "medium"}},
		RiskLevel:         health.RiskMedium,
	}, nil
}

func (b *stubBackend) Login(_ context.Context, _ string) (*backend.LoginResult, error) {
	return &backend.LoginResult{Token: "tok"}, nil
}

func (b *stubBackend) CompleteRegistration(_ context.Context, _ map[string]any) (*backend.RegisterResult, error) {
	if b.completeErr != nil {
		return nil, b.completeErr
	}
	return &backend.RegisterResult{Success: true, Token: "tok-final", User: backend.User{UserID: "hong1234"}}, nil
}

func newTestSession(b *stubBackend, store staging.Store) *Session {
	logger := zerolog.Nop()
	return NewSession(
		verification.NewService(b, store, logger),
		health.NewService(b, store, logger),
		registration.NewService(b, store, logger),
		store,
		logger,
	)
}

func identity() verification.Identity {
	return verification.Identity{Name: "홍길동", BirthDate: "990101", PhoneNumber: "01012345678"}
}

func advanceToHealthFetch(t *testing.T, s *Session) {
	t.Helper()
	if err := s.StartRegistration("hong1234", "secret99"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SubmitIdentity(context.Background(), identity(), "kakao"); err != nil {
		t.Fatalf("submit identity: %v", err)
	}
	s.ConfirmVerification()
	if err := s.AwaitGate(context.Background()); err != nil {
		t.Fatalf("gate: %v", err)
	}
	if s.Step() != StepHealthFetch {
		t.Fatalf("at step %s", s.Step())
	}
}

func TestSession_HappyPath(t *testing.T) {
	store := staging.NewMemoryStore()
	s := newTestSession(&stubBackend{}, store)

	advanceToHealthFetch(t, s)
	if err := s.FetchHealth(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Step() != StepCheckupSelect {
		t.Fatalf("at step %s", s.Step())
	}

	p := s.Profile()
	if p.KidneyFunction.CKDStage != 3 {
		t.Errorf("got stage %d", p.KidneyFunction.CKDStage)
	}
	if p.BirthDate != "19990101" {
		t.Errorf("got birth date %q", p.BirthDate)
	}

	if err := s.SelectCheckup(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	analysis, err := s.ReviewDiseases(context.Background())
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if analysis.Status != health.AnalysisSuccess || analysis.Diseases[0].Name != "고혈압" {
		t.Errorf("got analysis %+v", analysis)
	}

	res, err := s.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Token != "tok-final" {
		t.Errorf("got %+v", res)
	}
	if s.Step() != StepDone {
		t.Errorf("at step %s", s.Step())
	}

	logged, _ := staging.GetString(store, staging.KeyIsLoggedIn)
	if logged != "true" {
		t.Errorf("got isLoggedIn %q", logged)
	}
	var v json.RawMessage
	if ok, _ := store.Get(staging.KeyRegisterData, &v); ok {
		t.Error("wizard state not purged")
	}
}

func TestSession_InFlightGuard(t *testing.T) {
	b := &stubBackend{fetchGate: make(chan struct{}), fetchStarted: make(chan struct{}, 1)}
	s := newTestSession(b, staging.NewMemoryStore())
	advanceToHealthFetch(t, s)

	done := make(chan error, 1)
	go func() { done <- s.FetchHealth(context.Background()) }()
	<-b.fetchStarted

	if err := s.FetchHealth(context.Background()); !errors.Is(err, ErrInFlight) {
		t.Errorf("got %v, want ErrInFlight", err)
	}

	close(b.fetchGate)
	if err := <-done; err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if b.fetchCalls != 1 {
		t.Errorf("got %d network calls, want 1", b.fetchCalls)
	}
}

func TestSession_StaleResponseDiscarded(t *testing.T) {
	b := &stubBackend{fetchGate: make(chan struct{}), fetchStarted: make(chan struct{}, 1)}
	s := newTestSession(b, staging.NewMemoryStore())
	advanceToHealthFetch(t, s)

	done := make(chan error, 1)
	go func() { done <- s.FetchHealth(context.Background()) }()
	<-b.fetchStarted

	// User navigates back while the request is outstanding.
	s.Back()
	if s.Step() != StepGate {
		t.Fatalf("at step %s", s.Step())
	}

	close(b.fetchGate)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Errorf("got %v, want ErrStale", err)
	}

	// The late response must not advance the session or install a profile.
	if s.Step() != StepGate {
		t.Errorf("stale response advanced session to %s", s.Step())
	}
	if len(s.Candidates()) != 0 {
		t.Error("stale response installed candidates")
	}
}

func TestSession_FailureAllowsRetry(t *testing.T) {
	b := &stubBackend{fetchErr: errors.New("timeout")}
	s := newTestSession(b, staging.NewMemoryStore())
	advanceToHealthFetch(t, s)

	if err := s.FetchHealth(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if s.StateOf(StepHealthFetch) != StateFailed {
		t.Errorf("got state %s", s.StateOf(StepHealthFetch))
	}
	if s.LastError() == "" {
		t.Error("expected user-facing error message")
	}

	// Retry re-invokes the fetch without re-running verification.
	b.fetchErr = nil
	if err := s.FetchHealth(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if b.verifyCalls != 1 {
		t.Errorf("verification re-ran: %d calls", b.verifyCalls)
	}
	if s.Step() != StepCheckupSelect {
		t.Errorf("at step %s", s.Step())
	}
}

func TestSession_GateCancelKeepsIdentity(t *testing.T) {
	b := &stubBackend{}
	store := staging.NewMemoryStore()
	s := newTestSession(b, store)

	if err := s.StartRegistration("hong1234", "secret99"); err != nil {
		t.Fatal(err)
	}
	if err := s.SubmitIdentity(context.Background(), identity(), "kakao"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.AwaitGate(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("gate did not release")
	}

	// Identity and token survive the abandon.
	var tok json.RawMessage
	if ok, _ := store.Get(staging.KeyAuthData, &tok); !ok {
		t.Error("verification token lost on gate cancel")
	}
	var info verification.Identity
	if ok, _ := store.Get(staging.KeyUserInfo, &info); !ok || info.Name != "홍길동" {
		t.Errorf("identity lost on gate cancel: %+v", info)
	}
}

func TestSession_SubmitOnWrongStep(t *testing.T) {
	s := newTestSession(&stubBackend{}, staging.NewMemoryStore())
	// Still at register; identity step not active yet.
	if err := s.SubmitIdentity(context.Background(), identity(), "kakao"); err == nil {
		t.Error("expected error submitting inactive step")
	}
}

func TestSession_Resume(t *testing.T) {
	b := &stubBackend{}
	store := staging.NewMemoryStore()
	s := newTestSession(b, store)
	advanceToHealthFetch(t, s)
	if err := s.FetchHealth(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A fresh session over the same store picks up at checkup selection.
	restored := newTestSession(b, store)
	if err := restored.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if restored.Step() != StepCheckupSelect {
		t.Fatalf("resumed at %s", restored.Step())
	}
	if got := restored.Profile(); got.KidneyFunction.CKDStage != 3 {
		t.Errorf("resumed profile stage %d", got.KidneyFunction.CKDStage)
	}
	if len(restored.Candidates()) == 0 {
		t.Error("resumed without candidates")
	}
	if b.fetchCalls != 1 {
		t.Errorf("resume hit the network: %d fetch calls", b.fetchCalls)
	}
}

func TestSession_ResumeEmptyStoreStaysAtRegister(t *testing.T) {
	s := newTestSession(&stubBackend{}, staging.NewMemoryStore())
	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if s.Step() != StepRegister {
		t.Errorf("at step %s", s.Step())
	}
}
