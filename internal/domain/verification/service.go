package verification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/platform/apperr"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
)

// Requester issues the verification initiation call. Satisfied by
// *backend.Client.
type Requester interface {
	RequestVerification(ctx context.Context, req backend.AuthRequest) (json.RawMessage, error)
}

// Service validates identity input, initiates verification, and stages the
// returned token.
type Service struct {
	backend Requester
	store   staging.Store
	logger  zerolog.Logger
}

// NewService creates a verification Service.
func NewService(b Requester, store staging.Store, logger zerolog.Logger) *Service {
	return &Service{backend: b, store: store, logger: logger}
}

// Request validates the identity fields, normalizes them, and initiates
// verification with the chosen provider. On success the opaque token is
// staged under authData (overwriting any prior run) and the normalized
// identity under userInfo, then the token is returned.
//
// Validation failures never reach the network. Network and backend failures
// come back as VerificationRequestError so the caller can retry without the
// user re-entering anything.
func (s *Service) Request(ctx context.Context, id Identity, providerID string) (json.RawMessage, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if !KnownProvider(providerID) {
		return nil, apperr.NewValidation("provider", "인증 수단을 선택해주세요.")
	}

	birth, err := ExpandBirthDate(id.BirthDate)
	if err != nil {
		return nil, apperr.NewValidation("birthDate", "생년월일 6자리를 입력해주세요.")
	}

	req := backend.AuthRequest{
		UserName:        id.Name,
		BirthDate:       birth,
		CellphoneNumber: DigitsOnly(id.PhoneNumber),
		AuthMethod:      providerID,
	}

	token, err := s.backend.RequestVerification(ctx, req)
	if err != nil {
		s.logger.Warn().Str("provider", providerID).Err(err).Msg("verification request failed")
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return nil, apperr.NewVerificationRequest(apiErr.Message, err)
		}
		return nil, apperr.NewVerificationRequest("", err)
	}

	if err := s.store.Put(staging.KeyAuthData, token); err != nil {
		return nil, apperr.NewVerificationRequest("", err)
	}
	normalized := Identity{Name: id.Name, BirthDate: birth, PhoneNumber: DigitsOnly(id.PhoneNumber)}
	if err := s.store.Put(staging.KeyUserInfo, normalized); err != nil {
		return nil, apperr.NewVerificationRequest("", err)
	}

	s.logger.Info().Str("provider", providerID).Msg("verification initiated")
	return token, nil
}

// StagedToken loads a previously staged verification token, if any.
func (s *Service) StagedToken() (json.RawMessage, bool, error) {
	var token json.RawMessage
	ok, err := s.store.Get(staging.KeyAuthData, &token)
	return token, ok, err
}

// ---------------------------------------------------------------------------
// Completion gate
// ---------------------------------------------------------------------------

// Gate blocks the wizard until the user explicitly confirms they finished
// verification in the provider app. There is no real confirmation check with
// the provider, so an explicit acknowledgement is the only signal with no
// false-positive risk.
type Gate struct {
	once      sync.Once
	confirmed chan struct{}
}

// NewGate creates an unconfirmed Gate.
func NewGate() *Gate {
	return &Gate{confirmed: make(chan struct{})}
}

// Confirm records the user's acknowledgement. Safe to call more than once.
func (g *Gate) Confirm() {
	g.once.Do(func() { close(g.confirmed) })
}

// AutoConfirmAfter confirms the gate after d. Development convenience only;
// it reintroduces the false-positive risk the explicit gate exists to avoid.
func (g *Gate) AutoConfirmAfter(d time.Duration) {
	time.AfterFunc(d, g.Confirm)
}

// Wait blocks until Confirm is called or ctx is cancelled. Cancellation
// returns control to the prior step; staged identity fields are untouched.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.confirmed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
