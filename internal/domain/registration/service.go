package registration

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/domain/health"
	"github.com/careplus/careplus-go/internal/domain/verification"
	"github.com/careplus/careplus-go/internal/platform/apperr"
	"github.com/careplus/careplus-go/internal/platform/backend"
	"github.com/careplus/careplus-go/internal/platform/staging"
)

// Backend is the backend surface this service needs. Satisfied by
// *backend.Client.
type Backend interface {
	Login(ctx context.Context, phoneNumber string) (*backend.LoginResult, error)
	CompleteRegistration(ctx context.Context, payload map[string]any) (*backend.RegisterResult, error)
}

// Option configures a Service.
type Option func(*Service)

// WithOfflineFallback enables the degraded-success finalization policy: a
// backend failure synthesizes a local session instead of surfacing an error.
// Development builds only; config validation refuses it in production.
func WithOfflineFallback(enabled bool) Option {
	return func(s *Service) { s.allowOffline = enabled }
}

// Service stages the registration draft and performs login and finalization.
type Service struct {
	backend      Backend
	store        staging.Store
	allowOffline bool
	logger       zerolog.Logger
}

// NewService creates a registration Service. The default finalization policy
// is strict: errors surface and staged state stays intact for retry.
func NewService(b Backend, store staging.Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{backend: b, store: store, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateDraft validates the credentials and stages the draft under
// registerData, overwriting any prior run's draft.
func (s *Service) CreateDraft(userID, password string) (Draft, error) {
	draft, err := NewDraft(userID, password)
	if err != nil {
		return Draft{}, err
	}
	if err := s.store.Put(staging.KeyRegisterData, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// StagedDraft loads the staged draft, if any.
func (s *Service) StagedDraft() (Draft, bool, error) {
	var d Draft
	ok, err := s.store.Get(staging.KeyRegisterData, &d)
	return d, ok, err
}

// SetProvider records the chosen verification provider on the staged draft.
func (s *Service) SetProvider(providerID string) error {
	draft, ok, err := s.StagedDraft()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no registration draft staged")
	}
	draft.Provider = providerID
	return s.store.Put(staging.KeyRegisterData, draft)
}

// Login exchanges a phone number for a session and stages it.
func (s *Service) Login(ctx context.Context, phoneNumber string) (*AccountResult, error) {
	phone := verification.DigitsOnly(phoneNumber)
	if len(phone) != 11 {
		return nil, apperr.NewValidation("phoneNumber", "올바른 휴대폰 번호 11자리를 입력해주세요.")
	}
	res, err := s.backend.Login(ctx, phone)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return nil, apperr.NewVerificationRequest(apiErr.Message, err)
		}
		return nil, apperr.NewVerificationRequest("", err)
	}
	if err := s.stageSession(res.Token, res.User); err != nil {
		return nil, err
	}
	s.logger.Info().Str("userId", res.User.UserID).Msg("logged in")
	return &AccountResult{Token: res.Token, User: res.User}, nil
}

// Finalize merges every staged piece into one payload and submits it as a
// single backend call. On success the entire wizard staging area is purged
// as one bulk operation and the new session is staged; no caller can observe
// a partial purge.
//
// On failure the strict policy (the default and the only one allowed in
// production) surfaces a FinalizationError and leaves staged state intact
// for retry. With the offline fallback enabled a local placeholder session
// is synthesized instead.
func (s *Service) Finalize(
	ctx context.Context,
	draft Draft,
	identity verification.Identity,
	profile health.HealthProfile,
	analysis health.Analysis,
	checkup health.CheckupCandidate,
) (*AccountResult, error) {
	if !checkup.Selected {
		return nil, apperr.NewValidation("checkupDate", "검진일을 선택해주세요.")
	}

	var authData json.RawMessage
	if ok, err := s.store.Get(staging.KeyAuthData, &authData); err != nil || !ok {
		if err == nil {
			err = errors.New("no verification token staged")
		}
		return nil, apperr.NewFinalization("", err)
	}

	diseases := make([]map[string]string, 0, len(analysis.Diseases))
	for _, d := range analysis.Diseases {
		diseases = append(diseases, map[string]string{"name": d.Name, "detail": d.Detail})
	}

	payload := map[string]any{
		"userId":        draft.UserID,
		"passwordHash":  draft.PasswordHash,
		"provider":      draft.Provider,
		"name":          identity.Name,
		"birthDate":     identity.BirthDate,
		"phoneNumber":   identity.PhoneNumber,
		"healthProfile": profile,
		"diseases":      diseases,
		"checkupDate":   checkup.Date,
		"authData":      authData,
	}

	res, err := s.backend.CompleteRegistration(ctx, payload)
	if err == nil && !res.Success {
		err = &backend.APIError{StatusCode: 200, Message: res.Message}
	}
	if err != nil {
		if s.allowOffline {
			s.logger.Warn().Err(err).Msg("finalize failed, synthesizing offline session")
			return s.finishSession("offline-"+uuid.New().String(), backend.User{
				UserID:      draft.UserID,
				Name:        identity.Name,
				PhoneNumber: identity.PhoneNumber,
			}, true)
		}
		s.logger.Warn().Err(err).Msg("finalize failed")
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return nil, apperr.NewFinalization(apiErr.Message, err)
		}
		return nil, apperr.NewFinalization("", err)
	}

	return s.finishSession(res.Token, res.User, false)
}

func (s *Service) finishSession(token string, user backend.User, offline bool) (*AccountResult, error) {
	// Purge first, session keys after: the post-state is session set,
	// wizard state gone.
	if err := s.store.ClearWizard(); err != nil {
		return nil, apperr.NewFinalization("", err)
	}
	if err := s.stageSession(token, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("userId", user.UserID).Bool("offline", offline).Msg("registration finalized")
	return &AccountResult{Token: token, User: user, Offline: offline}, nil
}

func (s *Service) stageSession(token string, user backend.User) error {
	if err := s.store.Put(staging.KeyAuthToken, token); err != nil {
		return apperr.NewFinalization("", err)
	}
	if err := s.store.Put(staging.KeyUserData, user); err != nil {
		return apperr.NewFinalization("", err)
	}
	if err := s.store.Put(staging.KeyIsLoggedIn, "true"); err != nil {
		return apperr.NewFinalization("", err)
	}
	return nil
}
