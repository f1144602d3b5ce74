// Package backend is the HTTP client for the Care Plus backend: login,
// identity-verification initiation, aggregated health data, disease analysis,
// and registration completion. The backend in turn proxies the third-party
// health data aggregator; this client never talks to the aggregator directly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/careplus/careplus-go/internal/platform/staging"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// User is the minimal display record the backend returns with a session.
type User struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// LoginResult is the response of POST /auth/login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthRequest is the body of POST /auth/request. BirthDate is the 8-digit
// expanded form, CellphoneNumber the 11-digit numeric form.
type AuthRequest struct {
	UserName        string `json:"userName"`
	BirthDate       string `json:"birthDate"`
	CellphoneNumber string `json:"userCellphoneNumber"`
	AuthMethod      string `json:"authMethod"`
}

// HealthDataResponse is the response of POST /integrated/health-data. The
// checkup and medication payloads are kept raw: their shape comes from the
// third-party aggregator and is parsed defensively downstream.
type HealthDataResponse struct {
	Status            string          `json:"status"`
	HealthCheckupData json.RawMessage `json:"healthCheckupData"`
	MedicationData    json.RawMessage `json:"medicationData"`
	Message           string          `json:"message,omitempty"`
}

// PredictedDisease is one entry of a disease-analysis response.
type PredictedDisease struct {
	Name     string `json:"name"`
	Detail   string `json:"detail,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// DiseaseAnalysisResponse is the response of POST /integrated/analyze-diseases.
// Older backend builds used "diseases" instead of "predictedDiseases"; both
// are accepted.
type DiseaseAnalysisResponse struct {
	Status            string             `json:"status"`
	PredictedDiseases []PredictedDisease `json:"predictedDiseases"`
	Diseases          []PredictedDisease `json:"diseases"`
	RiskLevel         string             `json:"riskLevel"`
}

// Entries returns the disease list regardless of which field name the
// backend used.
func (r *DiseaseAnalysisResponse) Entries() []PredictedDisease {
	if len(r.PredictedDiseases) > 0 {
		return r.PredictedDiseases
	}
	return r.Diseases
}

// RegisterResult is the response of POST /auth/register/complete.
type RegisterResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    User   `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is a non-2xx backend response. Message carries the
// backend-supplied error text when the body had one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// Client calls the five backend endpoints. When a session token is staged
// under the authToken key it is sent as a bearer token; a 401 response drops
// the stale token from staging.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      staging.Store
	logger     zerolog.Logger
}

// New creates a Client against baseURL. store may be nil for unauthenticated
// use; then no bearer token is attached.
func New(baseURL string, store staging.Store, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		store:  store,
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges a phone number for a session.
func (c *Client) Login(ctx context.Context, phoneNumber string) (*LoginResult, error) {
	var out LoginResult
	if err := c.post(ctx, "/auth/login", map[string]string{"phoneNumber": phoneNumber}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestVerification initiates identity verification. The returned token is
// an opaque blob owned by the backend; it is stored and re-presented verbatim,
// never interpreted.
func (c *Client) RequestVerification(ctx context.Context, req AuthRequest) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.post(ctx, "/auth/request", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchHealthData exchanges the verification token for the aggregated health
// bundle. The caller checks the status discriminator.
func (c *Client) FetchHealthData(ctx context.Context, token json.RawMessage) (*HealthDataResponse, error) {
	var out HealthDataResponse
	if err := c.post(ctx, "/integrated/health-data", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeDiseases requests an AI disease prediction from the medication list.
func (c *Client) AnalyzeDiseases(ctx context.Context, medications []string) (*DiseaseAnalysisResponse, error) {
	var out DiseaseAnalysisResponse
	body := map[string][]string{"medications": medications}
	if err := c.post(ctx, "/integrated/analyze-diseases", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteRegistration submits the merged final payload.
func (c *Client) CompleteRegistration(ctx context.Context, payload map[string]any) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.post(ctx, "/auth/register/complete", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.store != nil {
		token, _ := staging.GetString(c.store, staging.KeyAuthToken)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Str("path", path).Err(err).Msg("backend request failed")
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	// Response bodies are small JSON documents; cap reads anyway.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode == http.StatusUnauthorized && c.store != nil {
		// Session expired: drop the stale token so the next call is clean.
		_ = c.store.Delete(staging.KeyAuthToken)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			if envelope.Message != "" {
				apiErr.Message = envelope.Message
			} else {
				apiErr.Message = envelope.Error
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
