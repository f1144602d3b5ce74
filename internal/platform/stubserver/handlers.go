package stubserver

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/careplus/careplus-go/internal/domain/health"
	"github.com/careplus/careplus-go/internal/platform/backend"
)

func (s *Server) signToken(userID, name string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func errJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"message": message})
}

// handleLogin implements POST /auth/login. Only phone numbers that completed
// registration in this process can log in.
func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "잘못된 요청입니다.")
	}
	if len(req.PhoneNumber) != 11 {
		return errJSON(c, http.StatusBadRequest, "올바른 휴대폰 번호를 입력해주세요.")
	}

	s.mu.Lock()
	user, ok := s.users[req.PhoneNumber]
	s.mu.Unlock()
	if !ok {
		return errJSON(c, http.StatusNotFound, "가입되지 않은 번호입니다.")
	}

	token, err := s.signToken(user.UserID, user.Name)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, "토큰 발급에 실패했습니다.")
	}
	return c.JSON(http.StatusOK, backend.LoginResult{Token: token, User: user})
}

// handleAuthRequest implements POST /auth/request. The returned token object
// mirrors the aggregator's shape; clients must treat it as opaque.
func (s *Server) handleAuthRequest(c echo.Context) error {
	var req backend.AuthRequest
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "잘못된 요청입니다.")
	}
	if req.UserName == "" {
		return errJSON(c, http.StatusBadRequest, "이름을 입력해주세요.")
	}
	if len(req.BirthDate) != 8 {
		return errJSON(c, http.StatusBadRequest, "생년월일 8자리가 필요합니다.")
	}
	if len(req.CellphoneNumber) != 11 {
		return errJSON(c, http.StatusBadRequest, "올바른 휴대폰 번호를 입력해주세요.")
	}
	if req.AuthMethod == "" {
		return errJSON(c, http.StatusBadRequest, "인증 수단을 선택해주세요.")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"CxId":            uuid.New().String(),
		"PrivateAuthType": "0",
		"ReqTxId":         uuid.New().String(),
		"Token":           uuid.New().String(),
		"TxId":            uuid.New().String(),
		"UserName":        "ENC:" + req.UserName,
		"BirthDate":       "ENC:" + req.BirthDate,
	})
}

// handleHealthData implements POST /integrated/health-data. Any request that
// carries the token fields from /auth/request gets the canned dataset.
func (s *Server) handleHealthData(c echo.Context) error {
	var token map[string]any
	if err := c.Bind(&token); err != nil {
		return errJSON(c, http.StatusBadRequest, "잘못된 요청입니다.")
	}
	if token["CxId"] == nil || token["TxId"] == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"status":  "FAIL",
			"message": "본인인증이 완료되지 않았습니다.",
		})
	}
	return c.JSON(http.StatusOK, cannedHealthData())
}

// handleAnalyzeDiseases implements POST /integrated/analyze-diseases using
// the same keyword table the client falls back to, which keeps stub and
// client predictions consistent.
func (s *Server) handleAnalyzeDiseases(c echo.Context) error {
	var req struct {
		Medications []string `json:"medications"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, "잘못된 요청입니다.")
	}
	if len(req.Medications) == 0 {
		return c.JSON(http.StatusOK, backend.DiseaseAnalysisResponse{
			Status:            health.AnalysisNoData,
			PredictedDiseases: []backend.PredictedDisease{},
			RiskLevel:         health.RiskLow,
		})
	}

	meds := make([]health.MedicationRecord, 0, len(req.Medications))
	for _, name := range req.Medications {
		meds = append(meds, health.MedicationRecord{Name: name})
	}
	conditions := health.InferDiseases(meds)
	if len(conditions) == 0 {
		return c.JSON(http.StatusOK, backend.DiseaseAnalysisResponse{
			Status:            health.AnalysisNoData,
			PredictedDiseases: []backend.PredictedDisease{},
			RiskLevel:         health.RiskLow,
		})
	}

	diseases := make([]backend.PredictedDisease, 0, len(conditions))
	for _, cond := range conditions {
		diseases = append(diseases, backend.PredictedDisease{
			Name:     cond.Name,
			Detail:   "처방 이력 기반 추정",
			Severity: health.SeverityMedium,
		})
	}
	return c.JSON(http.StatusOK, backend.DiseaseAnalysisResponse{
		Status:            health.AnalysisSuccess,
		PredictedDiseases: diseases,
		RiskLevel:         health.RiskMedium,
	})
}

// handleRegisterComplete implements POST /auth/register/complete.
func (s *Server) handleRegisterComplete(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return errJSON(c, http.StatusBadRequest, "잘못된 요청입니다.")
	}

	userID, _ := payload["userId"].(string)
	name, _ := payload["name"].(string)
	phone, _ := payload["phoneNumber"].(string)
	if userID == "" || phone == "" {
		return errJSON(c, http.StatusBadRequest, "필수 항목이 누락되었습니다.")
	}

	user := backend.User{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		PhoneNumber: phone,
	}
	s.mu.Lock()
	s.users[phone] = user
	s.mu.Unlock()

	token, err := s.signToken(userID, name)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, "토큰 발급에 실패했습니다.")
	}
	return c.JSON(http.StatusOK, backend.RegisterResult{Success: true, Token: token, User: user})
}
