// Package registration owns the account lifecycle of the wizard: the draft
// created at registration start, the login flow, and the finalizer that
// merges all staged pieces into the account-creation call.
package registration

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/careplus/careplus-go/internal/platform/apperr"
	"github.com/careplus/careplus-go/internal/platform/backend"
)

// Draft is the staged registration record. It is created at registration
// start, gains fields as wizard steps complete, and is consumed and purged
// at finalization. The password is kept only as a bcrypt hash.
type Draft struct {
	UserID       string `json:"userId"`
	PasswordHash string `json:"passwordHash"`
	Provider     string `json:"provider,omitempty"`
}

// NewDraft validates the credentials and returns a draft with the password
// hashed. The plaintext never leaves this function.
func NewDraft(userID, password string) (Draft, error) {
	userID = strings.TrimSpace(userID)
	if len(userID) < 4 {
		return Draft{}, apperr.NewValidation("userId", "아이디는 4자 이상 입력해주세요.")
	}
	if len(password) < 6 {
		return Draft{}, apperr.NewValidation("password", "비밀번호는 6자 이상 입력해주세요.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Draft{}, err
	}
	return Draft{UserID: userID, PasswordHash: string(hash)}, nil
}

// CheckPassword reports whether password matches the draft's hash.
func (d Draft) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) == nil
}

// AccountResult is the outcome of a successful finalization or login.
// Offline marks a locally synthesized session from the degraded-success
// fallback; it never occurs in production configurations.
type AccountResult struct {
	Token   string       `json:"token"`
	User    backend.User `json:"user"`
	Offline bool         `json:"offline,omitempty"`
}
