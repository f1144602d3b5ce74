// Package verification implements the identity-verification steps of the
// registration wizard: input validation and normalization, the initiation
// request, and the completion gate the user confirms after finishing
// verification in the external provider app.
package verification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/careplus/careplus-go/internal/platform/apperr"
)

// Provider is one of the external identity-verification providers the user
// can verify through.
type Provider struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Providers lists the supported verification providers in display order.
var Providers = []Provider{
	{ID: "kakao", DisplayName: "카카오"},
	{ID: "payko", DisplayName: "페이코"},
	{ID: "kukmin", DisplayName: "KB국민은행"},
	{ID: "samsung", DisplayName: "삼성패스"},
	{ID: "pass", DisplayName: "통신사패스"},
	{ID: "shinhan", DisplayName: "신한"},
	{ID: "naver", DisplayName: "네이버"},
}

// ProviderByID looks up a provider. Unknown ids get a generic label so the
// flow never breaks on a provider the catalog does not know yet.
func ProviderByID(id string) Provider {
	for _, p := range Providers {
		if p.ID == id {
			return p
		}
	}
	return Provider{ID: id, DisplayName: "간편인증"}
}

// KnownProvider reports whether id is in the catalog.
func KnownProvider(id string) bool {
	for _, p := range Providers {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Identity holds the user-entered identity fields. BirthDate is the 6-digit
// short form (YYMMDD); PhoneNumber may still contain separators.
type Identity struct {
	Name        string `json:"name"`
	BirthDate   string `json:"birthDate"`
	PhoneNumber string `json:"phoneNumber"`
}

// Validate checks the identity fields locally. It runs before any network
// call; a failure blocks submission with a user-facing message.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.Name) == "" {
		return apperr.NewValidation("name", "이름을 입력해주세요.")
	}
	birth := DigitsOnly(id.BirthDate)
	if len(birth) != 6 {
		return apperr.NewValidation("birthDate", "생년월일 6자리를 입력해주세요.")
	}
	phone := DigitsOnly(id.PhoneNumber)
	if len(phone) != 11 {
		return apperr.NewValidation("phoneNumber", "올바른 휴대폰 번호 11자리를 입력해주세요.")
	}
	return nil
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExpandBirthDate converts a 6-digit YYMMDD birth date into the 8-digit
// YYYYMMDD form the backend expects. Century pivot is 50: YY over 50 falls in
// the 1900s, everything else in the 2000s.
func ExpandBirthDate(six string) (string, error) {
	digits := DigitsOnly(six)
	if len(digits) != 6 {
		return "", fmt.Errorf("birth date must be 6 digits, got %q", six)
	}
	yy, err := strconv.Atoi(digits[:2])
	if err != nil {
		return "", fmt.Errorf("birth date year: %w", err)
	}
	century := "20"
	if yy > 50 {
		century = "19"
	}
	return century + digits, nil
}

// FormatBirthDate renders entered birth-date digits as YY.MM.DD, partially
// while the user is still typing.
func FormatBirthDate(input string) string {
	digits := DigitsOnly(input)
	if len(digits) > 6 {
		digits = digits[:6]
	}
	switch {
	case len(digits) <= 2:
		return digits
	case len(digits) <= 4:
		return digits[:2] + "." + digits[2:]
	default:
		return digits[:2] + "." + digits[2:4] + "." + digits[4:]
	}
}

// FormatPhoneNumber renders entered phone digits as 010-1234-5678, partially
// while the user is still typing.
func FormatPhoneNumber(input string) string {
	digits := DigitsOnly(input)
	if len(digits) > 11 {
		digits = digits[:11]
	}
	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 7:
		return digits[:3] + "-" + digits[3:]
	default:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	}
}
