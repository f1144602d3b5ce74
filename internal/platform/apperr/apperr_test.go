package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage_PrefersBackendText(t *testing.T) {
	err := NewAggregation("건강검진 내역이 없습니다.", errors.New("status FAIL"))
	if got := UserMessage(err); got != "건강검진 내역이 없습니다." {
		t.Errorf("got %q, want backend-supplied message", got)
	}
}

func TestUserMessage_FallbackPerKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewVerificationRequest("", errors.New("dial tcp")), FallbackVerification},
		{NewAggregation("", errors.New("timeout")), FallbackAggregation},
		{NewFinalization("", errors.New("500")), FallbackFinalization},
		{errors.New("plain"), FallbackGeneric},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUserMessage_WrappedError(t *testing.T) {
	inner := NewVerificationRequest("인증 실패", nil)
	wrapped := fmt.Errorf("step submit: %w", inner)
	if got := UserMessage(wrapped); got != "인증 실패" {
		t.Errorf("got %q, want unwrapped message", got)
	}
}

func TestValidationError_FieldInError(t *testing.T) {
	var err error = NewValidation("phoneNumber", "올바른 전화번호를 입력해주세요.")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected ValidationError")
	}
	if ve.Field != "phoneNumber" {
		t.Errorf("got field %q", ve.Field)
	}
	if err.Error() != "phoneNumber: 올바른 전화번호를 입력해주세요." {
		t.Errorf("got %q", err.Error())
	}
}
