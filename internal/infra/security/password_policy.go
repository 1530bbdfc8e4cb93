package security

import (
	"strings"
)

const (
	usernameMaxLength = 30
	passwordMinLength = 8
	passwordMaxLength = 128
	answerMaxLength   = 50
)

// PasswordPolicy validates credential material submitted during registration,
// recovery setup, and password changes. The forbidden-byte check always runs
// against the raw value so padding a payload with whitespace cannot smuggle
// it past validation.
type PasswordPolicy struct {
	passwordValidator *PasswordValidator
}

// NewPasswordPolicy builds the policy. minStrengthScore above zero adds a
// zxcvbn estimation pass on top of the composition rules.
func NewPasswordPolicy(minStrengthScore int) *PasswordPolicy {
	return &PasswordPolicy{
		passwordValidator: NewPasswordValidator(
			ForbiddenBytesRule(),
			LengthRangeRule(passwordMinLength, passwordMaxLength),
			RequireDigitRule(),
			RequireSymbolRule(),
			RequirePasswordStrengthRule(minStrengthScore),
		),
	}
}

// ValidateUsername checks the raw username for forbidden bytes, then the
// trimmed form for emptiness and length. It returns the trimmed username.
func (p *PasswordPolicy) ValidateUsername(raw string) (string, error) {
	if ContainsForbiddenBytes(raw) {
		return "", &PasswordValidationError{
			Code:    "forbidden_characters",
			Message: "username contains forbidden characters",
		}
	}

	username := strings.TrimSpace(raw)
	if username == "" {
		return "", &PasswordValidationError{
			Code:    "empty_username",
			Message: "username must not be empty",
		}
	}
	if len([]rune(username)) > usernameMaxLength {
		return "", &PasswordValidationError{
			Code:    "max_length",
			Message: "username must be at most 30 characters long",
		}
	}

	return username, nil
}

// ValidatePassword applies the composition rules to the raw password.
// Passwords are never trimmed; surrounding whitespace is significant.
func (p *PasswordPolicy) ValidatePassword(raw string) error {
	return p.passwordValidator.Validate(raw)
}

// ValidateRecoveryAnswer checks the raw answer for forbidden bytes, then the
// normalized form for emptiness and length. It returns the normalized answer.
func (p *PasswordPolicy) ValidateRecoveryAnswer(raw string, normalize func(string) string) (string, error) {
	if ContainsForbiddenBytes(raw) {
		return "", &PasswordValidationError{
			Code:    "forbidden_characters",
			Message: "answer contains forbidden characters",
		}
	}

	answer := normalize(raw)
	if answer == "" {
		return "", &PasswordValidationError{
			Code:    "empty_answer",
			Message: "answer must not be empty",
		}
	}
	if len([]rune(answer)) > answerMaxLength {
		return "", &PasswordValidationError{
			Code:    "max_length",
			Message: "answer must be at most 50 characters long",
		}
	}

	return answer, nil
}
