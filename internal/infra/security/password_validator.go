package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// ValidationError represents a single credential policy violation.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements error for ValidationError.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Rule validates a credential according to a specific policy rule.
type Rule interface {
	Validate(value string) error
}

// RuleFunc adapts a function to be used as a Rule.
type RuleFunc func(value string) error

// Validate executes the underlying rule function.
func (f RuleFunc) Validate(value string) error {
	return f(value)
}

// Validator applies a sequence of rules and reports the first violation.
type Validator struct {
	rules []Rule
}

// NewValidator constructs a validator with the provided rules.
func NewValidator(rules ...Rule) *Validator {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Validator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *Validator) Validate(value string) error {
	if v == nil {
		return fmt.Errorf("validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(value); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the value has at least min characters.
func MinLengthRule(min int) Rule {
	return RuleFunc(func(value string) error {
		if len([]rune(value)) < min {
			return &ValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireLowerRule ensures the value contains at least one lowercase letter.
func RequireLowerRule() Rule {
	return RuleFunc(func(value string) error {
		for _, r := range value {
			if unicode.IsLower(r) {
				return nil
			}
		}
		return &ValidationError{
			Code:    "lowercase",
			Message: "must include at least one lowercase letter",
		}
	})
}

// RequireUpperRule ensures the value contains at least one uppercase letter.
func RequireUpperRule() Rule {
	return RuleFunc(func(value string) error {
		for _, r := range value {
			if unicode.IsUpper(r) {
				return nil
			}
		}
		return &ValidationError{
			Code:    "uppercase",
			Message: "must include at least one uppercase letter",
		}
	})
}

// RequireDigitRule ensures the value contains at least one digit.
func RequireDigitRule() Rule {
	return RuleFunc(func(value string) error {
		for _, r := range value {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &ValidationError{
			Code:    "digit",
			Message: "must include at least one digit",
		}
	})
}

// RequireStrengthRule enforces a minimum zxcvbn score to reject guessable
// passwords regardless of their character composition.
func RequireStrengthRule(minScore int, userInputs ...string) Rule {
	return RuleFunc(func(value string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(value, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &ValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}

// DefaultPasswordValidator returns the policy applied to new passwords:
// at least 7 characters with lower, upper, and digit.
func DefaultPasswordValidator() *Validator {
	return NewValidator(
		MinLengthRule(7),
		RequireLowerRule(),
		RequireUpperRule(),
		RequireDigitRule(),
	)
}

// DefaultLoginValidator returns the policy applied to logins on registration.
func DefaultLoginValidator() *Validator {
	return NewValidator(
		MinLengthRule(7),
		RequireLowerRule(),
		RequireUpperRule(),
		RequireDigitRule(),
	)
}
