package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Layouts accepted by the date and time validators.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// MinPhoneDigits is the minimum number of digits a phone number must contain.
const MinPhoneDigits = 10

// MeetingStatuses lists the accepted values of the meetings status column.
var MeetingStatuses = []string{"scheduled", "in-progress", "completed", "cancelled"}

// DefaultMeetingStatus is used when a meetings row leaves status blank.
const DefaultMeetingStatus = "scheduled"

// validate is safe for concurrent use once custom rules are registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("phone", isPhone); err != nil {
		panic(fmt.Sprintf("register phone validation: %v", err))
	}
	return v
}

// isPhone accepts digits plus common separators, with at least MinPhoneDigits digits.
func isPhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= MinPhoneDigits
}

// tagValidator builds a ValidateFunc from a validator tag. The value is
// returned unchanged when valid.
func tagValidator(tag, message string) ValidateFunc {
	return func(raw string) (string, error) {
		if err := validate.Var(raw, tag); err != nil {
			return "", errors.New(message)
		}
		return raw, nil
	}
}

// Email validates an email address and lowercases it.
func Email(message string) ValidateFunc {
	check := tagValidator("email", message)
	return func(raw string) (string, error) {
		v, err := check(raw)
		if err != nil {
			return "", err
		}
		return strings.ToLower(v), nil
	}
}

// Phone validates a phone number with at least MinPhoneDigits digits.
func Phone(message string) ValidateFunc {
	return tagValidator("phone", message)
}

// Date validates a YYYY-MM-DD calendar date.
func Date(message string) ValidateFunc {
	return tagValidator("datetime="+DateLayout, message)
}

// Clock validates a 24-hour HH:MM time and pads the hour to two digits.
func Clock(message string) ValidateFunc {
	return func(raw string) (string, error) {
		if err := validate.Var(raw, "datetime="+TimeLayout); err != nil {
			return "", errors.New(message)
		}
		t, err := time.Parse(TimeLayout, raw)
		if err != nil {
			return "", errors.New(message)
		}
		return t.Format(TimeLayout), nil
	}
}

// OneOf validates membership in values, ignoring case, and returns the
// canonical spelling.
func OneOf(values []string, message string) ValidateFunc {
	return func(raw string) (string, error) {
		for _, v := range values {
			if strings.EqualFold(v, raw) {
				return v, nil
			}
		}
		return "", errors.New(message)
	}
}

// MaxLen rejects values longer than n characters.
func MaxLen(n int, message string) ValidateFunc {
	return tagValidator(fmt.Sprintf("max=%d", n), message)
}
