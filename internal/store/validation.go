package store

import (
	"errors"
	"strings"
	"unicode/utf8"

	"hauntq/internal/models"

	"github.com/go-playground/validator/v10"
)

const maxUserAgentBytes = 512

var validate = validator.New()

func NormalizeCreate(input CreateReservationInput) CreateReservationInput {
	input.Email = strings.TrimSpace(input.Email)
	input.Age = strings.TrimSpace(input.Age)
	input.Channel = strings.ToLower(strings.TrimSpace(input.Channel))
	if input.Channel == "" {
		input.Channel = models.ChannelWeb
	}
	input.UserAgent = truncateUTF8(input.UserAgent, maxUserAgentBytes)
	return input
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func ValidateCreate(input CreateReservationInput) error {
	if err := validate.Struct(input); err != nil {
		return translate(err)
	}
	return nil
}

func ValidateStatus(status string) error {
	if err := validate.Var(status, "required,oneof=未呼出 来場済 未確認 キャンセル"); err != nil {
		return Invalid("status", "must be one of "+strings.Join(models.Statuses, ", "))
	}
	return nil
}

func ValidateLookup(mode LookupMode) error {
	switch mode {
	case LookupByID, LookupByTicket:
		return nil
	default:
		return Invalid("by", "must be id or ticket")
	}
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Invalid("", err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Email":
		return Invalid("email", "must be a valid email address")
	case "Count":
		return Invalid("count", "must be between 1 and 10")
	case "Age":
		return Invalid("age", "must be one of "+strings.Join(models.AgeGroups, ", "))
	case "Channel":
		return Invalid("channel", "must be one of "+strings.Join(models.Channels, ", "))
	case "BusinessDay":
		return Invalid("businessDay", "must be a YYYY-MM-DD date")
	default:
		return Invalid(strings.ToLower(fe.Field()), "is invalid")
	}
}
