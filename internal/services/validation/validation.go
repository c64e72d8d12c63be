// Package validation holds the pure checks applied to participant names,
// message payloads and result limits before anything reaches storage.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/mcoot/presencechat/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report violations by their wire name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

type participantInput struct {
	Name string `json:"name" validate:"required"`
}

type messageInput struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Kind string `json:"type" validate:"required,oneof=chat private"`
}

// MessageDraft is a message payload that passed validation
type MessageDraft struct {
	To   string
	Text string
	Kind model.MessageKind
}

// ParticipantName trims name and rejects it if nothing is left.
// name is the decoded JSON value; anything but a string is a violation.
func ParticipantName(name any) (string, error) {
	var wrongType []string
	in := participantInput{Name: strings.TrimSpace(asString("name", name, &wrongType))}
	if err := check(in, wrongType); err != nil {
		return "", err
	}
	return in.Name, nil
}

// Message checks a message payload and reports every violation at once.
// Values are decoded JSON: nil means absent, and non-strings are violations.
// to and text are trimmed before the emptiness checks.
func Message(to, text, kind any) (*MessageDraft, error) {
	var wrongType []string
	in := messageInput{
		To:   strings.TrimSpace(asString("to", to, &wrongType)),
		Text: strings.TrimSpace(asString("text", text, &wrongType)),
		Kind: asString("type", kind, &wrongType),
	}
	if err := check(in, wrongType); err != nil {
		return nil, err
	}
	return &MessageDraft{
		To:   in.To,
		Text: in.Text,
		Kind: model.MessageKind(in.Kind),
	}, nil
}

// asString returns v if it is a string. Other non-nil values are recorded
// in wrongType under field and read as empty.
func asString(field string, v any, wrongType *[]string) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		*wrongType = append(*wrongType, field)
		return ""
	}
}

// Limit parses an optional result limit.
// An empty raw value means no limit; anything else must be a positive integer.
func Limit(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, model.NewLimitError(fmt.Sprintf("limit %q is not an integer", raw))
	}
	if err := validate.Var(n, "gt=0"); err != nil {
		return nil, model.NewLimitError(fmt.Sprintf("limit %d is not positive", n))
	}
	return &n, nil
}

// check validates in and merges its violations with the fields that
// arrived with the wrong JSON type. A wrong-typed field reports only that.
func check(in any, wrongType []string) error {
	details := lo.Map(wrongType, func(field string, _ int) string {
		return field + " must be a string"
	})

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			if lo.Contains(wrongType, fe.Field()) {
				continue
			}
			details = append(details, describe(fe))
		}
	}

	if len(details) == 0 {
		return nil
	}
	return model.NewValidationError(details...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
