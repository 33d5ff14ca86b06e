package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrTaskNotFound          = errors.New("task not found")
	ErrNothingToOrder        = errors.New("no pending tasks to order")
	ErrSuggestionUnavailable = errors.New("could not reach the AI service")
	ErrSuggestionMalformed   = errors.New("invalid AI response format")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// ValidationError is a caller mistake whose message is safe to show verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// fromValidation flattens ozzo errors into a single user-facing message.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return invalid(err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		field := strings.ReplaceAll(k, "_", " ")
		msg := fields[k].Error()
		if !strings.Contains(msg, field) {
			msg = field + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return invalid(strings.Join(msgs, "; "))
}
