package serrors

import (
	"errors"
	"maps"
)

// BaseError is a coded error. Two BaseErrors match under errors.Is when their codes match.
type BaseError struct {
	Code         string
	Message      string
	TemplateData map[string]string
}

func NewError(code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithTemplateData returns a copy carrying extra details for rendering.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	cp := *e
	cp.TemplateData = maps.Clone(data)
	return &cp
}

// Code extracts the code of the first BaseError in the chain, or "".
func Code(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
