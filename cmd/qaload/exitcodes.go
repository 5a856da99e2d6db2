package main

import (
	"errors"

	"github.com/qa-api/qaload/pkg/loadtest"
	"github.com/qa-api/qaload/pkg/routing"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitRuntime    = 1
	exitValidation = 2
	// exitThresholds matches k6's ThresholdsHaveFailed.
	exitThresholds = 99
	// exitInterrupted matches k6's ExternalAbort.
	exitInterrupted = 105
)

var validationErrors = []error{
	loadtest.ErrInvalidProfile,
	loadtest.ErrUnknownProfile,
	loadtest.ErrUnknownScenario,
	loadtest.ErrUnknownCheck,
	loadtest.ErrInvalidThreshold,
	routing.ErrInvalidRoute,
	routing.ErrDuplicateRoute,
	routing.ErrTableNotFound,
}

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return exitValidation
		}
	}
	return exitRuntime
}
