package loadtest

import (
	"fmt"

	"github.com/qa-api/qaload/pkg/serrors"
)

var (
	ErrInvalidProfile   = serrors.NewError("LOADTEST_INVALID_PROFILE", "invalid load profile")
	ErrUnknownProfile   = serrors.NewError("LOADTEST_UNKNOWN_PROFILE", "unknown load profile")
	ErrUnknownScenario  = serrors.NewError("LOADTEST_UNKNOWN_SCENARIO", "unknown scenario")
	ErrUnknownCheck     = serrors.NewError("LOADTEST_UNKNOWN_CHECK", "unknown check")
	ErrInvalidThreshold = serrors.NewError("LOADTEST_INVALID_THRESHOLD", "invalid threshold")
)

func invalidProfile(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidProfile}, args...)...)
}

func invalidThreshold(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidThreshold}, args...)...)
}
