package loadtest

import (
	"fmt"
	"strconv"
	"strings"
)

// Response is what checks see of a finished request. Status is 0 when the
// request never got a response.
type Response struct {
	Status int
	Body   []byte
}

type Check struct {
	Name string
	Fn   func(Response) bool
}

type CheckResult struct {
	Name string
	OK   bool
}

func StatusIs(code int) Check {
	return Check{
		Name: fmt.Sprintf("status is %d", code),
		Fn:   func(r Response) bool { return r.Status == code },
	}
}

func BodyNotEmpty() Check {
	return Check{
		Name: "response body",
		Fn:   func(r Response) bool { return len(r.Body) > 0 },
	}
}

// CheckByKey resolves the keys used in profile files: "status:<code>" and "body-not-empty".
func CheckByKey(key string) (Check, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case key == "body-not-empty":
		return BodyNotEmpty(), nil
	case strings.HasPrefix(key, "status:"):
		code, err := strconv.Atoi(strings.TrimPrefix(key, "status:"))
		if err != nil || code < 100 || code > 599 {
			return Check{}, fmt.Errorf("%w: %q", ErrUnknownCheck, key)
		}
		return StatusIs(code), nil
	default:
		return Check{}, fmt.Errorf("%w: %q", ErrUnknownCheck, key)
	}
}

func runChecks(checks []Check, resp Response) []CheckResult {
	if len(checks) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, CheckResult{Name: c.Name, OK: c.Fn(resp)})
	}
	return out
}
