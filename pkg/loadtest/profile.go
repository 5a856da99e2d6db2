package loadtest

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const DefaultGracefulStop = 30 * time.Second

// Stage is one ramp step: reach Target VUs over Duration.
type Stage struct {
	Duration time.Duration `json:"duration" validate:"gt=0"`
	Target   int           `json:"target" validate:"gte=0"`
}

// Profile is the load-profile contract: either flat VUs x Duration or Stages,
// plus optional thresholds. A profile is never mutated during a run.
type Profile struct {
	Name         string              `json:"name" validate:"required"`
	Description  string              `json:"description,omitempty"`
	Scenario     string              `json:"scenario" validate:"required"`
	VUs          int                 `json:"vus,omitempty" validate:"gte=0"`
	Duration     time.Duration       `json:"duration,omitempty" validate:"gte=0"`
	StartVUs     int                 `json:"start_vus,omitempty" validate:"gte=0"`
	Stages       []Stage             `json:"stages,omitempty" validate:"dive"`
	GracefulStop time.Duration       `json:"graceful_stop,omitempty" validate:"gte=0"`
	RPS          int                 `json:"rps,omitempty" validate:"gte=0"`
	Checks       []string            `json:"checks,omitempty"`
	Thresholds   map[string][]string `json:"thresholds,omitempty"`
}

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

func (p *Profile) Ramping() bool {
	return len(p.Stages) > 0
}

// TotalDuration is the scheduled length, excluding graceful stop.
func (p *Profile) TotalDuration() time.Duration {
	if !p.Ramping() {
		return p.Duration
	}
	var total time.Duration
	for _, s := range p.Stages {
		total += s.Duration
	}
	return total
}

// MaxVUs is the highest concurrency the schedule reaches.
func (p *Profile) MaxVUs() int {
	if !p.Ramping() {
		return p.VUs
	}
	m := p.StartVUs
	for _, s := range p.Stages {
		m = max(m, s.Target)
	}
	return m
}

func (p *Profile) Validate() error {
	if err := validate().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return invalidProfile("%s", strings.Join(msgs, "; "))
		}
		return invalidProfile("%v", err)
	}

	if p.Ramping() {
		if p.VUs != 0 || p.Duration != 0 {
			return invalidProfile("%s: vus/duration and stages are mutually exclusive", p.Name)
		}
		if p.MaxVUs() <= 0 {
			return invalidProfile("%s: at least one stage target must be positive", p.Name)
		}
	} else {
		if p.VUs <= 0 {
			return invalidProfile("%s: vus must be positive", p.Name)
		}
		if p.Duration <= 0 {
			return invalidProfile("%s: duration must be positive", p.Name)
		}
	}

	if !slices.Contains(ScenarioNames(), p.Scenario) {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, p.Scenario)
	}
	for _, key := range p.Checks {
		if _, err := CheckByKey(key); err != nil {
			return err
		}
	}
	if _, err := p.ParsedThresholds(); err != nil {
		return err
	}
	return nil
}

// ParsedThresholds parses every expression, ordered by metric then declaration.
func (p *Profile) ParsedThresholds() ([]Threshold, error) {
	metrics := make([]string, 0, len(p.Thresholds))
	for m := range p.Thresholds {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var out []Threshold
	for _, m := range metrics {
		for _, expr := range p.Thresholds[m] {
			th, err := ParseThreshold(m, expr)
			if err != nil {
				return nil, err
			}
			out = append(out, th)
		}
	}
	return out, nil
}

// BuildChecks resolves the profile's check keys.
func (p *Profile) BuildChecks() ([]Check, error) {
	out := make([]Check, 0, len(p.Checks))
	for _, key := range p.Checks {
		c, err := CheckByKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Profile) gracefulStop() time.Duration {
	if p.GracefulStop > 0 {
		return p.GracefulStop
	}
	return DefaultGracefulStop
}
