package loadtest

import (
	"encoding/json"
	"fmt"
	"os"
)

const ReportSchemaVersion = 1

type ReportTarget struct {
	BaseURL string `json:"base_url"`
	Method  string `json:"method"`
	URL     string `json:"url"`
}

type ReportStage struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Target          int     `json:"target"`
}

type ReportProfile struct {
	Name            string        `json:"name"`
	Scenario        string        `json:"scenario"`
	VUs             int           `json:"vus"`
	MaxVUs          int           `json:"max_vus"`
	DurationSeconds float64       `json:"duration_seconds"`
	Stages          []ReportStage `json:"stages,omitempty"`
	RPS             int           `json:"rps,omitempty"`
}

// Report is the qaload_report.v1 document written after every run.
type Report struct {
	SchemaVersion int               `json:"schema_version"`
	RunID         string            `json:"run_id"`
	StartedAt     string            `json:"started_at"`
	FinishedAt    string            `json:"finished_at"`
	Interrupted   bool              `json:"interrupted"`
	Target        ReportTarget      `json:"target"`
	Profile       ReportProfile     `json:"profile"`
	Results       []EndpointSummary `json:"results"`
	Metrics       *Summary          `json:"metrics"`
	Checks        []CheckSummary    `json:"checks"`
	Thresholds    []ThresholdResult `json:"thresholds"`
	Passed        bool              `json:"passed"`
	Notes         string            `json:"notes"`
}

func reportProfile(p *Profile) ReportProfile {
	rp := ReportProfile{
		Name:            p.Name,
		Scenario:        p.Scenario,
		VUs:             p.VUs,
		MaxVUs:          p.MaxVUs(),
		DurationSeconds: p.TotalDuration().Seconds(),
		RPS:             p.RPS,
	}
	for _, s := range p.Stages {
		rp.Stages = append(rp.Stages, ReportStage{DurationSeconds: s.Duration.Seconds(), Target: s.Target})
	}
	return rp
}

// FailedThresholds lists the expressions that did not hold.
func (r *Report) FailedThresholds() []ThresholdResult {
	var out []ThresholdResult
	for _, t := range r.Thresholds {
		if !t.OK {
			out = append(out, t)
		}
	}
	return out
}

func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	if r.SchemaVersion != ReportSchemaVersion {
		return nil, fmt.Errorf("report %s: unsupported schema_version %d", path, r.SchemaVersion)
	}
	return &r, nil
}
