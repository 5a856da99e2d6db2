package loadtest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuiltinProfiles_Valid(t *testing.T) {
	profiles := BuiltinProfiles()
	require.Len(t, profiles, 5)
	for _, p := range profiles {
		t.Run(p.Name, func(t *testing.T) {
			require.NoError(t, p.Validate())
		})
	}
}

func TestBuiltinProfiles_Shapes(t *testing.T) {
	endurance, err := BuiltinProfile("endurance-post")
	require.NoError(t, err)
	require.Equal(t, 50, endurance.VUs)
	require.Equal(t, 12*time.Hour, endurance.Duration)
	require.Equal(t, ScenarioCreateUser, endurance.Scenario)

	load, err := BuiltinProfile("load-get")
	require.NoError(t, err)
	require.Equal(t, 100, load.VUs)
	require.Equal(t, time.Minute, load.Duration)
	require.Equal(t, ScenarioListUsers, load.Scenario)
	require.Equal(t, []string{"status:200", "body-not-empty"}, load.Checks)

	spike, err := BuiltinProfile("spike-get")
	require.NoError(t, err)
	require.Equal(t, 5000, spike.VUs)
	require.Equal(t, time.Second, spike.Duration)
	require.Empty(t, spike.Thresholds)

	stress, err := BuiltinProfile("stress-post")
	require.NoError(t, err)
	require.True(t, stress.Ramping())
	require.Len(t, stress.Stages, 9)
	require.Equal(t, 800, stress.MaxVUs())
	require.Equal(t, 0, stress.Stages[8].Target)
}

func TestBuiltinProfile_ReturnsCopy(t *testing.T) {
	p, err := BuiltinProfile("stress-post")
	require.NoError(t, err)
	p.Stages[0].Target = 1
	p.Thresholds[MetricHTTPReqFailed][0] = "rate<1"

	again, err := BuiltinProfile("stress-post")
	require.NoError(t, err)
	require.Equal(t, 100, again.Stages[0].Target)
	require.Equal(t, "rate<0.01", again.Thresholds[MetricHTTPReqFailed][0])
}

func TestBuiltinProfile_Suggestion(t *testing.T) {
	_, err := BuiltinProfile("spike-pst")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownProfile))
	require.Contains(t, err.Error(), `did you mean "spike-post"`)

	_, err = BuiltinProfile("zzz")
	require.Error(t, err)
	require.Contains(t, err.Error(), "available:")
}

func TestProfileValidate_Rejects(t *testing.T) {
	base := func() Profile {
		return Profile{Name: "p", Scenario: ScenarioListUsers, VUs: 1, Duration: time.Second}
	}
	cases := map[string]func(p *Profile){
		"missing name":        func(p *Profile) { p.Name = "" },
		"missing scenario":    func(p *Profile) { p.Scenario = "" },
		"unknown scenario":    func(p *Profile) { p.Scenario = "delete-user" },
		"zero vus":            func(p *Profile) { p.VUs = 0 },
		"zero duration":       func(p *Profile) { p.Duration = 0 },
		"negative rps":        func(p *Profile) { p.RPS = -1 },
		"flat and stages":     func(p *Profile) { p.Stages = []Stage{{Duration: time.Second, Target: 1}} },
		"bad check":           func(p *Profile) { p.Checks = []string{"status:abc"} },
		"bad threshold":       func(p *Profile) { p.Thresholds = map[string][]string{MetricHTTPReqFailed: {"p(95)<1"}} },
		"zero stage duration": func(p *Profile) { p.VUs, p.Duration, p.Stages = 0, 0, []Stage{{Target: 1}} },
		"all targets zero": func(p *Profile) {
			p.VUs, p.Duration, p.Stages = 0, 0, []Stage{{Duration: time.Second}, {Duration: time.Second}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base()
			mutate(&p)
			require.Error(t, p.Validate())
		})
	}
	ok := base()
	require.NoError(t, ok.Validate())
}

func TestProfileValidate_ZeroTargetStageAllowed(t *testing.T) {
	p := Profile{
		Name:     "ramp",
		Scenario: ScenarioGetUser,
		Stages: []Stage{
			{Duration: time.Second, Target: 0},
			{Duration: time.Second, Target: 3},
			{Duration: time.Second, Target: 0},
		},
	}
	require.NoError(t, p.Validate())
	require.Equal(t, 3*time.Second, p.TotalDuration())
	require.Equal(t, 3, p.MaxVUs())
}

func TestLoadProfileFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenario: list-users
vus: 3
duration: 1.5s
graceful_stop: 5s
rps: 20
checks: ["status:200"]
thresholds:
  http_req_duration: ["p(99)<500", "avg<100"]
`), 0o644))

	p, err := LoadProfileFile(path)
	require.NoError(t, err)
	require.Equal(t, "smoke", p.Name)
	require.Equal(t, 3, p.VUs)
	require.Equal(t, 1500*time.Millisecond, p.Duration)
	require.Equal(t, 5*time.Second, p.GracefulStop)
	require.Equal(t, 20, p.RPS)

	ths, err := p.ParsedThresholds()
	require.NoError(t, err)
	require.Len(t, ths, 2)
	require.Equal(t, "p(99)<500", ths[0].Expression)
}

func TestLoadProfileFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soak.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "soak"
scenario = "create-user"

[[stages]]
duration = "1m"
target = 10

[[stages]]
duration = "1d"
target = 10

[thresholds]
http_req_failed = ["rate<0.05"]
`), 0o644))

	p, err := LoadProfileFile(path)
	require.NoError(t, err)
	require.Equal(t, "soak", p.Name)
	require.Len(t, p.Stages, 2)
	require.Equal(t, 24*time.Hour, p.Stages[1].Duration)
	require.Equal(t, 24*time.Hour+time.Minute, p.TotalDuration())
}

func TestLoadProfileFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(path, []byte("scenario: list-users\nvus: 1\nduration: soon\n"), 0o644))

	_, err := LoadProfileFile(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidProfile), err)
}

func TestResolveProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quick.yaml"), []byte("scenario: get-user\nvus: 1\nduration: 1s\n"), 0o644))

	p, err := ResolveProfile("quick.yaml", dir)
	require.NoError(t, err)
	require.Equal(t, "quick", p.Name)

	p, err = ResolveProfile("load-get", dir)
	require.NoError(t, err)
	require.Equal(t, "load-get", p.Name)

	_, err = ResolveProfile("missing.yaml", dir)
	require.True(t, errors.Is(err, ErrUnknownProfile))
}

func TestMarshalProfileYAML_RoundTrip(t *testing.T) {
	for _, p := range BuiltinProfiles() {
		t.Run(p.Name, func(t *testing.T) {
			raw, err := MarshalProfileYAML(p)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), p.Name+".yaml")
			require.NoError(t, os.WriteFile(path, raw, 0o644))
			got, err := LoadProfileFile(path)
			require.NoError(t, err)

			require.Equal(t, p.Scenario, got.Scenario)
			require.Equal(t, p.VUs, got.VUs)
			require.Equal(t, p.Duration, got.Duration)
			require.Equal(t, p.Stages, got.Stages)
			require.Equal(t, p.TotalDuration(), got.TotalDuration())
		})
	}
}

func TestProfileFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.toml", "a.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	files, err := ProfileFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.toml")}, files)

	files, err = ProfileFiles(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.Empty(t, files)
}
