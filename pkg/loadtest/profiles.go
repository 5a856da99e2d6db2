package loadtest

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

func defaultThresholds() map[string][]string {
	return map[string][]string{
		MetricHTTPReqFailed:   {"rate<0.01"},
		MetricHTTPReqDuration: {"p(95)<2000"},
	}
}

var builtinProfiles = []Profile{
	{
		Name:        "endurance-post",
		Description: "Steady user creation over a long period",
		Scenario:    ScenarioCreateUser,
		VUs:         50,
		Duration:    12 * time.Hour,
		Thresholds:  defaultThresholds(),
	},
	{
		Name:        "load-get",
		Description: "Sustained user listing with response checks",
		Scenario:    ScenarioListUsers,
		VUs:         100,
		Duration:    60 * time.Second,
		Checks:      []string{"status:200", "body-not-empty"},
		Thresholds:  defaultThresholds(),
	},
	{
		Name:        "spike-post",
		Description: "Burst of user creation",
		Scenario:    ScenarioCreateUser,
		VUs:         5000,
		Duration:    time.Second,
		Thresholds:  defaultThresholds(),
	},
	{
		Name:        "spike-get",
		Description: "Burst of user listing",
		Scenario:    ScenarioListUsers,
		VUs:         5000,
		Duration:    time.Second,
	},
	{
		Name:        "stress-post",
		Description: "Stepped ramp of user creation up to 800 VUs, then recovery",
		Scenario:    ScenarioCreateUser,
		Stages: []Stage{
			{Duration: 10 * time.Second, Target: 100},
			{Duration: 2 * time.Minute, Target: 100},
			{Duration: 10 * time.Second, Target: 200},
			{Duration: 2 * time.Minute, Target: 200},
			{Duration: 10 * time.Second, Target: 500},
			{Duration: 2 * time.Minute, Target: 500},
			{Duration: 10 * time.Second, Target: 800},
			{Duration: 2 * time.Minute, Target: 800},
			{Duration: 30 * time.Second, Target: 0},
		},
		Thresholds: defaultThresholds(),
	},
}

// BuiltinProfiles returns copies of the shipped profiles.
func BuiltinProfiles() []Profile {
	out := make([]Profile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		out = append(out, p.clone())
	}
	return out
}

func BuiltinProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		names = append(names, p.Name)
	}
	return names
}

// BuiltinProfile finds a shipped profile by name and suggests close names on a miss.
func BuiltinProfile(name string) (Profile, error) {
	name = strings.TrimSpace(name)
	for _, p := range builtinProfiles {
		if p.Name == name {
			return p.clone(), nil
		}
	}
	if suggestions := fuzzy.RankFindFold(name, BuiltinProfileNames()); len(suggestions) > 0 {
		slices.SortFunc(suggestions, func(a, b fuzzy.Rank) int { return a.Distance - b.Distance })
		return Profile{}, fmt.Errorf("%w: %q (did you mean %q?)", ErrUnknownProfile, name, suggestions[0].Target)
	}
	return Profile{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProfile, name, strings.Join(BuiltinProfileNames(), ", "))
}

// ResolveProfile accepts a built-in name, a profile file path, or a file name
// relative to dir.
func ResolveProfile(nameOrPath, dir string) (Profile, error) {
	if isProfileFile(nameOrPath) {
		if _, err := os.Stat(nameOrPath); err == nil {
			return LoadProfileFile(nameOrPath)
		}
		if dir != "" {
			candidate := filepath.Join(dir, nameOrPath)
			if _, err := os.Stat(candidate); err == nil {
				return LoadProfileFile(candidate)
			}
		}
		return Profile{}, fmt.Errorf("%w: file %q not found", ErrUnknownProfile, nameOrPath)
	}
	return BuiltinProfile(nameOrPath)
}

type stageFile struct {
	Duration string `yaml:"duration" toml:"duration"`
	Target   int    `yaml:"target" toml:"target"`
}

type profileFile struct {
	Name         string              `yaml:"name" toml:"name"`
	Description  string              `yaml:"description,omitempty" toml:"description"`
	Scenario     string              `yaml:"scenario" toml:"scenario"`
	VUs          int                 `yaml:"vus,omitempty" toml:"vus"`
	Duration     string              `yaml:"duration,omitempty" toml:"duration"`
	StartVUs     int                 `yaml:"start_vus,omitempty" toml:"start_vus"`
	Stages       []stageFile         `yaml:"stages,omitempty" toml:"stages"`
	GracefulStop string              `yaml:"graceful_stop,omitempty" toml:"graceful_stop"`
	RPS          int                 `yaml:"rps,omitempty" toml:"rps"`
	Checks       []string            `yaml:"checks,omitempty" toml:"checks"`
	Thresholds   map[string][]string `yaml:"thresholds,omitempty" toml:"thresholds"`
}

// LoadProfileFile reads a YAML or TOML profile and validates it.
func LoadProfileFile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	var file profileFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &file); err != nil {
			return Profile{}, invalidProfile("%s: %v", path, err)
		}
	default:
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Profile{}, invalidProfile("%s: %v", path, err)
		}
	}

	p, err := file.toProfile()
	if err != nil {
		return Profile{}, invalidProfile("%s: %v", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (f profileFile) toProfile() (Profile, error) {
	p := Profile{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Scenario:    strings.TrimSpace(f.Scenario),
		VUs:         f.VUs,
		StartVUs:    f.StartVUs,
		RPS:         f.RPS,
		Checks:      f.Checks,
		Thresholds:  f.Thresholds,
	}
	var err error
	if p.Duration, err = parseDuration(f.Duration); err != nil {
		return Profile{}, fmt.Errorf("duration: %w", err)
	}
	if p.GracefulStop, err = parseDuration(f.GracefulStop); err != nil {
		return Profile{}, fmt.Errorf("graceful_stop: %w", err)
	}
	for i, s := range f.Stages {
		d, err := parseDuration(s.Duration)
		if err != nil {
			return Profile{}, fmt.Errorf("stages[%d].duration: %w", i, err)
		}
		p.Stages = append(p.Stages, Stage{Duration: d, Target: s.Target})
	}
	return p, nil
}

// parseDuration accepts Go duration strings plus a "d" day suffix; empty is zero.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		d, err := time.ParseDuration(days + "h")
		if err != nil {
			return 0, err
		}
		return d * 24, nil
	}
	return time.ParseDuration(raw)
}

func isProfileFile(s string) bool {
	switch strings.ToLower(filepath.Ext(s)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

func (p Profile) clone() Profile {
	cp := p
	cp.Stages = slices.Clone(p.Stages)
	cp.Checks = slices.Clone(p.Checks)
	if p.Thresholds != nil {
		cp.Thresholds = make(map[string][]string, len(p.Thresholds))
		for k, v := range maps.All(p.Thresholds) {
			cp.Thresholds[k] = slices.Clone(v)
		}
	}
	return cp
}

// MarshalProfileYAML renders p in the profile file format LoadProfileFile reads.
func MarshalProfileYAML(p Profile) ([]byte, error) {
	f := profileFile{
		Name:        p.Name,
		Description: p.Description,
		Scenario:    p.Scenario,
		VUs:         p.VUs,
		StartVUs:    p.StartVUs,
		RPS:         p.RPS,
		Checks:      p.Checks,
		Thresholds:  p.Thresholds,
	}
	if p.Duration > 0 {
		f.Duration = p.Duration.String()
	}
	if p.GracefulStop > 0 {
		f.GracefulStop = p.GracefulStop.String()
	}
	for _, s := range p.Stages {
		f.Stages = append(f.Stages, stageFile{Duration: s.Duration.String(), Target: s.Target})
	}
	return yaml.Marshal(f)
}

// ProfileFiles lists the profile files found directly in dir, sorted by name.
func ProfileFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && isProfileFile(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}
