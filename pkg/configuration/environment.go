package configuration

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/qa-api/qaload/pkg/logging"
)

// LoadEnv loads the env files that exist, looking in the working directory first
// and then in the enclosing go.mod root. It returns how many files were loaded.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		if wd, err := os.Getwd(); err == nil {
			if root, ok := findGoModRoot(wd); ok {
				for _, file := range envFiles {
					if p := filepath.Join(root, file); fs.FileExists(p) {
						existingFiles = append(existingFiles, p)
					}
				}
			}
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type TargetOptions struct {
	BaseURL      string        `env:"QALOAD_BASE_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout  time.Duration `env:"QALOAD_HTTP_TIMEOUT" envDefault:"60s"`
	MaxIdleConns int           `env:"QALOAD_MAX_IDLE_CONNS" envDefault:"200"`
}

func (t *TargetOptions) Validate() error {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid QALOAD_BASE_URL=%q: %w", t.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid QALOAD_BASE_URL=%q (expected http or https scheme)", t.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid QALOAD_BASE_URL=%q (missing host)", t.BaseURL)
	}
	if t.HTTPTimeout <= 0 {
		return fmt.Errorf("QALOAD_HTTP_TIMEOUT must be positive, got %s", t.HTTPTimeout)
	}
	if t.MaxIdleConns < 0 {
		return fmt.Errorf("QALOAD_MAX_IDLE_CONNS must be non-negative, got %d", t.MaxIdleConns)
	}
	return nil
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"qaload"`
}

type PrometheusOptions struct {
	Enabled        bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path           string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	PushGatewayURL string `env:"PROMETHEUS_PUSHGATEWAY_URL"`
}

type Configuration struct {
	Target        TargetOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions

	ProfileDir  string `env:"QALOAD_PROFILE_DIR" envDefault:"profiles"`
	RedisURL    string `env:"QALOAD_REDIS_URL"`
	DatabaseURL string `env:"QALOAD_DATABASE_URL"`
	RoutesPath  string `env:"ROUTES_PATH"`
	ServerPort  int    `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath     string `env:"LOG_PATH" envDefault:""`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Configuration) SocketAddress() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// Load builds a fresh Configuration from the given env files and the process environment.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target configuration error: %w", err)
	}
	if err := c.validateLogLevel(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

func (c *Configuration) validateLogLevel() error {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "" {
		level = "info"
	}
	switch level {
	case "silent", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel)
	}
	c.LogLevel = level
	return nil
}

func (c *Configuration) validateRedis() error {
	raw := strings.TrimSpace(c.RedisURL)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid QALOAD_REDIS_URL: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("invalid QALOAD_REDIS_URL=%q (expected redis:// or rediss://)", raw)
	}
	c.RedisURL = raw
	return nil
}

func findGoModRoot(start string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
