package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/surveyrun/internal/demographics"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/survey"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "surveyrun.yaml"

const cutoffLayout = "2006-01-02"

// Config represents the overall application configuration
type Config struct {
	Survey       SurveySection       `yaml:"survey"`
	Cohort       CohortSection       `yaml:"cohort"`
	Demographics DemographicsSection `yaml:"demographics"`
	Transform    TransformSection    `yaml:"transform"`
	Database     DatabaseSection     `yaml:"database"`
	Cache        CacheSection        `yaml:"cache"`
	Server       ServerSection       `yaml:"server"`
}

// SurveySection describes the export and its Likert scale
type SurveySection struct {
	Rank            survey.RankDomain `yaml:"rank"`
	Questions       []survey.Question `yaml:"questions"`
	VarianceColumns []string          `yaml:"variance_columns"`
}

// CohortSection splits participants into recruitment waves
type CohortSection struct {
	Cutoff string `yaml:"cutoff"`
	Before string `yaml:"before"`
	After  string `yaml:"after"`
}

type DemographicsSection struct {
	Columns      []string `yaml:"columns"`
	BirthYearMin int      `yaml:"birth_year_min"`
	BirthYearMax int      `yaml:"birth_year_max"`
}

type TransformSection struct {
	Workers int `yaml:"workers"`
}

// DatabaseSection holds run-store connection settings
type DatabaseSection struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// CacheSection holds redis cache settings
type CacheSection struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker guarding the cache
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// ServerSection holds HTTP API settings
type ServerSection struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RPS            float64       `yaml:"rps"`
	Burst          int           `yaml:"burst"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Survey: SurveySection{
			Rank:            survey.DefaultRankDomain(),
			Questions:       survey.DefaultQuestions().Questions(),
			VarianceColumns: append([]string(nil), likert.DefaultVarianceColumns...),
		},
		Cohort: CohortSection{
			Cutoff: "2021-04-05",
			Before: "Amazon",
			After:  "XLab",
		},
		Demographics: DemographicsSection{
			Columns:      append([]string(nil), demographics.DefaultColumns...),
			BirthYearMin: 1920,
			BirthYearMax: 2010,
		},
		Transform: TransformSection{Workers: 1},
		Database: DatabaseSection{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
			Enabled:         false,
		},
		Cache: CacheSection{
			Addr:   "localhost:6379",
			TTL:    24 * time.Hour,
			Prefix: "surveyrun:",
			Breaker: BreakerConfig{
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				ConsecutiveFailures: 3,
			},
		},
		Server: ServerSection{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 20 * time.Second,
			RPS:            5,
			Burst:          10,
			MaxBodyBytes:   32 << 20,
		},
	}
}

// Load reads configuration from a YAML file layered over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Database.Enabled = val
		}
	}
	if queryTimeout := os.Getenv("PG_QUERY_TIMEOUT"); queryTimeout != "" {
		if val, err := time.ParseDuration(queryTimeout); err == nil {
			cfg.Database.QueryTimeout = val
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.Password = password
	}
	if enabled := os.Getenv("SURVEYRUN_CACHE_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Cache.Enabled = val
		}
	}

	if workers := os.Getenv("SURVEYRUN_WORKERS"); workers != "" {
		if val, err := strconv.Atoi(workers); err == nil {
			cfg.Transform.Workers = val
		}
	}
	if port := os.Getenv("SURVEYRUN_HTTP_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = val
		}
	}
}

// Save writes the configuration to a YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Survey.Rank.Validate(); err != nil {
		return fmt.Errorf("survey.rank: %w", err)
	}
	if c.QuestionSet().Len() == 0 {
		return fmt.Errorf("survey.questions must name at least one question")
	}

	if _, err := c.Cohorts(); err != nil {
		return err
	}
	if c.Cohort.Before == "" || c.Cohort.After == "" {
		return fmt.Errorf("cohort.before and cohort.after labels are required")
	}

	if c.Demographics.BirthYearMin > c.Demographics.BirthYearMax {
		return fmt.Errorf("demographics.birth_year_min cannot exceed birth_year_max")
	}

	if c.Transform.Workers <= 0 {
		return fmt.Errorf("transform.workers must be positive")
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RPS <= 0 || c.Server.Burst <= 0 {
		return fmt.Errorf("server.rps and server.burst must be positive")
	}

	return nil
}

// QuestionSet builds the ordered question set
func (c *Config) QuestionSet() survey.QuestionSet {
	return survey.NewQuestionSet(c.Survey.Questions...)
}

// Cohorts parses the cohort section
func (c *Config) Cohorts() (demographics.Cohorts, error) {
	cutoff, err := time.Parse(cutoffLayout, c.Cohort.Cutoff)
	if err != nil {
		return demographics.Cohorts{}, fmt.Errorf("cohort.cutoff %q: want YYYY-MM-DD", c.Cohort.Cutoff)
	}
	return demographics.Cohorts{Cutoff: cutoff, Before: c.Cohort.Before, After: c.Cohort.After}, nil
}
