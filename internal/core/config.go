package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jo-hoe/signtracker/internal/inspection"
	"github.com/jo-hoe/signtracker/internal/scanner"
	"gopkg.in/yaml.v3"
)

// Sources are the raw file URLs the lists are read from at session start.
type Sources struct {
	ReferenceURL   string `yaml:"referenceURL"`
	LogURL         string `yaml:"logURL"`
	Delimiter      string `yaml:"delimiter"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// GitHub locates the log file written through the contents API.
type GitHub struct {
	BaseURL           string  `yaml:"baseURL"`
	Owner             string  `yaml:"owner"`
	Repo              string  `yaml:"repo"`
	Branch            string  `yaml:"branch"`
	Path              string  `yaml:"path"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	ConflictRetries   int     `yaml:"conflictRetries"`
	CommitMessage     string  `yaml:"commitMessage"`
}

type Sessions struct {
	Type       string `yaml:"type"`
	Address    string `yaml:"address"`
	TTLMinutes int    `yaml:"ttlMinutes"`
}

type Journal struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Station struct {
	TimeZone        string              `yaml:"timeZone"`
	DuplicatePolicy string              `yaml:"duplicatePolicy"`
	Symbologies     []scanner.Symbology `yaml:"symbologies"`
}

type ServiceConfig struct {
	Port      int      `yaml:"port"`
	IconSizes []int    `yaml:"iconSizes"`
	Sources   Sources  `yaml:"sources"`
	GitHub    GitHub   `yaml:"github"`
	Sessions  Sessions `yaml:"sessions"`
	Journal   Journal  `yaml:"journal"`
	Station   Station  `yaml:"station"`
}

// ConfigPathEnv overrides where the config file is read from.
const ConfigPathEnv = "CONFIG_PATH"

// ConfigPath returns $CONFIG_PATH, or config.yaml in the working directory.
func ConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigPathEnv); configPath != "" {
		return configPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return filepath.Join(cwd, "config.yaml"), nil
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML, applies defaults and validates the result.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Location returns the station time zone used for "today" and timestamps.
func (c *ServiceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Station.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *ServiceConfig) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if len(c.IconSizes) == 0 {
		c.IconSizes = []int{180, 192, 512}
	}
	if c.Sources.Delimiter == "" {
		c.Sources.Delimiter = ","
	}
	if c.Sources.TimeoutSeconds == 0 {
		c.Sources.TimeoutSeconds = 30
	}
	if c.GitHub.CommitMessage == "" {
		c.GitHub.CommitMessage = inspection.DefaultCommitMessage
	}
	if c.Sessions.Type == "" {
		c.Sessions.Type = "memory"
	}
	if c.Sessions.TTLMinutes == 0 {
		c.Sessions.TTLMinutes = 12 * 60
	}
	if c.Journal.Type == "" {
		c.Journal.Type = "sqlite"
	}
	if c.Journal.ConnectionString == "" {
		c.Journal.ConnectionString = ":memory:"
	}
	if c.Station.TimeZone == "" {
		c.Station.TimeZone = "Local"
	}
	if c.Station.DuplicatePolicy == "" {
		c.Station.DuplicatePolicy = string(inspection.DuplicateFlag)
	}
	if len(c.Station.Symbologies) == 0 {
		c.Station.Symbologies = scanner.DefaultSymbologies
	}
}

func (c *ServiceConfig) validate() error {
	var errs []error

	if c.Sources.ReferenceURL == "" {
		errs = append(errs, errors.New("sources.referenceURL is required"))
	}
	if c.Sources.LogURL == "" {
		errs = append(errs, errors.New("sources.logURL is required"))
	}
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" || c.GitHub.Path == "" {
		errs = append(errs, errors.New("github.owner, github.repo and github.path are required"))
	}
	if c.GitHub.ConflictRetries < 0 {
		errs = append(errs, fmt.Errorf("github.conflictRetries must not be negative, got %d", c.GitHub.ConflictRetries))
	}
	if c.GitHub.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("github.requestsPerSecond must not be negative, got %v", c.GitHub.RequestsPerSecond))
	}
	switch inspection.DuplicatePolicy(c.Station.DuplicatePolicy) {
	case inspection.DuplicateFlag, inspection.DuplicateBlock:
	default:
		errs = append(errs, fmt.Errorf("station.duplicatePolicy must be %q or %q, got %q",
			inspection.DuplicateFlag, inspection.DuplicateBlock, c.Station.DuplicatePolicy))
	}
	if _, err := time.LoadLocation(c.Station.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("station.timeZone: %w", err))
	}
	if err := scanner.ValidateSymbologies(c.Station.Symbologies); err != nil {
		errs = append(errs, fmt.Errorf("station.symbologies: %w", err))
	}
	for _, size := range c.IconSizes {
		if size <= 0 || size > 1024 {
			errs = append(errs, fmt.Errorf("iconSizes must be between 1 and 1024, got %d", size))
		}
	}

	return errors.Join(errs...)
}
