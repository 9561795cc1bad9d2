package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"epistat/internal/errors"
)

// DefaultExposureColumns are the food columns of the bundled outbreak dataset
var DefaultExposureColumns = []string{"foodA", "foodB", "foodC", "foodD", "foodE"}

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Study    StudyConfig
	Data     DataConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// in-memory storage; "sqlite:<path>" selects a local SQLite file and anything
// else is treated as a postgres DSN.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether postgres persistence is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string
	APIPort      string
	GinMode      string
	MaxUploadMB  int
	SessionTTLHr int
}

// StudyConfig describes which columns are analysed and how
type StudyConfig struct {
	Name            string   `yaml:"name"`
	OutcomeColumn   string   `yaml:"outcome_column"`
	ExposureColumns []string `yaml:"exposure_columns"`
	YatesCorrection *bool    `yaml:"yates_correction"`
	MaxWorkers      int      `yaml:"max_workers"`
}

// Yates returns the effective continuity correction flag
func (s StudyConfig) Yates() bool {
	return s.YatesCorrection == nil || *s.YatesCorrection
}

// DataConfig holds data loading settings
type DataConfig struct {
	DataFile  string
	StudyFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:   *loadServerConfig(),
		Data:     *loadDataConfig(),
	}

	study, err := loadStudyConfig(config.Data.StudyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load study configuration")
	}
	config.Study = *study

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		APIPort:      getEnvOrDefault("API_PORT", "8081"),
		GinMode:      getEnvOrDefault("GIN_MODE", "debug"),
		MaxUploadMB:  getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
		SessionTTLHr: getEnvIntOrDefault("SESSION_TTL_HOURS", 24),
	}
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		DataFile:  getEnvOrDefault("DATA_FILE", ""),
		StudyFile: getEnvOrDefault("STUDY_FILE", ""),
	}
}

// loadStudyConfig builds the study from env vars, then lets a YAML study file
// override any field it sets.
func loadStudyConfig(path string) (*StudyConfig, error) {
	yates := getEnvBoolOrDefault("YATES_CORRECTION", true)
	study := &StudyConfig{
		OutcomeColumn:   getEnvOrDefault("OUTCOME_COLUMN", "case_or_control"),
		ExposureColumns: getEnvListOrDefault("EXPOSURE_COLUMNS", DefaultExposureColumns),
		YatesCorrection: &yates,
		MaxWorkers:      getEnvIntOrDefault("MAX_WORKERS", 4),
	}
	if path == "" {
		return study, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigInvalid("cannot read study file " + path)
	}
	file, err := ParseStudy(raw)
	if err != nil {
		return nil, err
	}
	return mergeStudy(study, file), nil
}

// LoadStudy reads only the study settings: env vars, then the optional YAML
// file at path. Command-line tools use it without the server settings.
func LoadStudy(path string) (*StudyConfig, error) {
	study, err := loadStudyConfig(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateStudy(study); err != nil {
		return nil, err
	}
	return study, nil
}

// ParseStudy decodes a YAML study definition
func ParseStudy(raw []byte) (*StudyConfig, error) {
	var study StudyConfig
	if err := yaml.Unmarshal(raw, &study); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "invalid study file"))
	}
	return &study, nil
}

func mergeStudy(base, override *StudyConfig) *StudyConfig {
	merged := *base
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.OutcomeColumn != "" {
		merged.OutcomeColumn = override.OutcomeColumn
	}
	if len(override.ExposureColumns) > 0 {
		merged.ExposureColumns = override.ExposureColumns
	}
	if override.YatesCorrection != nil {
		merged.YatesCorrection = override.YatesCorrection
	}
	if override.MaxWorkers > 0 {
		merged.MaxWorkers = override.MaxWorkers
	}
	return &merged
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Server.MaxUploadMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	return ValidateStudy(&config.Study)
}

// ValidateStudy checks the outcome and exposure column settings
func ValidateStudy(study *StudyConfig) error {
	if strings.TrimSpace(study.OutcomeColumn) == "" {
		return errors.ConfigInvalid("outcome column is required")
	}
	if len(study.ExposureColumns) == 0 {
		return errors.ConfigInvalid("at least one exposure column is required")
	}
	seen := make(map[string]bool, len(study.ExposureColumns))
	for _, col := range study.ExposureColumns {
		if strings.TrimSpace(col) == "" {
			return errors.ConfigInvalid("exposure column names must not be blank")
		}
		if seen[col] {
			return errors.ConfigInvalid("duplicate exposure column " + col)
		}
		if col == study.OutcomeColumn {
			return errors.ConfigInvalid("outcome column cannot also be an exposure: " + col)
		}
		seen[col] = true
	}
	if study.MaxWorkers <= 0 {
		return errors.ConfigInvalid("MAX_WORKERS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
