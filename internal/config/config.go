// Package config loads the triage service configuration from YAML with
// environment variable overrides.
package config

import "time"

// Default configuration values.
const (
	defaultServiceName         = "smax-ai"
	defaultServiceVersion      = "1.0.0"
	defaultServicePort         = 5000
	defaultReadTimeout         = 30 * time.Second
	defaultWriteTimeout        = 60 * time.Second
	defaultSourceDir           = "Выгрузка"
	defaultModelDir            = "model"
	defaultDatabasePath        = "smax-ai.db"
	defaultMinTrainingRecords  = 10
	defaultConfidenceThreshold = 0.25
	defaultVocabularySize      = 1500
	defaultEstimators          = 100
	defaultLogLevel            = "info"
	defaultRateLimitRPS        = 50
	defaultSpamPolicy          = "loose"
	defaultSpamMinLength       = 5
	defaultSpamMaxLength       = 2000
	defaultStrictMinLength     = 10
	defaultStrictMaxLength     = 1000
	defaultCyrillicMinRatio    = 0.6
	defaultLatinMaxRatio       = 0.2
	defaultDigitMaxRatio       = 0.1
	defaultSpecialMaxRatio     = 0.05
)

// Config holds all configuration for the triage service.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Data     DataConfig     `yaml:"data"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Spam     SpamConfig     `yaml:"spam"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Port         int           `env:"PORT"      yaml:"port"`
	Debug        bool          `env:"APP_DEBUG" yaml:"debug"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimitRPS int           `yaml:"rate_limit_rps"`
}

// DataConfig holds training data locations.
type DataConfig struct {
	SourceDir string `env:"SMAX_SOURCE_DIR" yaml:"source_dir"`
	ModelDir  string `env:"SMAX_MODEL_DIR"  yaml:"model_dir"`
}

// DatabaseConfig holds the embedded SQLite settings.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `env:"SMAX_DB_PATH" yaml:"path"`
}

// ModelConfig holds training settings.
type ModelConfig struct {
	ConfidenceThreshold float64 `env:"SMAX_CONFIDENCE_THRESHOLD" yaml:"confidence_threshold"`
	MinTrainingRecords  int     `yaml:"min_training_records"`
	VocabularySize      int     `yaml:"vocabulary_size"`
	Estimators          int     `yaml:"estimators"`
}

// SpamConfig holds spam gate settings. Policy "loose" is the current
// behavior; "strict" restores the legacy Cyrillic-ratio rules.
type SpamConfig struct {
	Policy           string  `env:"SMAX_SPAM_POLICY" yaml:"policy"`
	MinLength        int     `yaml:"min_length"`
	MaxLength        int     `yaml:"max_length"`
	CyrillicMinRatio float64 `yaml:"cyrillic_min_ratio"`
	LatinMaxRatio    float64 `yaml:"latin_max_ratio"`
	DigitMaxRatio    float64 `yaml:"digit_max_ratio"`
	SpecialMaxRatio  float64 `yaml:"special_max_ratio"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDataDefaults(&cfg.Data)
	setDatabaseDefaults(&cfg.Database)
	setModelDefaults(&cfg.Model)
	setSpamDefaults(&cfg.Spam)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = defaultWriteTimeout
	}
	if s.RateLimitRPS == 0 {
		s.RateLimitRPS = defaultRateLimitRPS
	}
}

func setDataDefaults(d *DataConfig) {
	if d.SourceDir == "" {
		d.SourceDir = defaultSourceDir
	}
	if d.ModelDir == "" {
		d.ModelDir = defaultModelDir
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Path == "" {
		d.Path = defaultDatabasePath
	}
}

func setModelDefaults(m *ModelConfig) {
	if m.ConfidenceThreshold == 0 {
		m.ConfidenceThreshold = defaultConfidenceThreshold
	}
	if m.MinTrainingRecords == 0 {
		m.MinTrainingRecords = defaultMinTrainingRecords
	}
	if m.VocabularySize == 0 {
		m.VocabularySize = defaultVocabularySize
	}
	if m.Estimators == 0 {
		m.Estimators = defaultEstimators
	}
}

func setSpamDefaults(s *SpamConfig) {
	if s.Policy == "" {
		s.Policy = defaultSpamPolicy
	}
	if s.MinLength == 0 {
		if s.Policy == "strict" {
			s.MinLength = defaultStrictMinLength
		} else {
			s.MinLength = defaultSpamMinLength
		}
	}
	if s.MaxLength == 0 {
		if s.Policy == "strict" {
			s.MaxLength = defaultStrictMaxLength
		} else {
			s.MaxLength = defaultSpamMaxLength
		}
	}
	if s.CyrillicMinRatio == 0 {
		s.CyrillicMinRatio = defaultCyrillicMinRatio
	}
	if s.LatinMaxRatio == 0 {
		s.LatinMaxRatio = defaultLatinMaxRatio
	}
	if s.DigitMaxRatio == 0 {
		s.DigitMaxRatio = defaultDigitMaxRatio
	}
	if s.SpecialMaxRatio == 0 {
		s.SpecialMaxRatio = defaultSpecialMaxRatio
	}
}
