package config

// Config represents the complete configuration for the tirgum application.
// It covers all commands (translate, batch, serve) and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Capability service configuration
	Gemini GeminiConfig `mapstructure:"gemini" yaml:"gemini" json:"gemini"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Duplicate detection configuration
	Dedupe DedupeConfig `mapstructure:"dedupe" yaml:"dedupe" json:"dedupe"`

	// Asynchronous bulk job configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// GeminiConfig contains capability service settings.
type GeminiConfig struct {
	APIKey       string  `mapstructure:"api_key" yaml:"api_key" json:"-"`
	ExtractModel string  `mapstructure:"extract_model" yaml:"extract_model" json:"extract_model"`
	EditModel    string  `mapstructure:"edit_model" yaml:"edit_model" json:"edit_model"`
	RetryLimit   int     `mapstructure:"retry_limit" yaml:"retry_limit" json:"retry_limit"`
	RateLimit    float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Source       string  `mapstructure:"source" yaml:"source" json:"source"`
	Target       string  `mapstructure:"target" yaml:"target" json:"target"`
}

// PipelineConfig contains page processing settings.
type PipelineConfig struct {
	Mode             string `mapstructure:"mode" yaml:"mode" json:"mode"`
	Concurrency      int    `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	Verify           bool   `mapstructure:"verify" yaml:"verify" json:"verify"`
	VerifyRetryLimit int    `mapstructure:"verify_retry_limit" yaml:"verify_retry_limit" json:"verify_retry_limit"`
	StrictVerify     bool   `mapstructure:"strict_verify" yaml:"strict_verify" json:"strict_verify"`
}

// DedupeConfig contains duplicate page detection settings.
type DedupeConfig struct {
	MaxDistance int `mapstructure:"max_distance" yaml:"max_distance" json:"max_distance"`
}

// BatchConfig contains asynchronous bulk job settings.
type BatchConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" json:"poll_interval_sec"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
