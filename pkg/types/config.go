// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the interface to bind (default "0.0.0.0").
	Host string `json:"host" yaml:"host" mapstructure:"host"`

	// Port is the listening port (default 5000, overridden by $PORT).
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// MaxUploadBytes caps the request body accepted by POST /convert.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// DecoderKind selects how a located artifact is turned into Markdown.
type DecoderKind string

const (
	// DecoderMarkdown returns the artifact text verbatim.
	DecoderMarkdown DecoderKind = "markdown"
	// DecoderReflow treats the artifact as plain text and synthesizes a
	// document: a heading from the basename plus re-flowed paragraphs.
	DecoderReflow DecoderKind = "reflow"
)

// StrategyConfig describes one external conversion attempt. Args, Dir and
// Candidates are templates; see convert.Vars for the placeholders.
type StrategyConfig struct {
	Name    string   `json:"name" yaml:"name" mapstructure:"name"`
	Command string   `json:"command" yaml:"command" mapstructure:"command"`
	Args    []string `json:"args" yaml:"args" mapstructure:"args"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`

	// TimeoutSeconds overrides ConversionConfig.TimeoutSeconds when positive.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`

	// Candidates lists the artifact paths searched after a clean exit, in
	// priority order. Entries may be glob patterns.
	Candidates []string `json:"candidates" yaml:"candidates" mapstructure:"candidates"`

	Decoder DecoderKind `json:"decoder" yaml:"decoder" mapstructure:"decoder"`

	// Image runs the command inside this container image when set.
	Image string `json:"image,omitempty" yaml:"image,omitempty" mapstructure:"image"`
}

// ConversionConfig holds settings for the conversion pipeline.
type ConversionConfig struct {
	// WorkDir is the fixed working directory of the primary tool (default "/app").
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	// TempRoot is the parent directory for request workspaces. Empty means
	// os.TempDir().
	TempRoot string `json:"temp_root" yaml:"temp_root" mapstructure:"temp_root"`

	// TimeoutSeconds is the per-strategy deadline (default 300).
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" mapstructure:"timeout_seconds"`

	// GracePeriod is the wait between the graceful and the forced kill (default 5s).
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period" mapstructure:"grace_period"`

	MarkerCommand    string `json:"marker_command" yaml:"marker_command" mapstructure:"marker_command"`
	PandocCommand    string `json:"pandoc_command" yaml:"pandoc_command" mapstructure:"pandoc_command"`
	PdftotextCommand string `json:"pdftotext_command" yaml:"pdftotext_command" mapstructure:"pdftotext_command"`

	FallbackEnabled   bool `json:"fallback_enabled" yaml:"fallback_enabled" mapstructure:"fallback_enabled"`
	LastResortEnabled bool `json:"last_resort_enabled" yaml:"last_resort_enabled" mapstructure:"last_resort_enabled"`

	// ContainerRuntime is "docker", "podman", or "auto". Only consulted
	// when a strategy sets Image.
	ContainerRuntime string `json:"container_runtime" yaml:"container_runtime" mapstructure:"container_runtime"`

	// Strategies replaces the default chain when non-empty.
	Strategies []StrategyConfig `json:"strategies,omitempty" yaml:"strategies,omitempty" mapstructure:"strategies"`
}

// Timeout returns the default per-strategy deadline.
func (c ConversionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuditConfig holds settings for the conversion audit log.
type AuditConfig struct {
	// DBPath is the SQLite database file. Empty disables auditing.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json or console
}

// ServiceConfig groups every configuration section. It is built once at
// startup and never mutated afterwards.
type ServiceConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Audit      AuditConfig      `json:"audit" yaml:"audit" mapstructure:"audit"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}
