// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config resolves the service configuration from defaults, an
// optional YAML file, and the environment. The result is an immutable
// types.ServiceConfig built once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/pkg/types"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. MDCONVERT_LOG_LEVEL.
	EnvPrefix = "MDCONVERT"
	// FileName is the config file base name searched in the default paths.
	FileName = "mdconvert"
)

// ErrInvalid reports a configuration value outside its allowed range.
var ErrInvalid = errors.New("invalid configuration")

// Plain variables honored for compatibility with existing deployments.
// The namespaced variable wins when both are set.
var compatEnv = map[string][]string{
	"server.port":                {"MDCONVERT_SERVER_PORT", "PORT"},
	"conversion.timeout_seconds": {"MDCONVERT_CONVERSION_TIMEOUT_SECONDS", "MDCONVERT_CONVERSION_TIMEOUT", "CONVERSION_TIMEOUT"},
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(100<<20))

	v.SetDefault("conversion.work_dir", "/app")
	v.SetDefault("conversion.temp_root", "")
	v.SetDefault("conversion.timeout_seconds", 300)
	v.SetDefault("conversion.grace_period", 5*time.Second)
	v.SetDefault("conversion.marker_command", "/app/marker-wrapper.sh")
	v.SetDefault("conversion.pandoc_command", "pandoc")
	v.SetDefault("conversion.pdftotext_command", "pdftotext")
	v.SetDefault("conversion.fallback_enabled", true)
	v.SetDefault("conversion.last_resort_enabled", true)
	v.SetDefault("conversion.container_runtime", "auto")

	v.SetDefault("audit.db_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// BindEnv enables MDCONVERT_* overrides for every key plus the plain
// compatibility variables.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range compatEnv {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile reads path, or searches the default locations when path is
// empty: ./mdconvert.yaml, then ~/.config/mdconvert/mdconvert.yaml. A
// missing file in the default locations is not an error. It returns the
// file used, if any.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals v into a ServiceConfig and validates it.
func Load(v *viper.Viper) (types.ServiceConfig, error) {
	var cfg types.ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.ServiceConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return types.ServiceConfig{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. Strategy definitions are checked when the
// chain is built.
func Validate(cfg types.ServiceConfig) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(cfg.Server.Port > 0 && cfg.Server.Port < 65536, "server.port %d out of range", cfg.Server.Port)
	check(cfg.Server.MaxUploadBytes >= 0, "server.max_upload_bytes must not be negative")
	check(cfg.Server.ReadTimeout >= 0, "server.read_timeout must not be negative")
	check(cfg.Server.WriteTimeout >= 0, "server.write_timeout must not be negative")
	check(cfg.Server.ShutdownTimeout >= 0, "server.shutdown_timeout must not be negative")

	check(cfg.Conversion.TimeoutSeconds > 0, "conversion.timeout_seconds must be positive, got %d", cfg.Conversion.TimeoutSeconds)
	check(cfg.Conversion.GracePeriod >= 0, "conversion.grace_period must not be negative")
	switch cfg.Conversion.ContainerRuntime {
	case "", "auto", "docker", "podman":
	default:
		check(false, "conversion.container_runtime %q is not auto, docker or podman", cfg.Conversion.ContainerRuntime)
	}

	switch cfg.Log.Format {
	case "", "json", "console":
	default:
		check(false, "log.format %q is not json or console", cfg.Log.Format)
	}

	return errors.Join(errs...)
}
