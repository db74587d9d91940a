package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file looked up under the root directory.
const ConfigFileName = "config.yaml"

// RootDir returns the directory containing the running executable.
// The configuration file and the supervisor's own log live there.
func RootDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(RootDir(), ConfigFileName)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(data []byte) (*GlobalConfig, error) {
	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills omitted keys and copies each service's map key
// into its Name field.
func (c *GlobalConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.AppDataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.AppDataHome = filepath.Join(home, ".process-compose")
	}
	if c.SysServiceName == "" {
		c.SysServiceName = DefaultSysServiceName
	}
	if c.SysServiceDesc == "" {
		c.SysServiceDesc = DefaultSysServiceDesc
	}
	for name, svc := range c.Services {
		svc.Name = name
	}
}

// CreateServicesHome creates the logs and data directories of every
// configured service under app_data_home.
func (c *GlobalConfig) CreateServicesHome() error {
	for name := range c.Services {
		if err := os.MkdirAll(c.ServiceLogDir(name), 0o755); err != nil {
			return fmt.Errorf("create log dir for %s: %w", name, err)
		}
		if err := os.MkdirAll(c.ServiceDataDir(name), 0o755); err != nil {
			return fmt.Errorf("create data dir for %s: %w", name, err)
		}
	}
	return nil
}
