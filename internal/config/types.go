// Package config provides configuration types and parsing for process-compose.
package config

import "path/filepath"

// Default values applied when the configuration omits a key.
const (
	DefaultLogLevel       = "info"
	DefaultSysServiceName = "process-compose"
	DefaultSysServiceDesc = "Process Monitoring and Management Tool"
	DefaultCheckInterval  = 5
	DefaultMaxFailures    = 1
)

// GlobalConfig represents the root configuration structure.
type GlobalConfig struct {
	LogLevel       string                    `yaml:"log_level"`
	AppDataHome    string                    `yaml:"app_data_home"`
	SysServiceName string                    `yaml:"sys_service_name"`
	SysServiceDesc string                    `yaml:"sys_service_desc"`
	Services       map[string]*ServiceConfig `yaml:"services"`
	API            *APIConfig                `yaml:"api,omitempty"`
}

// ServiceConfig defines a single supervised service. It is immutable
// after Load returns.
type ServiceConfig struct {
	Name        string             `yaml:"name"`
	StartCmd    []string           `yaml:"start_cmd"`
	LogRedirect bool               `yaml:"log_redirect"`
	LogPattern  string             `yaml:"log_pattern,omitempty"`
	DependsOn   []string           `yaml:"depends_on,omitempty"`
	HealthCheck *HealthCheckConfig `yaml:"healthcheck,omitempty"`
}

// CheckType defines how a service's health is probed.
type CheckType string

const (
	CheckHTTP    CheckType = "http"
	CheckTCP     CheckType = "tcp"
	CheckCmd     CheckType = "cmd"
	CheckProcess CheckType = "process"
)

// UnmarshalYAML maps unrecognised test_type values to the process probe.
func (t *CheckType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch CheckType(s) {
	case CheckHTTP, CheckTCP, CheckCmd:
		*t = CheckType(s)
	default:
		*t = CheckProcess
	}
	return nil
}

// HealthCheckConfig defines a health check for a service.
type HealthCheckConfig struct {
	TestType    CheckType `yaml:"test_type"`
	TestTarget  string    `yaml:"test_target"`
	Interval    int       `yaml:"interval"`
	MaxFailures int       `yaml:"max_failures"`
	StartPeriod int       `yaml:"start_period,omitempty"`
}

// UnmarshalYAML applies defaults for keys absent from the document.
// An explicit max_failures of 0 is preserved.
func (h *HealthCheckConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type raw struct {
		TestType    CheckType `yaml:"test_type"`
		TestTarget  string    `yaml:"test_target"`
		Interval    *int      `yaml:"interval"`
		MaxFailures *int      `yaml:"max_failures"`
		StartPeriod int       `yaml:"start_period"`
	}
	var r raw
	if err := unmarshal(&r); err != nil {
		return err
	}
	h.TestType = r.TestType
	if h.TestType == "" {
		h.TestType = CheckProcess
	}
	h.TestTarget = r.TestTarget
	h.StartPeriod = r.StartPeriod
	h.Interval = DefaultCheckInterval
	if r.Interval != nil {
		h.Interval = *r.Interval
	}
	h.MaxFailures = DefaultMaxFailures
	if r.MaxFailures != nil {
		h.MaxFailures = *r.MaxFailures
	}
	return nil
}

// APIConfig enables the HTTP control API.
type APIConfig struct {
	Enable   bool   `yaml:"enable"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ServiceHome returns the per-service state directory under app_data_home.
func (c *GlobalConfig) ServiceHome(name string) string {
	return filepath.Join(c.AppDataHome, name)
}

// ServiceLogDir returns the directory holding a service's redirected output.
func (c *GlobalConfig) ServiceLogDir(name string) string {
	return filepath.Join(c.ServiceHome(name), "logs")
}

// ServiceDataDir returns the scratch directory reserved for a service.
func (c *GlobalConfig) ServiceDataDir(name string) string {
	return filepath.Join(c.ServiceHome(name), "data")
}

// PIDFilePath returns the path of a service's PID file.
func (c *GlobalConfig) PIDFilePath(name string) string {
	return filepath.Join(c.ServiceHome(name), "pid")
}

// JournalPath returns the path of the event journal database.
func (c *GlobalConfig) JournalPath() string {
	return filepath.Join(c.AppDataHome, "journal.db")
}

// ServiceNames returns the configured service names in no particular order.
func (c *GlobalConfig) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	return names
}

// FindService returns the configuration of a single service, or nil.
func (c *GlobalConfig) FindService(name string) *ServiceConfig {
	return c.Services[name]
}
