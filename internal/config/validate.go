package config

import (
	"errors"
	"fmt"
)

// ErrNoServices indicates an empty services map.
var ErrNoServices = errors.New("no services configured")

// Validate checks the configuration for structural errors.
func (c *GlobalConfig) Validate() error {
	if len(c.Services) == 0 {
		return ErrNoServices
	}
	for name, svc := range c.Services {
		if len(svc.StartCmd) == 0 || svc.StartCmd[0] == "" {
			return fmt.Errorf("service %s: start_cmd must not be empty", name)
		}
		for _, dep := range svc.DependsOn {
			if _, ok := c.Services[dep]; !ok {
				return fmt.Errorf("service %s: depends_on references unknown service %s", name, dep)
			}
			if dep == name {
				return fmt.Errorf("service %s: depends on itself", name)
			}
		}
	}
	return nil
}
