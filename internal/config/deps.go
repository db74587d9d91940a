package config

import "errors"

// maxResolveDepth bounds the number of resolution rounds. A graph that
// makes no progress within the bound contains a cycle.
const maxResolveDepth = 5

// ErrCycle indicates a dependency cycle between services.
var ErrCycle = errors.New("the maximum recursion limit has been exceeded, there may be a circular dependency in the service configuration")

// AnalyzeDependencies linearises services into a valid start order:
// every name appears after all of its declared dependencies. Services
// without dependencies emerge first, in input order.
func AnalyzeDependencies(services []*ServiceConfig) ([]string, error) {
	result := make([]string, 0, len(services))
	var remained []*ServiceConfig
	for _, svc := range services {
		if len(svc.DependsOn) == 0 {
			result = append(result, svc.Name)
		} else {
			remained = append(remained, svc)
		}
	}
	if len(remained) == 0 {
		return result, nil
	}
	return resolveRemaining(result, remained, 0)
}

// resolveRemaining appends, round by round, every service whose
// dependencies are all already resolved.
func resolveRemaining(resolved []string, remained []*ServiceConfig, depth int) ([]string, error) {
	if depth > maxResolveDepth {
		return nil, ErrCycle
	}
	var next []*ServiceConfig
	for _, svc := range remained {
		if depsResolved(svc, resolved) {
			resolved = append(resolved, svc.Name)
		} else {
			next = append(next, svc)
		}
	}
	if len(next) == 0 {
		return resolved, nil
	}
	// A round without progress can only terminate through the depth bound.
	return resolveRemaining(resolved, next, depth+1)
}

func depsResolved(svc *ServiceConfig, resolved []string) bool {
	for _, dep := range svc.DependsOn {
		found := false
		for _, name := range resolved {
			if name == dep {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
