package core

import (
	"fmt"
	"strings"

	errx "github.com/inventory-assistant/server/internal/core/error"
)

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment normalises the provided value into one of the known environments.
// Unknown values fall back to Development so the application can still start
// with sensible defaults.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}

// Runtime identifies where the assistant is hosted. It decides which dataset
// path the retrieval tool reads from.
type Runtime string

const (
	RuntimeLocal  Runtime = "local"
	RuntimeHosted Runtime = "streamlit"
)

func (r Runtime) String() string {
	return string(r)
}

// ParseRuntime is strict: unlike ParseEnvironment there is no fallback, an
// unrecognised runtime is a configuration error.
func ParseRuntime(v string) (Runtime, error) {
	switch Runtime(strings.TrimSpace(v)) {
	case RuntimeLocal:
		return RuntimeLocal, nil
	case RuntimeHosted:
		return RuntimeHosted, nil
	default:
		return "", fmt.Errorf("%w: %q", errx.ErrUnknownRuntime, v)
	}
}
