package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports settings that must be present before the
// service can start. It is always fatal.
type ConfigurationError struct {
	Component string
	Missing   []string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Component != "" {
		fmt.Fprintf(&b, " (%s)", e.Component)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required env vars: %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}
