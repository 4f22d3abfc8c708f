// Package storage holds configuration helpers shared by the group store and
// hierarchy backends.
package storage

import "fmt"

// ConfigError reports a bad backend setting.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Field, e.Value, e.Message)
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// ConnectError reports that a backend could not reach its server.
func ConnectError(backend, field string, cause error) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: "failed to connect", Cause: cause}
}
