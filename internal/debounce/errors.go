package debounce

import "fmt"

// ConfigError reports an invalid construction parameter. It is fatal at
// startup and never deferred.
type ConfigError struct {
	Input  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: input %q: %s: %s", e.Input, e.Field, e.Reason)
}

// ReadError reports a failed pin sample. The debouncer keeps its last
// confirmed value.
type ReadError struct {
	Input string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("input %q: read: %v", e.Input, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
