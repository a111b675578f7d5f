package coordinator

import "errors"

// ErrConfig is the sentinel every ConfigError unwraps to.
var ErrConfig = errors.New("configuration error")

// ConfigError reports a run request that cannot be submitted as given.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return ErrConfig.Error() + ": " + e.Message }

func (e *ConfigError) Unwrap() error { return ErrConfig }

const msgPlaceholderPresent = "placeholder present; use batch mode"
