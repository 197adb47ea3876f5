package guardrail

import (
	"errors"
	"fmt"
	"strings"
)

// GuardrailError is returned by the prompt sanitizer when a prompt fails
// any check. It carries every violation found in the pass, not just the
// first, so callers can report all of them at once.
type GuardrailError struct {
	Violations []Violation
}

func (e *GuardrailError) Error() string {
	details := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		details[i] = fmt.Sprintf("%s: %s", v.Category, v.Detail)
	}
	return fmt.Sprintf("prompt rejected (%d violations): %s", len(e.Violations), strings.Join(details, "; "))
}

func IsGuardrailError(err error) bool {
	var guardrailError *GuardrailError
	return errors.As(err, &guardrailError)
}

// ConfigError wraps a rule-file stat or parse failure. It is the only
// error the content guard can return; content findings are violations,
// never errors.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("guardrail config %q: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func IsConfigError(err error) bool {
	var configError *ConfigError
	return errors.As(err, &configError)
}
