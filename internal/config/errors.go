package config

import (
	"errors"
	"fmt"
)

// Error codes for configuration problems.
const (
	ErrCodeRead           = "E200" // File could not be read
	ErrCodeParse          = "E201" // YAML syntax or unknown field
	ErrCodeMissingName    = "E202" // State or scene without a name
	ErrCodeDuplicateState = "E203" // State declared twice
	ErrCodeDuplicateScene = "E204" // Scene declared twice
	ErrCodeNoHandlers     = "E205" // Scene without handlers
	ErrCodeMixedHandler   = "E206" // Handler with operations and sub_handlers
	ErrCodeEmptyHandler   = "E207" // Handler with neither
	ErrCodeBadExpression  = "E208" // Condition expression does not parse
	ErrCodeBadOperation   = "E209" // Unknown op or bad op parameters
	ErrCodeUnknownState   = "E210" // Reference to an undeclared state
	ErrCodeNegativeValue  = "E211" // Negative interval
	ErrCodeSelfMutex      = "E212" // State lists itself as mutex peer
	ErrCodeNoScenes       = "E213" // Definition without scenes
	ErrCodeUnknownTrigger = "E214" // Trigger names an undeclared state
)

// LoadError is a fatal configuration error.
type LoadError struct {
	Code    string
	Message string

	// Path locates the problem, e.g. "scenes[1].handlers[0].operations[2]".
	Path string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a *LoadError with the given code.
// An empty code matches any LoadError.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	if !errors.As(err, &le) {
		return false
	}
	return code == "" || le.Code == code
}

// Issue is a non-fatal finding of Validate.
type Issue struct {
	Code    string
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Code, i.Path, i.Message)
}
