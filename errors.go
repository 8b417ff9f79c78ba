package planter

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors.
var (
	// ErrNotFound is returned when a lookup has no result. It is an expected
	// negative answer, not a failure.
	ErrNotFound = errors.New("planter: not found")

	// ErrConfig is returned when a bootstrap cannot proceed because of
	// how it was configured.
	ErrConfig = errors.New("planter: configuration error")

	// ErrUnknownTable is returned when a caller asks to find an object
	// in a table the registry has never heard of.
	ErrUnknownTable = errors.New("planter: could not find class for table")
)

// NotFoundError represents a lookup miss.
type NotFoundError struct {
	label string
	key   any // Optional: the key values that were searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.key != nil {
		return fmt.Sprintf("planter: %s not found (key=%v)", e.label, e.key)
	}
	return fmt.Sprintf("planter: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the table or name that was looked up.
func (e *NotFoundError) Label() string {
	return e.label
}

// Key returns the key that was searched for, if available.
func (e *NotFoundError) Key() any {
	return e.key
}

// NewNotFoundError returns a new NotFoundError for the given label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithKey returns a new NotFoundError carrying the searched key.
func NewNotFoundErrorWithKey(label string, key any) *NotFoundError {
	return &NotFoundError{label: label, key: key}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConfigError represents a fatal configuration problem: a target planted
// after it was loaded, a schema that produced no classes, a nested relation
// naming an unknown table, or an invalid option.
type ConfigError struct {
	Option  string // Option or subject the error is about
	Value   any    // Offending value, if any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("planter: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("planter: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// CallerError is returned when an operation was invoked with arguments that
// can never succeed, such as finding an object in an unregistered table.
type CallerError struct {
	Op    string // Operation (e.g., "find")
	Table string // Table name the caller passed
}

// Error returns the error string.
func (e *CallerError) Error() string {
	return fmt.Sprintf("planter: %s: could not find class for table %q", e.Op, e.Table)
}

// Is reports whether the target matches ErrUnknownTable.
func (e *CallerError) Is(target error) bool {
	return target == ErrUnknownTable
}

// NewCallerError returns a new CallerError.
func NewCallerError(op, table string) *CallerError {
	return &CallerError{Op: op, Table: table}
}

// IsCallerError returns true if the error is a CallerError.
func IsCallerError(err error) bool {
	if err == nil {
		return false
	}
	var e *CallerError
	return errors.As(err, &e)
}

// LoadError wraps a store error raised while loading an object.
type LoadError struct {
	Table string // Table being loaded
	Op    string // Operation (e.g., "select", "nested")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *LoadError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("planter: loading %s (%s): %v", e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("planter: loading %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError returns a new LoadError.
func NewLoadError(table, op string, err error) *LoadError {
	return &LoadError{Table: table, Op: op, Err: err}
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "planter: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("planter: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors so errors.Is and errors.As see them.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
