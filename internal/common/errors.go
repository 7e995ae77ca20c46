// Package common holds the error types shared by every component.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigUnavailable means the preference store could not be read.
	ErrConfigUnavailable = errors.New("configuration store unavailable")
	// ErrTimeout means a check did not finish within its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// WrapError prefixes err with message. A nil err stays nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewError is fmt.Errorf under the package's naming.
func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError reports a single invalid input value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ProbeError is a checker's failure to determine the status of one resource.
type ProbeError struct {
	Checker string
	URI     string
	Wrapped error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe by '%s' failed for '%s': %v", e.Checker, e.URI, e.Wrapped)
}

func (e *ProbeError) Unwrap() error {
	return e.Wrapped
}

func NewProbeError(checker, uri string, wrapped error) *ProbeError {
	return &ProbeError{Checker: checker, URI: uri, Wrapped: wrapped}
}

// HTTPError is a non-success response from a remote resource.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("HTTP %d error for '%s': %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d error: %s", e.StatusCode, e.Message)
}

func NewHTTPErrorWithURL(statusCode int, message, url string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, URL: url}
}

// multiError keeps every collected error reachable through errors.Is/As.
type multiError []error

func (m multiError) Error() string {
	parts := make([]string, len(m))
	for i, err := range m {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: [%s]", len(m), strings.Join(parts, "; "))
}

func (m multiError) Unwrap() []error {
	return m
}

// ErrorCollector gathers errors from steps that must all run, such as
// shutting down every checker. The zero value is ready to use.
type ErrorCollector struct {
	errs []error
}

func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.errs = append(ec.errs, err)
	}
}

// AddWithContext adds err prefixed with context.
func (ec *ErrorCollector) AddWithContext(err error, context string) {
	ec.Add(WrapError(err, context))
}

func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errs) > 0
}

// Error returns nil, the single collected error, or all of them combined.
func (ec *ErrorCollector) Error() error {
	switch len(ec.errs) {
	case 0:
		return nil
	case 1:
		return ec.errs[0]
	}
	return append(multiError(nil), ec.errs...)
}

func (ec *ErrorCollector) Errors() []error {
	return ec.errs
}
