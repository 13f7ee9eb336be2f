// errors.go - Structured errors and exit codes for the command line
package cli

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeUsage              = "USAGE_ERROR"
	CodeArgumentConflict   = "ARGUMENT_CONFLICT"
	CodeUnsupportedFeature = "UNSUPPORTED_FEATURE"
	CodeInvalidPrefix      = "INVALID_PREFIX"
	CodeConfig             = "CONFIG_ERROR"
	CodeStorage            = "STORAGE_ERROR"
	CodeExport             = "EXPORT_ERROR"
	CodePush               = "PUSH_ERROR"
	CodeDevice             = "DEVICE_ERROR"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
)

var exitCodes = map[string]int{
	CodeUsage:              ExitFailure,
	CodeArgumentConflict:   ExitFailure,
	CodeUnsupportedFeature: ExitFailure,
	CodeInvalidPrefix:      ExitFailure,
	CodeConfig:             ExitFailure,
	CodeStorage:            ExitFailure,
	CodeExport:             ExitFailure,
	CodePush:               ExitFailure,
	CodeDevice:             ExitFailure,
}

// Error represents a structured command failure
type Error struct {
	Code    string
	Message string
	Details string
	cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(code, message string, cause error) *Error {
	err := &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// Error constructors for consistent error handling

// NewUsageError creates an error for malformed command lines
func NewUsageError(message string) *Error {
	return newError(CodeUsage, message, nil)
}

// NewConflictError creates an error for mutually exclusive options used together
func NewConflictError(message string) *Error {
	return newError(CodeArgumentConflict, message, nil)
}

// NewUnsupportedError creates an error for options that are not implemented
func NewUnsupportedError(feature string) *Error {
	return newError(CodeUnsupportedFeature, fmt.Sprintf("%s is not implemented yet", feature), nil)
}

// NewInvalidPrefixError creates an error naming the offending argument
func NewInvalidPrefixError(argument string, cause error) *Error {
	return newError(CodeInvalidPrefix, fmt.Sprintf("argument %s", argument), cause)
}

// NewConfigError creates an error for unreadable or invalid configuration
func NewConfigError(cause error) *Error {
	return newError(CodeConfig, "failed to load configuration", cause)
}

// NewStorageError creates an error for database failures
func NewStorageError(message string, cause error) *Error {
	return newError(CodeStorage, message, cause)
}

// NewExportError creates an error for failures while writing the output file
func NewExportError(message string, cause error) *Error {
	return newError(CodeExport, message, cause)
}

// NewPushError creates an error for failures talking to the web form
func NewPushError(message string, cause error) *Error {
	return newError(CodePush, message, cause)
}

// NewDeviceError creates an error for an unreadable GPS receiver
func NewDeviceError(device string, cause error) *Error {
	return newError(CodeDevice, "failed to read "+device, cause)
}

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *Error
	if errors.As(err, &cliErr) {
		if code, ok := exitCodes[cliErr.Code]; ok {
			return code
		}
	}
	return ExitFailure
}

// userMessage is the single line shown on stderr
func userMessage(err error) string {
	var cliErr *Error
	if errors.As(err, &cliErr) {
		if cliErr.Details != "" {
			return cliErr.Message + ": " + cliErr.Details
		}
		return cliErr.Message
	}
	return err.Error()
}
