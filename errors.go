package lmbridge

import (
	"errors"
	"fmt"
)

// CompletionFailure is any network, HTTP-status or response-shape error
// from a completion exchange.
type CompletionFailure struct {
	Endpoint string
	Err      error
}

func (e *CompletionFailure) Error() string {
	return fmt.Sprintf("completion endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *CompletionFailure) Unwrap() error {
	return e.Err
}

// FileReadFailure is returned when a picked file cannot be read.
type FileReadFailure struct {
	Path string
	Err  error
}

func (e *FileReadFailure) Error() string {
	return fmt.Sprintf("read file %s: %v", e.Path, e.Err)
}

func (e *FileReadFailure) Unwrap() error {
	return e.Err
}

// ConfigurationInvalid rejects a malformed endpoint URL.
type ConfigurationInvalid struct {
	Value  string
	Reason string
}

func (e *ConfigurationInvalid) Error() string {
	return fmt.Sprintf("invalid endpoint %q: %s", e.Value, e.Reason)
}

// ConfigError represents a configuration read, parse or save failure.
type ConfigError struct {
	Op  string // read, parse, save
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s error: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsCompletionFailure reports whether err is or wraps a CompletionFailure.
func IsCompletionFailure(err error) bool {
	var target *CompletionFailure
	return errors.As(err, &target)
}

// IsFileReadFailure reports whether err is or wraps a FileReadFailure.
func IsFileReadFailure(err error) bool {
	var target *FileReadFailure
	return errors.As(err, &target)
}

// IsConfigurationInvalid reports whether err is or wraps a ConfigurationInvalid.
func IsConfigurationInvalid(err error) bool {
	var target *ConfigurationInvalid
	return errors.As(err, &target)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
