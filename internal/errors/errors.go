// Package errors provides unified error handling with a small code taxonomy.
// Every failure that crosses a component boundary is an *AppError so the
// orchestrator can route it by code and log it with its originating phase.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Code classifies an error.
type Code uint8

const (
	Unknown Code = iota
	// Capture covers microphone unavailable and stream drops.
	Capture
	// Remote covers network, auth and quota failures from speech services.
	Remote
	// Config is startup-fatal: missing asset or malformed option.
	Config
	// ArbitrationDrop is not a failure: a trigger discarded while a session is active.
	ArbitrationDrop
	// Timeout is a remote call that exceeded its bound.
	Timeout
	// Unavailable is a remote dependency failing fast (breaker open).
	Unavailable
	// EmptyTranscript is a recording that produced no usable text.
	EmptyTranscript
	// Cancelled is a session ended by reset or shutdown.
	Cancelled
)

var codeNames = [...]string{
	Unknown:         "UNKNOWN",
	Capture:         "CAPTURE_ERROR",
	Remote:          "REMOTE_ERROR",
	Config:          "CONFIG_ERROR",
	ArbitrationDrop: "ARBITRATION_DROP",
	Timeout:         "TIMEOUT",
	Unavailable:     "UNAVAILABLE",
	EmptyTranscript: "EMPTY_TRANSCRIPT",
	Cancelled:       "CANCELLED",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return codeNames[Unknown]
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+e.Metadata[k])
		}
		s += " {" + strings.Join(pairs, " ") + "}"
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithPhase records the session phase the error originated in.
func (e *AppError) WithPhase(phase string) *AppError {
	return e.WithMetadata("phase", phase)
}

// As finds the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first *AppError in err's chain, or Unknown.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error has a specific error code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		appErr, ok := As(err)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRemote reports whether err is a speech-service failure of any kind.
func IsRemote(err error) bool {
	return IsCode(err, Remote) || IsCode(err, Timeout) || IsCode(err, Unavailable)
}

// IsRetryable returns true if the error is potentially retryable.
// Session code never retries; this only guides startup device initialisation.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, Capture:
		return true
	default:
		return false
	}
}

// Phase returns the phase metadata recorded on err, if any.
func Phase(err error) string {
	if appErr, ok := As(err); ok && appErr.Metadata != nil {
		return appErr.Metadata["phase"]
	}
	return ""
}
