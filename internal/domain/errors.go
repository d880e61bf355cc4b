package domain

import (
	"errors"
	"fmt"
)

// ConfigError is a fatal startup problem: missing credential, missing index,
// invalid settings. It is reported to the operator and never retried.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ExtractionError means a single document could not be parsed.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// RemoteKind classifies a failed call to the embedding or generation service.
type RemoteKind int

const (
	RemoteService RemoteKind = iota
	RemoteAuth
	RemoteRateLimit
	RemoteNetwork
	RemoteTimeout
	RemoteCanceled
)

var remoteKindNames = map[RemoteKind]string{
	RemoteService:   "service error",
	RemoteAuth:      "authentication failed",
	RemoteRateLimit: "rate limited",
	RemoteNetwork:   "network error",
	RemoteTimeout:   "timed out",
	RemoteCanceled:  "canceled",
}

func (k RemoteKind) String() string { return remoteKindNames[k] }

// RemoteError wraps a failed remote embedding or generation call.
type RemoteError struct {
	Service string // "embedding" or "generation"
	Kind    RemoteKind
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s service %s: %v", e.Service, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// RemoteKindOf returns the kind of a wrapped RemoteError.
func RemoteKindOf(err error) (RemoteKind, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}
