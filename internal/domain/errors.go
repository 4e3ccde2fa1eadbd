package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies orchestrator failures.
type ErrorKind string

const (
	ErrConfigInvalid       ErrorKind = "ConfigInvalid"
	ErrGeneratorFailed     ErrorKind = "GeneratorFailed"
	ErrPatchFailed         ErrorKind = "PatchFailed"
	ErrProviderUnavailable ErrorKind = "ProviderUnavailable"
	ErrSpawnFailed         ErrorKind = "SpawnFailed"
	ErrReadinessTimeout    ErrorKind = "ReadinessTimeout"
	ErrParseFailed         ErrorKind = "ParseFailed"
	ErrNetworkInconsistent ErrorKind = "NetworkInconsistent"
	ErrOperationCancelled  ErrorKind = "OperationCancelled"
)

// ZombieError is the structured error returned across the orchestrator
// boundary. Kind drives exit-code mapping; Node/Chain narrow the blast radius
// for the user; Hint carries a short remediation suggestion.
type ZombieError struct {
	Kind  ErrorKind
	Node  string
	Chain string
	Hint  string
	Err   error
}

func (e *ZombieError) Error() string {
	msg := string(e.Kind)
	if e.Chain != "" {
		msg += " chain=" + e.Chain
	}
	if e.Node != "" {
		msg += " node=" + e.Node
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ZombieError) Unwrap() error { return e.Err }

// RecoveryHint returns the remediation hint, implementing the behavior
// interface checked by the CLI layer.
func (e *ZombieError) RecoveryHint() string { return e.Hint }

// Errorf builds a ZombieError with a formatted cause.
func Errorf(kind ErrorKind, format string, args ...interface{}) *ZombieError {
	return &ZombieError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError attaches kind and subject metadata to err.
func WrapError(kind ErrorKind, node, chain string, err error) *ZombieError {
	return &ZombieError{Kind: kind, Node: node, Chain: chain, Err: err}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed.
// Returns empty string when err carries no kind.
func KindOf(err error) ErrorKind {
	var ze *ZombieError
	if errors.As(err, &ze) {
		return ze.Kind
	}
	return ""
}

// RecoverableError is implemented by errors that suggest a recovery action.
type RecoverableError interface {
	error
	RecoveryHint() string
}

// GetRecoveryHint extracts a recovery hint from an error.
// Returns empty string if no hint is available.
func GetRecoveryHint(err error) string {
	var re RecoverableError
	if errors.As(err, &re) {
		return re.RecoveryHint()
	}
	return ""
}
