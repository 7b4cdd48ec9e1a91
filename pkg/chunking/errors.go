// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes chunking failures for logging and handling.
type ErrorKind string

const (
	// KindConfiguration marks invalid or missing policy. Never recoverable.
	KindConfiguration ErrorKind = "configuration"
	// KindTokenProvider wraps failures from the external token provider.
	KindTokenProvider ErrorKind = "token_provider"
	// KindTokenization marks a failed full tokenization.
	KindTokenization ErrorKind = "tokenization"
	// KindValidation marks malformed input to the merge utilities.
	KindValidation ErrorKind = "validation"
	// KindInternal marks unexpected internal failures.
	KindInternal ErrorKind = "internal"
)

// Error is the typed error returned by this package.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Recoverable reports whether a retry with different input could succeed.
// Configuration and validation errors are terminal.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindConfiguration, KindValidation, KindInternal:
		return false
	default:
		return true
	}
}

func configErrorf(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...any) error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func providerError(msg string, err error) error {
	return &Error{Kind: KindTokenProvider, msg: msg, err: err}
}

func tokenizationError(msg string, err error) error {
	return &Error{Kind: KindTokenization, msg: msg, err: err}
}

// IsKind reports whether err is a chunking Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
