// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		kind        ErrorKind
		recoverable bool
	}{
		{"configuration", configErrorf("bad config"), KindConfiguration, false},
		{"validation", validationErrorf("bad input"), KindValidation, false},
		{"provider", providerError("estimate", errors.New("boom")), KindTokenProvider, true},
		{"tokenization", tokenizationError("tokenize", errors.New("boom")), KindTokenization, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsKind(tt.err, tt.kind) {
				t.Errorf("IsKind(%v, %s) = false", tt.err, tt.kind)
			}
			var ce *Error
			if !errors.As(tt.err, &ce) {
				t.Fatalf("error is not a chunking Error: %v", tt.err)
			}
			if ce.Recoverable() != tt.recoverable {
				t.Errorf("Recoverable() = %v, want %v", ce.Recoverable(), tt.recoverable)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := providerError("estimate token count", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() = %q, missing cause", err.Error())
	}
	if !strings.Contains(err.Error(), string(KindTokenProvider)) {
		t.Errorf("Error() = %q, missing kind", err.Error())
	}
}

func TestIsKindOnForeignError(t *testing.T) {
	if IsKind(errors.New("plain"), KindConfiguration) {
		t.Error("IsKind matched a non-chunking error")
	}
	if IsKind(nil, KindConfiguration) {
		t.Error("IsKind matched nil")
	}
	wrapped := fmt.Errorf("outer: %w", configErrorf("inner"))
	if !IsKind(wrapped, KindConfiguration) {
		t.Error("IsKind should see through wrapping")
	}
}
