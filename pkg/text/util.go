// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// SnakeToCamel converts snake_case to CamelCase.
func SnakeToCamel(s string) string {
	var b strings.Builder
	for _, w := range strings.Split(s, "_") {
		runes := []rune(w)
		if len(runes) == 0 {
			continue
		}
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

// RandomKey returns a random key, optionally prefixed as "<prefix>_<key>".
func RandomKey(prefix string) string {
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, key)
	}
	return key
}
