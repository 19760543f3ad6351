// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the lookup key for a username, email or role name.
// Compatibility composition plus case folding makes "Alice" and "ＡＬＩＣＥ" collide.
func Normalize(value string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(value)))
}
