package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins prefix and parts with ':'.
func GenerateKey(prefix string, parts ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
