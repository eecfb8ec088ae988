// Package naming derives storage directory names from record type names.
package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Subdirectory returns the type directory for a type name: the name in
// snake case with its last word pluralized.
//
//	TestEntity     -> test_entities
//	HTTPRequest    -> http_requests
//	admin/UserRole -> admin/user_roles
//
// Namespaces separated by "/" or "::" become nested directories; only the
// last segment is pluralized.
func Subdirectory(typeName string) string {
	typeName = strings.ReplaceAll(typeName, "::", "/")
	segs := strings.Split(typeName, "/")
	for i, seg := range segs {
		segs[i] = Snake(seg)
	}
	last := len(segs) - 1
	segs[last] = inflection.Plural(segs[last])
	return strings.Join(segs, "/")
}

// Snake converts CamelCase, mixedCase, and space or dash separated names to
// snake_case. Runs of capitals are kept together as one word.
func Snake(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		case unicode.IsUpper(r):
			if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
