package filter

import (
	"regexp"
	"strings"
	"sync"
)

var globCache sync.Map // pattern -> *regexp.Regexp

// Glob reports whether value matches pattern case-insensitively. "*"
// matches any run of characters; the match is anchored at the start only,
// so "AB" matches "ABC".
func Glob(pattern, value string) bool {
	return compileGlob(pattern).MatchString(strings.ToUpper(value))
}

func compileGlob(pattern string) *regexp.Regexp {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	parts := strings.Split(strings.ToUpper(pattern), "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile("^" + strings.Join(parts, ".*"))
	globCache.Store(pattern, re)
	return re
}

// MatchDesignation matches a configured designation against an event
// designation. A trailing ".**" accepts the node itself and every
// descendant; otherwise the match is exact.
func MatchDesignation(pattern, designation string) bool {
	if node, ok := strings.CutSuffix(pattern, ".**"); ok {
		return designation == node || strings.HasPrefix(designation, node+".")
	}
	return designation == pattern
}
