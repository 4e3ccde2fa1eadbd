package network

import (
	"fmt"
	"regexp"
	"strings"
)

// globMatcher compiles a glob-style pattern (* and ?) into a substring-style
// line matcher. A pattern without wildcards matches any line containing it.
func globMatcher(pattern string) (func(string) bool, error) {
	if !strings.ContainsAny(pattern, "*?") {
		return func(line string) bool {
			return strings.Contains(line, pattern)
		}, nil
	}

	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}
