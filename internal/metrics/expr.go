package metrics

import (
	"fmt"
	"math"
	"strings"
)

// Expr is a compiled metric selector of the form name{label="v",...}.
// Samples match when the name equals (or, for node-prefixed metrics, ends
// with "_" + name) and every selector label is present with the same value.
type Expr struct {
	Name   string
	Labels map[string]string
}

// CompileExpr parses a metric expression.
func CompileExpr(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty metric expression")
	}

	braceIdx := strings.IndexByte(src, '{')
	if braceIdx < 0 {
		return &Expr{Name: src, Labels: map[string]string{}}, nil
	}
	if !strings.HasSuffix(src, "}") {
		return nil, fmt.Errorf("unterminated label selector in %q", src)
	}

	labels, err := parseLabels(src[braceIdx+1:len(src)-1], braceIdx+1)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", src, err)
	}
	return &Expr{Name: src[:braceIdx], Labels: labels}, nil
}

// Matches reports whether the sample satisfies the selector.
func (e *Expr) Matches(s Sample) bool {
	if s.Name != e.Name && !strings.HasSuffix(s.Name, "_"+e.Name) {
		return false
	}
	for k, v := range e.Labels {
		if s.Labels[k] != v {
			return false
		}
	}
	return true
}

// Eval returns the value of the first matching sample.
func (e *Expr) Eval(samples []Sample) (float64, bool) {
	for _, s := range samples {
		if e.Matches(s) {
			return s.Value, true
		}
	}
	return 0, false
}

// HasFinite reports whether any matching sample holds a finite value. The
// readiness probe uses this on node_roles.
func (e *Expr) HasFinite(samples []Sample) bool {
	for _, s := range samples {
		if e.Matches(s) && !math.IsInf(s.Value, 0) && !math.IsNaN(s.Value) {
			return true
		}
	}
	return false
}
